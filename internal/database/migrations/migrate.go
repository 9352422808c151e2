package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

//go:embed *.sql
var files embed.FS

// Run executes every embedded .sql file in name order. Statements are
// idempotent, so Run is safe on every boot.
func Run(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		code, err := files.ReadFile(e.Name())
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(code)); err != nil {
			return fmt.Errorf("migration %s: %w", e.Name(), err)
		}
		zap.L().Info("migration applied", zap.String("file", e.Name()))
	}
	return nil
}
