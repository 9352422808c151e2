// Package db_client opens the Postgres pool through the pgx stdlib driver.
package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// DSN builds a postgres:// URL; credentials are escaped.
func DSN(host, port, user, pass, database, sslMode string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
	}
	if sslMode != "" {
		u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	}
	return u.String()
}

func Open(host, port, user, pass, database, sslMode string) (*sql.DB, error) {
	db, err := sql.Open("pgx", DSN(host, port, user, pass, database, sslMode))
	if err != nil {
		return nil, err
	}
	// Chat traffic is one short insert per message.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		zap.L().Error("pg_connect", zap.String("host", host), zap.String("db", database), zap.Error(err))
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}
