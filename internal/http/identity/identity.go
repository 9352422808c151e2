// Package identity gives every browser session a stable display identity
// before any room or chat handler runs.
package identity

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SessionName = "roomchat"
	ContextKey  = "identity"

	sessionKey = "color"
)

// Sessions installs the signed cookie session store.
func Sessions(secret string) gin.HandlerFunc {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600 * 24 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(SessionName, store)
}

// Middleware assigns an identity on the first request of a session and
// exposes it on the gin context. Must run after Sessions.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(sessionKey).(string)
		if id == "" {
			id = New()
			session.Set(sessionKey, id)
			if err := session.Save(); err != nil {
				zap.L().Warn("identity.save", zap.Error(err))
			}
		}
		c.Set(ContextKey, id)
		c.Next()
	}
}

// New returns a colour tag such as "#3fa2c1".
func New() string {
	u := uuid.New()
	return fmt.Sprintf("#%x", u[:3])
}

func FromContext(c *gin.Context) string {
	return c.GetString(ContextKey)
}
