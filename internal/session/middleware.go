package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextKey = "session"

// RequireSession enforces a gateway bearer token and loads its session.
func RequireSession(tokens *Tokens, manager *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		sessionID, err := tokens.Parse(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sess, err := manager.Load(c.Request.Context(), sessionID)
		if errors.Is(err, ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}

		c.Set(contextKey, sess)
		c.Next()
	}
}

// RequireAdmin rejects sessions whose user is not an admin. It must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := FromGin(c).RequireAdmin(); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// FromGin returns the session loaded by RequireSession.
func FromGin(c *gin.Context) *Context {
	return c.MustGet(contextKey).(*Context)
}
