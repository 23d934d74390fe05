package auth

import (
	"net/http"
	"strings"

	"hesapduragi/internal/models"

	"github.com/gin-gonic/gin"
)

// Context keys set by the middleware
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Required rejects requests without a valid bearer token
func (m *Manager) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "auth",
				"message": "Oturum açmanız gerekiyor",
			})
			return
		}

		claims, err := m.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "auth",
				"message": "Geçersiz veya süresi dolmuş oturum",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// Optional attaches claims when a valid token is present; guests pass through
func (m *Manager) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := m.Verify(token); err == nil {
				c.Set(ContextUserID, claims.UserID)
				c.Set(ContextRole, claims.Role)
			}
		}
		c.Next()
	}
}

// AdminOnly rejects non-admin callers; must run after Required
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(ContextRole); role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Bu işlem için yetkiniz yok",
			})
			return
		}
		c.Next()
	}
}

// UserIDFrom extracts the authenticated user ID, if any
func UserIDFrom(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
