// README: Firebase bearer-token auth middleware; exposes caller identity to handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coload/internal/infra"
)

const (
	ctxUID     = "auth.uid"
	ctxCompany = "auth.company_id"
	ctxAdmin   = "auth.admin"
)

// Auth rejects requests without a valid "Bearer <id token>" header.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, token.UID)
		c.Set(ctxCompany, token.CompanyID())
		c.Set(ctxAdmin, token.IsAdmin())
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CallerIsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) string { return c.GetString(ctxUID) }

// CallerCompany is "" for users without a company.
func CallerCompany(c *gin.Context) string { return c.GetString(ctxCompany) }

func CallerIsAdmin(c *gin.Context) bool { return c.GetBool(ctxAdmin) }
