package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SubjectKey is the gin context key holding the verified token subject.
const SubjectKey = "auth.subject"

// Middleware returns a gin middleware that requires a valid bearer
// token on every request it wraps.
func Middleware(service *Service) gin.HandlerFunc {
	return requireToken(service, nil)
}

// MutatingOnly returns a gin middleware that lets reads through
// unauthenticated and requires a valid bearer token on everything else.
func MutatingOnly(service *Service) gin.HandlerFunc {
	return requireToken(service, func(c *gin.Context) bool {
		return c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead
	})
}

func requireToken(service *Service, skip func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if skip != nil && skip(c) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := service.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
