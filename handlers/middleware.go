package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxProfileID = "profileID"
	ctxEmail     = "profileEmail"
)

// requireAuth verifies the bearer token and stashes the acting profile on
// the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		profileID, email, err := s.auth.VerifyToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxProfileID, profileID)
		c.Set(ctxEmail, email)
		c.Next()
	}
}

// actingProfile returns the authenticated profile id for the request.
func actingProfile(c *gin.Context) string {
	return c.GetString(ctxProfileID)
}
