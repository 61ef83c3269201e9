package restexecutor

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// OriginAllowList rejects requests carrying an Origin header that is not in
// allowed. An empty list allows every origin.
func OriginAllowList(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(allowed) == 0 || origin == "" {
			c.Next()
			return
		}
		if !slices.Contains(allowed, origin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
		c.Next()
	}
}
