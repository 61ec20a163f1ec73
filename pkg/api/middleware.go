package api

import "github.com/gin-gonic/gin"

// securityHeaders sets standard security response headers, mirroring the
// teacher's echo-based securityHeaders middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
