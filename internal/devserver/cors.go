package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultOrigin is the front-end development origin allowed when none is configured
const DefaultOrigin = "http://localhost:8081"

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Origin, X-Requested-With, Content-Type, Accept, Authorization"
)

// CORS sets the cross-origin headers for the single allowed origin and answers preflight
// requests directly with 200.
func CORS(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = DefaultOrigin
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
