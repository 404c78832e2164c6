package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imrishuroy/go-shipment-tracker/internal/obs"
)

// CORS allows every origin. Preflight requests are answered with 204.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Idempotency-Key, X-Request-Id")
		h.Set("Access-Control-Expose-Headers", "Content-Length, X-Request-Id, Idempotent-Replayed")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID keeps a client-supplied X-Request-Id or generates one, stores it in
// the request context for obs logging and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(obs.WithRequestID(c.Request.Context(), rid))
		c.Header("X-Request-Id", rid)
		c.Next()
	}
}
