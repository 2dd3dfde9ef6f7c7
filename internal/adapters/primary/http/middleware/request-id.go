package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// RequestIDKey is the gin context key the request id is stored under. The
// logging middleware reads it back when emitting the completion line.
const RequestIDKey = "request_id"

// RequestID propagates the caller's X-Request-ID, minting one when absent, and
// echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(headerRequestID, id)

		c.Next()
	}
}
