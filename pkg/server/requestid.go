package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the request correlation id,
// echoed back on the response so admin error bodies can include it
// (spec §7 "Admin errors additionally include a requestId").
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns a request id to every admin request,
// reusing an inbound X-Request-ID if the caller already set one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Set(RequestIDHeader, requestID)
		c.Next()
	}
}

// RequestID reads the correlation id assigned by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	v, _ := c.Get(RequestIDHeader)
	id, _ := v.(string)
	return id
}

// AbortWithError writes a JSON error body including the request id,
// matching the admin error envelope shape of spec §7.
func AbortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": RequestID(c),
		},
	})
}
