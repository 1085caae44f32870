package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxRequestIDLen = 64

// RequestID injects an X-Request-ID header into the request and response.
// Client-supplied ids that could corrupt log lines are replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		if r <= ' ' || r > '~' {
			return false
		}
	}
	return true
}

// Logger logs each HTTP request with method, path, status, size and latency,
// plus the owner id on authenticated routes. Recipient tokens are masked so
// signing links never reach the logs.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		requestID, _ := c.Get(ContextKeyRequestID)
		actor := "-"
		if owner, err := GetOwner(c); err == nil {
			actor = owner.ID.String()
		}
		log.Printf("[%s] %s %s %d %dB %s actor=%s",
			requestID,
			c.Request.Method,
			maskToken(c.Request.URL.Path),
			c.Writer.Status(),
			c.Writer.Size(),
			latency,
			actor,
		)
	}
}

// Recovery turns a panic into the standard 500 error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID, _ := c.Get(ContextKeyRequestID)
		log.Printf("[%s] panic serving %s %s: %v",
			requestID, c.Request.Method, maskToken(c.Request.URL.Path), recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "an internal error occurred"},
		})
	})
}

// maskToken hides the token segment of /sign/:token paths.
func maskToken(path string) string {
	const marker = "/sign/"
	i := strings.Index(path, marker)
	if i < 0 {
		return path
	}
	rest := path[i+len(marker):]
	end := strings.IndexByte(rest, '/')
	if end < 0 {
		end = len(rest)
	}
	if end <= 8 {
		return path
	}
	return path[:i+len(marker)] + rest[:4] + "..." + rest[end:]
}
