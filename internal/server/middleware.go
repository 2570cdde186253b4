package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pkceflow/pkg/logging"
)

// RequestIDHeader carries the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestedWithHeader must accompany state-changing requests. Browsers only
// send custom headers cross-origin after a CORS preflight, which this server
// never answers.
const RequestedWithHeader = "X-Requested-With"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID returns a context carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// requestID assigns every request a UUID, reusing a well-formed one sent by
// the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog logs each request at debug level. Query strings are left out
// since callbacks carry authorization codes.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		id, _ := RequestIDFromContext(c.Request.Context())
		logging.Debug("Server", "%s %s -> %d in %v (request %s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), id)
	}
}

// noStore stops browsers and proxies from caching token responses.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}

// requireRequestedWith rejects unsafe methods that lack RequestedWithHeader,
// so pages open in the user's browser cannot refresh or end the session.
func requireRequestedWith() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		if c.GetHeader(RequestedWithHeader) == "" {
			logging.Warn("Server", "Rejected %s %s without %s header", c.Request.Method, c.Request.URL.Path, RequestedWithHeader)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing_requested_with_header"})
			return
		}
		c.Next()
	}
}
