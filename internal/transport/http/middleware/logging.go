package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"finrag/internal/logging"
	"finrag/internal/transport/http/response"
)

const HeaderRequestID = "X-Request-ID"

// RequestLogger tags each request with an id, stores a request-scoped logger
// in its context and logs the completed request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		reqLogger := logger.With(zap.String("request_id", requestID))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), reqLogger))

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			reqLogger.Error("request failed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			reqLogger.Warn("request rejected", fields...)
		default:
			reqLogger.Info("request served", fields...)
		}
	}
}

// Recovery turns panics into a 500 with the standard error body.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(c.Request.Context(), logger).Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "")
			}
		}()
		c.Next()
	}
}

// Timeout bounds the request context. Handlers and the upstream clients they
// call observe the deadline.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
