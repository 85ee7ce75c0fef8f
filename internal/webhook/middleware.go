package webhook

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	headerRequestId = "X-Request-Id"
	ctxKeyRequestId = "request_id"
)

func requestIdFrom(c *gin.Context) string {
	return c.GetString(ctxKeyRequestId)
}

// RequestId tags every request with the caller's id or a fresh one
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(headerRequestId)
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(ctxKeyRequestId, rid)
		c.Header(headerRequestId, rid)
		c.Next()
	}
}

func Recover() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				zap.L().Error("HTTP handler panic",
					zap.String("request_id", requestIdFrom(c)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", err),
					zap.ByteString("stack", debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal error"))
			}
		}()
		c.Next()
	}
}

func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Info("HTTP request",
			zap.String("request_id", requestIdFrom(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// RateLimit sheds load above the limiter's rate. A nil limiter disables it.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			zap.L().Warn("HTTP rate limited",
				zap.String("request_id", requestIdFrom(c)),
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("too many requests"))
			return
		}
		c.Next()
	}
}

func errorBody(message string) gin.H {
	return gin.H{"error": message}
}
