package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/handler"
	"taskboard/pkg/logger"
	"taskboard/pkg/metrics"
	"taskboard/pkg/trace"
	"taskboard/pkg/util"
)

// Authenticator 将 bearer token 解析为已存在的用户
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "No token, authorization denied"})
			return
		}

		userID, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			status, msg := http.StatusUnauthorized, "Invalid or expired token"
			if e, ok := apperr.As(err); ok && e.Kind == apperr.KindUnauthorized {
				msg = e.Message
			} else if apperr.KindOf(err) == apperr.KindInternal {
				status, msg = http.StatusInternalServerError, "Server error"
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
			return
		}

		// 将 user_id 写入 context，供 handler 使用
		c.Set(handler.UserIDKey, userID)
		c.Next()
	}
}

// TraceMiddleware 读取或生成 X-Trace-ID，并写回响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeader(c.GetHeader(trace.HeaderName))
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName, traceID)
		c.Next()
	}
}

// RequestLogger 记录每个请求的方法、路径、状态码和耗时
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithTrace(c.Request.Context(), log).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// MetricsMiddleware 按路由模板记录请求耗时
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
