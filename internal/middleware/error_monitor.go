package middleware

import (
	"social-feed-backend/internal/errors"
	"social-feed-backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorMonitorMiddleware 把处理函数记录到 c.Errors 的错误汇总到 analytics 和 Prometheus
func ErrorMonitorMiddleware(analytics *errors.ErrorAnalytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		path := c.FullPath()
		if path == "" {
			// 未匹配路由不按原始路径统计
			path = "unmatched"
		}
		errCtx := errors.ErrorContext{
			RequestID: RequestIDFrom(c),
			Path:      path,
			Method:    c.Request.Method,
			Status:    c.Writer.Status(),
		}
		if userID, ok := UserID(c); ok {
			errCtx.UserID = userID
		}

		for _, e := range c.Errors {
			traced := errors.NewTracedError(e.Err, errCtx)
			analytics.Record(traced)
			metrics.RecordError(int(traced.Code))

			// 客户端错误只记录警告
			if traced.ServerSide() {
				zap.L().Error("请求处理错误", traced.Fields()...)
			} else {
				zap.L().Warn("请求处理错误", traced.Fields()...)
			}
		}
	}
}
