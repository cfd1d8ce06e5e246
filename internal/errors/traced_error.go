package errors

import (
	"time"

	"go.uber.org/zap"
)

// TracedError 是带请求上下文的 AppError，由错误监控中间件生成
type TracedError struct {
	*AppError
	Timestamp time.Time
	Context   ErrorContext
}

// ErrorContext 错误发生时的请求信息。Path 是路由模板而不是原始路径。
type ErrorContext struct {
	RequestID string
	UserID    int
	Path      string
	Method    string
	Status    int
}

// NewTracedError 创建带追踪信息的错误，非 AppError 视为内部错误
func NewTracedError(err error, ctx ErrorContext) *TracedError {
	appErr, ok := As(err)
	if !ok {
		appErr = &AppError{
			Code:    ErrInternal,
			Message: err.Error(),
			Err:     err,
		}
	}

	return &TracedError{
		AppError:  appErr,
		Timestamp: time.Now(),
		Context:   ctx,
	}
}

// Fields 返回用于日志的结构化字段
func (e *TracedError) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("request_id", e.Context.RequestID),
		zap.Int("error_code", int(e.Code)),
		zap.String("error_message", e.Message),
		zap.String("path", e.Context.Path),
		zap.String("method", e.Context.Method),
		zap.Int("status", e.Context.Status),
	}
	if e.Context.UserID > 0 {
		fields = append(fields, zap.Int("user_id", e.Context.UserID))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	return fields
}

// ServerSide 表示错误是否由服务端引起
func (e *TracedError) ServerSide() bool {
	return e.Context.Status >= 500
}
