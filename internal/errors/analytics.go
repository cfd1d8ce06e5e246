package errors

import (
	"fmt"
	"sync"
	"time"
)

// ErrorAnalytics 错误分析
type ErrorAnalytics struct {
	mu            sync.RWMutex
	TotalErrors   int
	ServerErrors  int
	ErrorsByCode  map[ErrorCode]int
	ErrorsByPath  map[string]int
	ErrorPatterns map[string]int
	LastErrorTime time.Time
}

// NewErrorAnalytics 创建错误分析器
func NewErrorAnalytics() *ErrorAnalytics {
	return &ErrorAnalytics{
		ErrorsByCode:  make(map[ErrorCode]int),
		ErrorsByPath:  make(map[string]int),
		ErrorPatterns: make(map[string]int),
	}
}

// Record 记录错误
func (a *ErrorAnalytics) Record(err *TracedError) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.TotalErrors++
	if err.ServerSide() {
		a.ServerErrors++
	}
	a.ErrorsByCode[err.Code]++
	a.ErrorsByPath[err.Context.Path]++
	a.LastErrorTime = err.Timestamp
	a.ErrorPatterns[identifyPattern(err)]++
}

// identifyPattern 按 "方法 路由 -> 错误码" 归类
func identifyPattern(err *TracedError) string {
	return fmt.Sprintf("%s %s -> %d", err.Context.Method, err.Context.Path, err.Code)
}

// Count 返回某错误码的累计次数
func (a *ErrorAnalytics) Count(code ErrorCode) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ErrorsByCode[code]
}

// GetStats 获取统计信息
func (a *ErrorAnalytics) GetStats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byCode := make(map[string]int, len(a.ErrorsByCode))
	for code, n := range a.ErrorsByCode {
		byCode[fmt.Sprint(int(code))] = n
	}
	byPath := make(map[string]int, len(a.ErrorsByPath))
	for path, n := range a.ErrorsByPath {
		byPath[path] = n
	}
	patterns := make(map[string]int, len(a.ErrorPatterns))
	for pattern, n := range a.ErrorPatterns {
		patterns[pattern] = n
	}

	stats := map[string]interface{}{
		"total_errors":   a.TotalErrors,
		"server_errors":  a.ServerErrors,
		"errors_by_code": byCode,
		"errors_by_path": byPath,
		"error_patterns": patterns,
	}
	if !a.LastErrorTime.IsZero() {
		stats["last_error"] = a.LastErrorTime
	}
	return stats
}
