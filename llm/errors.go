package llm

import (
	"errors"
	"fmt"
)

// ErrorCode 决定 HTTP 映射、是否重试以及调用方的降级方式
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized    ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden       ErrorCode = "LLM_FORBIDDEN" // 含内容策略拒绝
	ErrRateLimited     ErrorCode = "LLM_RATE_LIMITED"
	ErrQuotaExceeded   ErrorCode = "LLM_QUOTA_EXCEEDED"
	ErrModelOverloaded ErrorCode = "LLM_MODEL_OVERLOADED"
	ErrUpstreamTimeout ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "LLM_UPSTREAM_ERROR" // 5xx 或网络错误
	ErrEmptyResponse   ErrorCode = "LLM_EMPTY_RESPONSE"
)

// Error Provider 返回的结构化错误
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// IsRetryable 错误链里没有 *Error 时返回 false
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

func emptyResponse(provider, format string, args ...any) *Error {
	return &Error{Code: ErrEmptyResponse, Message: fmt.Sprintf(format, args...), Provider: provider}
}
