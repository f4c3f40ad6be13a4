package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 是服务内统一的错误码。
type ErrorCode string

// 通用错误码
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// 领域错误码
const (
	ErrScrapeFailed     ErrorCode = "SCRAPE_FAILED"
	ErrEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	ErrVectorStoreError ErrorCode = "VECTOR_STORE_ERROR"
	ErrDocumentExists   ErrorCode = "DOCUMENT_EXISTS"
)

// Error 贯穿 rag / api 各层的结构化错误。HTTPStatus 为 0 时由 handler 按 Code 推断。
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Component  string    `json:"component,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	msg := "[" + string(e.Code) + "] " + e.Message
	if e.Cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 以下 With* 原地修改并返回 e，便于链式构造。

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithComponent 标记出错的后端，如 "qdrant"、"sql"、"embedding"。
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

func statusError(code ErrorCode, status int, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: status}
}

func NewInvalidRequestError(message string) *Error {
	return statusError(ErrInvalidRequest, http.StatusBadRequest, message)
}

func NewNotFoundError(message string) *Error {
	return statusError(ErrNotFound, http.StatusNotFound, message)
}

func NewInternalError(message string) *Error {
	return statusError(ErrInternalError, http.StatusInternalServerError, message)
}

// NewServiceUnavailableError 默认可重试。
func NewServiceUnavailableError(message string) *Error {
	return statusError(ErrServiceUnavailable, http.StatusServiceUnavailable, message).WithRetryable(true)
}

// AsError 在错误链中查找 *Error。
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// GetErrorCode 错误链中没有 *Error 时返回空码。
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
