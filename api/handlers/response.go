package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/types"
)

// RequestIDHeader 由 RequestID 中间件写入响应头，响应信封从这里取 request_id。
const RequestIDHeader = "X-Request-ID"

// Response 所有 JSON 端点共用的信封
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusByCode 错误未显式携带 HTTP 状态时的映射，缺省 500
var statusByCode = map[types.ErrorCode]int{
	types.ErrInvalidRequest:     http.StatusBadRequest,
	types.ErrDocumentExists:     http.StatusBadRequest,
	types.ErrUnauthorized:       http.StatusUnauthorized,
	types.ErrForbidden:          http.StatusForbidden,
	types.ErrNotFound:           http.StatusNotFound,
	types.ErrRateLimited:        http.StatusTooManyRequests,
	types.ErrTimeout:            http.StatusGatewayTimeout,
	types.ErrServiceUnavailable: http.StatusServiceUnavailable,
	types.ErrUpstreamError:      http.StatusBadGateway,
	types.ErrScrapeFailed:       http.StatusBadGateway,
	types.ErrEmbeddingFailed:    http.StatusBadGateway,
}

func statusForCode(code types.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON 写出 data 本身，不套信封
func WriteJSON(w http.ResponseWriter, status int, data any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	// 状态码已发出，编码错误无处可报
	_ = json.NewEncoder(w).Encode(data)
}

func writeEnvelope(w http.ResponseWriter, status int, resp Response) {
	resp.Timestamp = time.Now().UTC()
	resp.RequestID = w.Header().Get(RequestIDHeader)
	WriteJSON(w, status, resp)
}

// WriteEnvelope 任意状态码的信封响应，/health 与 /ready 的 503 也走这里
func WriteEnvelope(w http.ResponseWriter, status int, success bool, data any) {
	writeEnvelope(w, status, Response{Success: success, Data: data})
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteEnvelope(w, http.StatusOK, true, data)
}

// WriteError 以错误信封写出 err。状态码优先取 err.HTTPStatus；
// logger 非空时 5xx 记 Error，其余记 Warn。
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = statusForCode(err.Code)
	}

	info := &ErrorInfo{Code: string(err.Code), Message: err.Message, Retryable: err.Retryable}
	if err.Cause != nil {
		info.Details = err.Cause.Error()
	}

	if logger != nil {
		log := logger.Warn
		if status >= http.StatusInternalServerError {
			log = logger.Error
		}
		log("API error",
			zap.String("code", info.Code),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Error(err.Cause))
	}

	writeEnvelope(w, status, Response{Error: info})
}

func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// WriteRequestError 以 status 返回下游错误，错误链里的 *types.Error 决定错误码。
// 文档与检索接口对存储/向量化失败统一返回 400。
func WriteRequestError(w http.ResponseWriter, status int, err error, logger *zap.Logger) {
	var apiErr *types.Error
	if !errors.As(err, &apiErr) {
		WriteError(w, types.NewError(types.ErrInvalidRequest, err.Error()).WithHTTPStatus(status), logger)
		return
	}
	out := *apiErr
	out.HTTPStatus = status
	if out.Cause == nil && err != apiErr {
		out.Cause = err
	}
	WriteError(w, &out, logger)
}
