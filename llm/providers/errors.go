package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/wikichat/llm"
)

type statusMapping struct {
	code      llm.ErrorCode
	retryable bool
}

var statusCodes = map[int]statusMapping{
	http.StatusUnauthorized:       {llm.ErrUnauthorized, false},
	http.StatusForbidden:          {llm.ErrForbidden, false},
	http.StatusTooManyRequests:    {llm.ErrRateLimited, true},
	http.StatusRequestTimeout:     {llm.ErrUpstreamTimeout, true},
	http.StatusGatewayTimeout:     {llm.ErrUpstreamTimeout, true},
	http.StatusBadGateway:         {llm.ErrUpstreamError, true},
	http.StatusServiceUnavailable: {llm.ErrUpstreamError, true},
	529:                           {llm.ErrModelOverloaded, true},
}

var quotaKeywords = []string{"quota", "credit", "limit"}

// MapHTTPError 把上游状态码翻译成 llm.Error。未列出的 5xx 可重试，4xx 不可重试；
// 400 中带额度关键字的归为 ErrQuotaExceeded。
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	e := &llm.Error{Message: msg, HTTPStatus: status, Provider: provider}
	if m, ok := statusCodes[status]; ok {
		e.Code, e.Retryable = m.code, m.retryable
		return e
	}
	if status == http.StatusBadRequest {
		e.Code = llm.ErrInvalidRequest
		lower := strings.ToLower(msg)
		for _, kw := range quotaKeywords {
			if strings.Contains(lower, kw) {
				e.Code = llm.ErrQuotaExceeded
				break
			}
		}
		return e
	}
	e.Code = llm.ErrUpstreamError
	e.Retryable = status >= 500
	return e
}

// NetworkError 连接失败、读超时等传输层错误，一律按 502 处理并允许重试。
func NetworkError(err error, provider string) *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   provider,
	}
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ReadErrorMessage 优先解析 {"error":{"message":...}}，否则返回去空白的原文（最多 64KB）。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}
	var env errorEnvelope
	if json.Unmarshal(data, &env) != nil || env.Error.Message == "" {
		return strings.TrimSpace(string(data))
	}
	if env.Error.Type == "" {
		return env.Error.Message
	}
	return fmt.Sprintf("%s (type: %s)", env.Error.Message, env.Error.Type)
}

// SafeCloseBody 忽略关闭错误。
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
