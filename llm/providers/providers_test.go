package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/wikichat/llm"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		msg           string
		expectedCode  llm.ErrorCode
		expectedRetry bool
	}{
		{"401 Unauthorized", http.StatusUnauthorized, "Invalid API key", llm.ErrUnauthorized, false},
		{"403 Forbidden", http.StatusForbidden, "content policy", llm.ErrForbidden, false},
		{"429 Rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"400 quota", http.StatusBadRequest, "You exceeded your current QUOTA", llm.ErrQuotaExceeded, false},
		{"400 credit", http.StatusBadRequest, "insufficient credit", llm.ErrQuotaExceeded, false},
		{"400 invalid", http.StatusBadRequest, "messages is required", llm.ErrInvalidRequest, false},
		{"408 timeout", http.StatusRequestTimeout, "", llm.ErrUpstreamTimeout, true},
		{"504 timeout", http.StatusGatewayTimeout, "", llm.ErrUpstreamTimeout, true},
		{"502 bad gateway", http.StatusBadGateway, "", llm.ErrUpstreamError, true},
		{"503 unavailable", http.StatusServiceUnavailable, "", llm.ErrUpstreamError, true},
		{"529 overloaded", 529, "overloaded", llm.ErrModelOverloaded, true},
		{"500 internal", http.StatusInternalServerError, "", llm.ErrUpstreamError, true},
		{"404 not found", http.StatusNotFound, "no such model", llm.ErrUpstreamError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "openai")
			require.NotNil(t, err)
			assert.Equal(t, tt.expectedCode, err.Code)
			assert.Equal(t, tt.expectedRetry, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, tt.msg, err.Message)
			assert.Equal(t, "openai", err.Provider)
			assert.Equal(t, tt.expectedRetry, llm.IsRetryable(err))
		})
	}
}

// 任意 5xx 状态码都应可重试，任意 4xx（除 408/429）都不可重试
func TestMapHTTPError_RetryableFlagProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("5xx is retryable", prop.ForAll(
		func(status int, msg string) bool {
			return MapHTTPError(status, msg, "p").Retryable
		},
		gen.IntRange(500, 599),
		gen.AlphaString(),
	))

	properties.Property("4xx except 408/429 is not retryable", prop.ForAll(
		func(status int, msg string) bool {
			if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
				return true
			}
			return !MapHTTPError(status, msg, "p").Retryable
		},
		gen.IntRange(400, 499),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestNetworkError(t *testing.T) {
	err := NetworkError(assert.AnError, "openai")
	assert.Equal(t, llm.ErrUpstreamError, err.Code)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
	assert.True(t, err.Retryable)
	assert.Equal(t, assert.AnError.Error(), err.Message)
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai error with type", `{"error":{"message":"bad key","type":"invalid_request_error"}}`, "bad key (type: invalid_request_error)"},
		{"openai error without type", `{"error":{"message":"bad key"}}`, "bad key"},
		{"plain text", "  upstream exploded \n", "upstream exploded"},
		{"json without message", `{"detail":"x"}`, `{"detail":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadErrorMessage(strings.NewReader(tt.body)))
		})
	}
}

func TestToWireMessages(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "who is he?", Name: "alice"},
		{Role: llm.RoleAssistant, Content: "a singer"},
	}
	out := ToWireMessages(msgs)
	require.Len(t, out, 3)
	for i, m := range msgs {
		assert.Equal(t, string(m.Role), out[i].Role)
		assert.Equal(t, m.Content, out[i].Content)
		assert.Equal(t, m.Name, out[i].Name)
	}
	assert.Empty(t, ToWireMessages(nil))
}

func TestCompletionResponse_ChatResponse(t *testing.T) {
	oa := CompletionResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-3.5-turbo",
		Choices: []CompletionChoice{
			{Index: 0, FinishReason: "stop", Message: WireMessage{Role: "assistant", Content: "YES"}},
		},
		Usage: &CompletionUsage{PromptTokens: 10, CompletionTokens: 1, TotalTokens: 11},
	}

	resp := oa.ChatResponse("openai")
	assert.Equal(t, "chatcmpl-1", resp.ID)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "gpt-3.5-turbo", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, llm.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "YES", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 11, resp.Usage.TotalTokens)

	oa.Usage = nil
	assert.Zero(t, oa.ChatResponse("openai").Usage.TotalTokens)
}

func TestChooseModel(t *testing.T) {
	tests := []struct {
		name     string
		req      *llm.ChatRequest
		def      string
		fallback string
		want     string
	}{
		{"request wins", &llm.ChatRequest{Model: "req"}, "def", "fb", "req"},
		{"default when request empty", &llm.ChatRequest{}, "def", "fb", "def"},
		{"fallback when both empty", &llm.ChatRequest{}, "", "fb", "fb"},
		{"nil request", nil, "def", "fb", "def"},
		{"all empty", nil, "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseModel(tt.req, tt.def, tt.fallback))
		})
	}
}

func TestBearerTokenHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	require.NoError(t, err)
	BearerTokenHeaders(req, "sk-test")
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}
