package providers

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/wikichat/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyProvider struct {
	calls atomic.Int32
	errs  []error
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (f *flakyProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	n := int(f.calls.Add(1)) - 1
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return &llm.ChatResponse{Model: req.Model, Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: "ok"}}}}, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		RetryableOnly: true,
	}
}

func TestRetryableProvider_RetriesTransientErrors(t *testing.T) {
	inner := &flakyProvider{errs: []error{
		MapHTTPError(http.StatusServiceUnavailable, "busy", "flaky"),
		MapHTTPError(http.StatusTooManyRequests, "slow", "flaky"),
	}}
	p := NewRetryableProvider(inner, fastRetryConfig(), zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", resp.Model)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetryableProvider_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &flakyProvider{errs: []error{
		MapHTTPError(http.StatusUnauthorized, "bad key", "flaky"),
	}}
	p := NewRetryableProvider(inner, fastRetryConfig(), nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	require.Error(t, err)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetryableProvider_GivesUpAfterMaxRetries(t *testing.T) {
	busy := MapHTTPError(http.StatusBadGateway, "down", "flaky")
	inner := &flakyProvider{errs: []error{busy, busy, busy, busy}}
	p := NewRetryableProvider(inner, fastRetryConfig(), zap.NewNop())

	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetryableProvider_Delegates(t *testing.T) {
	p := NewRetryableProvider(&flakyProvider{}, DefaultRetryConfig(), zap.NewNop())
	assert.Equal(t, "flaky", p.Name())
	st, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Healthy)
}

func TestRetryConfig_Policy(t *testing.T) {
	cfg := fastRetryConfig()
	p := cfg.policy()
	assert.Equal(t, 2, p.MaxRetries)
	require.NotNil(t, p.ShouldRetry)
	assert.False(t, p.ShouldRetry(MapHTTPError(http.StatusBadRequest, "bad", "flaky")))

	cfg.RetryableOnly = false
	assert.Nil(t, cfg.policy().ShouldRetry)
}
