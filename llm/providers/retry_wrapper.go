package providers

import (
	"context"
	"time"

	"github.com/BaSui01/wikichat/llm"
	"github.com/BaSui01/wikichat/llm/retry"
	"go.uber.org/zap"
)

// RetryConfig 控制摘要调用的退避重试，对应配置 llm.max_retries。
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	// RetryableOnly 为 true 时只重试 llm.Error.Retryable 的错误（429 / 5xx / 超时）。
	RetryableOnly bool `json:"retryable_only"`
}

// DefaultRetryConfig 面向交互式问答：最多 2 次重试，总等待控制在秒级。
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		RetryableOnly: true,
	}
}

func (c RetryConfig) policy() *retry.RetryPolicy {
	p := &retry.RetryPolicy{
		MaxRetries:   c.MaxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.BackoffFactor,
		Jitter:       true,
	}
	if c.RetryableOnly {
		p.ShouldRetry = llm.IsRetryable
	}
	return p
}

// RetryableProvider 给任意 llm.Provider 套上指数退避。只有 Completion 会重试。
type RetryableProvider struct {
	llm.Provider
	retryer retry.Retryer
}

var _ llm.Provider = (*RetryableProvider)(nil)

func NewRetryableProvider(inner llm.Provider, cfg RetryConfig, logger *zap.Logger) *RetryableProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "retry_provider"), zap.String("provider", inner.Name()))
	return &RetryableProvider{
		Provider: inner,
		retryer:  retry.NewBackoffRetryer(cfg.policy(), logger),
	}
}

func (p *RetryableProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return retry.Value(ctx, p.retryer, func() (*llm.ChatResponse, error) {
		return p.Provider.Completion(ctx, req)
	})
}
