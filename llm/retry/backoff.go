package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy 描述外部调用（抓取 Wikipedia、Embedding、Chat Completion）的退避策略。
type RetryPolicy struct {
	MaxRetries   int           // 0 表示只调用一次
	InitialDelay time.Duration // 第一次重试前的等待
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool // ±25% 随机抖动

	// RetryableErrors 非空时只有 errors.Is 命中的错误才会重试。
	RetryableErrors []error
	// ShouldRetry 优先于 RetryableErrors。
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy 3 次重试，1s 起步，翻倍，封顶 30s。
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// WithMaxRetries 返回副本，不修改接收者。
func (p RetryPolicy) WithMaxRetries(n int) *RetryPolicy {
	p.MaxRetries = n
	return &p
}

// normalize 把非法取值替换为默认值。
func (p *RetryPolicy) normalize() {
	def := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
}

// Retryer 按策略重复执行 fn。带返回值的调用见 Value。
type Retryer interface {
	Do(ctx context.Context, fn func() error) error
}

type backoffRetryer struct {
	policy *RetryPolicy
	logger *zap.Logger
}

// NewBackoffRetryer policy 为 nil 时使用 DefaultRetryPolicy。
func NewBackoffRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	policy.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: policy, logger: logger}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	err := fn()
	for attempt := 1; err != nil; attempt++ {
		if !r.retryable(err) {
			return err
		}
		if attempt > r.policy.MaxRetries {
			if r.policy.MaxRetries == 0 {
				return err
			}
			r.logger.Warn("重试次数耗尽",
				zap.Int("attempts", attempt),
				zap.Error(err))
			return fmt.Errorf("重试 %d 次后仍失败: %w", r.policy.MaxRetries, err)
		}

		d := r.delay(attempt)
		r.logger.Debug("重试中",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", r.policy.MaxRetries),
			zap.Duration("delay", d),
			zap.Error(err))
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, d)
		}
		if werr := sleep(ctx, d); werr != nil {
			return fmt.Errorf("重试被取消: %w", werr)
		}

		if err = fn(); err == nil {
			r.logger.Info("重试成功", zap.Int("attempt", attempt))
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// delay = InitialDelay * Multiplier^(attempt-1)，不超过 MaxDelay，也不低于 InitialDelay。
func (r *backoffRetryer) delay(attempt int) time.Duration {
	p := r.policy
	d := math.Min(float64(p.InitialDelay)*math.Pow(p.Multiplier, float64(attempt-1)), float64(p.MaxDelay))
	if p.Jitter {
		d += d * 0.25 * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, float64(p.InitialDelay)))
}

func (r *backoffRetryer) retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case IsRetryableError(err):
		return true
	case r.policy.ShouldRetry != nil:
		return r.policy.ShouldRetry(err)
	case len(r.policy.RetryableErrors) == 0:
		return true
	}
	for _, target := range r.policy.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RetryableError 标记一个总是允许重试的错误，例如抓取时的 429/5xx。
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

func IsRetryableError(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// WrapRetryable nil 原样返回。
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}
