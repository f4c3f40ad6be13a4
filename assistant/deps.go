package assistant

import (
	"context"
	"time"
)

// Cache 结果缓存，*cache.Manager 满足此接口
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Metrics 问答链路指标，*metrics.Collector 满足此接口
type Metrics interface {
	RecordLLMRequest(purpose, model, status string, duration time.Duration, promptTokens, completionTokens int)
	RecordRelevanceCheck(source string, relevant bool)
	RecordQuery(route string, duration time.Duration)
	RecordRetrieved(n int)
	RecordIngest(status string, chunks int, duration time.Duration)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

type nopMetrics struct{}

func (nopMetrics) RecordLLMRequest(string, string, string, time.Duration, int, int) {}
func (nopMetrics) RecordRelevanceCheck(string, bool)                                {}
func (nopMetrics) RecordQuery(string, time.Duration)                                {}
func (nopMetrics) RecordRetrieved(int)                                              {}
func (nopMetrics) RecordIngest(string, int, time.Duration)                          {}
func (nopMetrics) RecordCacheHit(string)                                            {}
func (nopMetrics) RecordCacheMiss(string)                                           {}

// NopMetrics 不记录任何指标
func NopMetrics() Metrics { return nopMetrics{} }

func llmStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
