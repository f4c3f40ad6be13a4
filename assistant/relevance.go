package assistant

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/internal/cache"
	"github.com/BaSui01/wikichat/llm"
)

const instrumentationName = "github.com/BaSui01/wikichat/assistant"

// 相关性判定来源，用于指标标签
const (
	relevanceSourcePattern  = "pattern"
	relevanceSourceCache    = "cache"
	relevanceSourceLLM      = "llm"
	relevanceSourceFallback = "fallback"
)

// RelevanceOption 配置 RelevanceClassifier
type RelevanceOption func(*RelevanceClassifier)

// WithRelevanceCache 启用判定结果缓存
func WithRelevanceCache(c Cache, ttl time.Duration) RelevanceOption {
	return func(r *RelevanceClassifier) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithRelevanceMetrics 设置指标收集器
func WithRelevanceMetrics(m Metrics) RelevanceOption {
	return func(r *RelevanceClassifier) {
		if m != nil {
			r.metrics = m
		}
	}
}

// RelevanceClassifier 判断查询是否与主题人物相关。
// 会话短语和上下文追问直接放行，其余交给 LLM 回答 YES/NO。
// LLM 调用失败时按相关处理，避免误拦合法问题。
type RelevanceClassifier struct {
	provider llm.Provider
	persona  Persona
	params   config.CompletionConfig
	cache    Cache
	ttl      time.Duration
	metrics  Metrics
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewRelevanceClassifier 创建相关性判定器
func NewRelevanceClassifier(provider llm.Provider, persona Persona, params config.CompletionConfig, logger *zap.Logger, opts ...RelevanceOption) *RelevanceClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RelevanceClassifier{
		provider: provider,
		persona:  persona,
		params:   params,
		metrics:  nopMetrics{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger.With(zap.String("component", "relevance")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsRelevant 判断查询是否与主题相关，永不返回错误
func (r *RelevanceClassifier) IsRelevant(ctx context.Context, query string) bool {
	q := Normalize(query)

	if ClassifierGreetingPatterns.MatchPhrase(q) || ContextualPatterns.MatchSubstring(q) {
		r.metrics.RecordRelevanceCheck(relevanceSourcePattern, true)
		return true
	}

	key := cache.HashKey("relevance", q)
	if cached, ok := r.lookup(ctx, key); ok {
		r.metrics.RecordRelevanceCheck(relevanceSourceCache, cached)
		return cached
	}

	relevant, err := r.classify(ctx, query)
	if err != nil {
		r.logger.Error("error checking query relevance", zap.String("query", query), zap.Error(err))
		r.metrics.RecordRelevanceCheck(relevanceSourceFallback, true)
		return true
	}

	r.store(ctx, key, relevant)
	r.metrics.RecordRelevanceCheck(relevanceSourceLLM, relevant)
	return relevant
}

func (r *RelevanceClassifier) classify(ctx context.Context, query string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "llm.relevance",
		trace.WithAttributes(attribute.String("llm.model", r.params.Model)))
	defer span.End()

	req := llm.NewUserRequest(r.params.Model, r.persona.RelevancePrompt(query), r.params.MaxTokens, r.params.Temperature)
	req.Metadata = map[string]string{llm.MetadataPurpose: "relevance"}
	start := time.Now()
	resp, err := r.provider.Completion(ctx, req)
	var usage llm.ChatUsage
	if resp != nil {
		usage = resp.Usage
	}
	r.metrics.RecordLLMRequest("relevance", r.params.Model, llmStatus(err), time.Since(start), usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	answer, err := llm.FirstContent(resp)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	relevant := strings.ToUpper(answer) == "YES"
	span.SetAttributes(attribute.Bool("relevance.result", relevant))
	return relevant, nil
}

func (r *RelevanceClassifier) lookup(ctx context.Context, key string) (bool, bool) {
	if r.cache == nil {
		return false, false
	}
	var cached bool
	if err := r.cache.GetJSON(ctx, key, &cached); err != nil {
		if !cache.IsCacheMiss(err) {
			r.logger.Warn("relevance cache read failed", zap.Error(err))
		}
		r.metrics.RecordCacheMiss("relevance")
		return false, false
	}
	r.metrics.RecordCacheHit("relevance")
	return cached, true
}

func (r *RelevanceClassifier) store(ctx context.Context, key string, relevant bool) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, key, relevant, r.ttl); err != nil {
		r.logger.Warn("relevance cache write failed", zap.Error(err))
	}
}
