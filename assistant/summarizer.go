package assistant

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/internal/cache"
	"github.com/BaSui01/wikichat/llm"
)

// maxSummaryDocuments 参与摘要的文档数上限
const maxSummaryDocuments = 3

// SummarizerOption 配置 Summarizer
type SummarizerOption func(*Summarizer)

// WithSummaryCache 启用摘要缓存
func WithSummaryCache(c Cache, ttl time.Duration) SummarizerOption {
	return func(s *Summarizer) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithSummaryMetrics 设置指标收集器
func WithSummaryMetrics(m Metrics) SummarizerOption {
	return func(s *Summarizer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock 替换时钟，年龄计算使用
func WithClock(now func() time.Time) SummarizerOption {
	return func(s *Summarizer) {
		if now != nil {
			s.now = now
		}
	}
}

// Summarizer 生成回答文本。
// 会话短语和年龄问题直接给出固定回复，其余将检索到的段落交给 LLM 整理。
type Summarizer struct {
	provider llm.Provider
	persona  Persona
	params   config.CompletionConfig
	cache    Cache
	ttl      time.Duration
	metrics  Metrics
	now      func() time.Time
	group    singleflight.Group
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewSummarizer 创建摘要器
func NewSummarizer(provider llm.Provider, persona Persona, params config.CompletionConfig, logger *zap.Logger, opts ...SummarizerOption) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Summarizer{
		provider: provider,
		persona:  persona,
		params:   params,
		metrics:  nopMetrics{},
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger.With(zap.String("component", "summarizer")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize 按优先级生成回答，永不返回错误
func (s *Summarizer) Summarize(ctx context.Context, query string, documents []string) string {
	if reply, ok := s.cannedReply(Normalize(query)); ok {
		return reply
	}

	if len(documents) == 0 || documents[0] == "" {
		return s.persona.EmptyDocumentsReply()
	}

	top := documents
	if len(top) > maxSummaryDocuments {
		top = top[:maxSummaryDocuments]
	}
	combined := strings.Join(top, "\n\n")

	key := cache.HashKey("summary", append([]string{query}, top...)...)
	if cached, ok := s.lookup(ctx, key); ok {
		return cached
	}

	// 合并后的调用不随首个请求取消；各调用方仍可按自己的 ctx 放弃等待
	ch := s.group.DoChan(key, func() (any, error) {
		gctx := context.WithoutCancel(ctx)
		summary, err := s.generate(gctx, query, combined)
		if err == nil {
			s.store(gctx, key, summary)
		}
		return summary, err
	})

	select {
	case <-ctx.Done():
		s.logger.Warn("summary abandoned", zap.String("query", query), zap.Error(ctx.Err()))
		return SummaryErrorReply
	case res := <-ch:
		if res.Err != nil {
			s.logger.Error("error summarizing results", zap.String("query", query), zap.Error(res.Err))
			return SummaryErrorReply
		}
		return res.Val.(string)
	}
}

// cannedReply 返回会话短语与年龄问题的固定回复，q 需已归一化
func (s *Summarizer) cannedReply(q string) (string, bool) {
	switch {
	case GreetingPatterns.MatchPhrase(q):
		return s.persona.GreetingReply(), true
	case FarewellPatterns.MatchPhrase(q):
		return s.persona.FarewellReply(), true
	case AcknowledgmentPatterns.MatchPhrase(q):
		return s.persona.AcknowledgmentReply(), true
	case AgePatterns.MatchSubstring(q):
		return s.persona.AgeReply(s.now()), true
	}
	return "", false
}

func (s *Summarizer) generate(ctx context.Context, query, combined string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "llm.summary",
		trace.WithAttributes(attribute.String("llm.model", s.params.Model)))
	defer span.End()

	req := llm.NewUserRequest(s.params.Model, s.persona.SummaryPrompt(query, combined), s.params.MaxTokens, s.params.Temperature)
	req.Metadata = map[string]string{llm.MetadataPurpose: "summary"}
	start := time.Now()
	resp, err := s.provider.Completion(ctx, req)
	var usage llm.ChatUsage
	if resp != nil {
		usage = resp.Usage
	}
	s.metrics.RecordLLMRequest("summary", s.params.Model, llmStatus(err), time.Since(start), usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	content, err := llm.FirstContent(resp)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return content, nil
}

func (s *Summarizer) lookup(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var cached string
	if err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		if !cache.IsCacheMiss(err) {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheMiss("summary")
		return "", false
	}
	s.metrics.RecordCacheHit("summary")
	return cached, true
}

func (s *Summarizer) store(ctx context.Context, key, summary string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, summary, s.ttl); err != nil {
		s.logger.Warn("summary cache write failed", zap.Error(err))
	}
}
