package observability

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/wikichat/llm"
)

const unknownPurpose = "unknown"

// InstrumentedProvider 在 llm.Provider 外层记录 OTel 指标、Span 与调用成本。
type InstrumentedProvider struct {
	next    llm.Provider
	metrics *Metrics
	costs   *CostTracker
}

// Instrument 包装 Provider。costs 为 nil 时不计算成本。
func Instrument(next llm.Provider, metrics *Metrics, costs *CostTracker) *InstrumentedProvider {
	return &InstrumentedProvider{next: next, metrics: metrics, costs: costs}
}

func (p *InstrumentedProvider) Name() string { return p.next.Name() }

func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.next.HealthCheck(ctx)
}

// Completion 转发请求并记录结果
func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	call := Call{
		Provider: p.next.Name(),
		Model:    req.Model,
		Purpose:  req.Metadata[llm.MetadataPurpose],
	}
	if call.Purpose == "" {
		call.Purpose = unknownPurpose
	}

	ctx, span := p.metrics.Start(ctx, call)
	start := time.Now()
	resp, err := p.next.Completion(ctx, req)

	out := Outcome{Status: "success", Duration: time.Since(start)}
	if err != nil {
		out.Status = "error"
		out.ErrorCode = errorCode(err)
		span.RecordError(err)
	}
	if resp != nil {
		out.PromptTokens = resp.Usage.PromptTokens
		out.CompletionTokens = resp.Usage.CompletionTokens
		if p.costs != nil {
			out.Cost = p.costs.Track(call.Purpose, req.Model, out.PromptTokens, out.CompletionTokens)
		}
	}
	p.metrics.Finish(ctx, span, call, out)
	return resp, err
}

func errorCode(err error) string {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(llm.ErrUpstreamTimeout)
	}
	return string(llm.ErrUpstreamError)
}
