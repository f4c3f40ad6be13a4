package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/wikichat/llm"

var (
	latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	costBuckets    = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}
)

// Metrics 持有一次 LLM 调用要用到的 OTel instrument 与 tracer。
// 指标名：llm.request.total / llm.request.active / llm.request.duration /
// llm.token.total / llm.error.total / llm.cost.per_request。
type Metrics struct {
	tracer trace.Tracer

	requests metric.Int64Counter
	active   metric.Int64UpDownCounter
	latency  metric.Float64Histogram
	tokens   metric.Int64Counter
	failures metric.Int64Counter
	cost     metric.Float64Histogram
}

type metricsOptions struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

type MetricsOption func(*metricsOptions)

func WithMeterProvider(mp metric.MeterProvider) MetricsOption {
	return func(o *metricsOptions) { o.meterProvider = mp }
}

func WithTracerProvider(tp trace.TracerProvider) MetricsOption {
	return func(o *metricsOptions) { o.tracerProvider = tp }
}

// NewMetrics 默认取 otel 全局 provider，应在 telemetry.Init 之后调用
func NewMetrics(opts ...MetricsOption) (*Metrics, error) {
	o := metricsOptions{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.meterProvider.Meter(instrumentationName)

	var errs [6]error
	m := &Metrics{tracer: o.tracerProvider.Tracer(instrumentationName)}
	m.requests, errs[0] = meter.Int64Counter("llm.request.total",
		metric.WithDescription("LLM completion calls"), metric.WithUnit("{request}"))
	m.active, errs[1] = meter.Int64UpDownCounter("llm.request.active",
		metric.WithDescription("LLM completion calls in flight"), metric.WithUnit("{request}"))
	m.latency, errs[2] = meter.Float64Histogram("llm.request.duration",
		metric.WithDescription("LLM completion latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	m.tokens, errs[3] = meter.Int64Counter("llm.token.total",
		metric.WithDescription("Prompt and completion tokens"), metric.WithUnit("{token}"))
	m.failures, errs[4] = meter.Int64Counter("llm.error.total",
		metric.WithDescription("Failed LLM completion calls"), metric.WithUnit("{error}"))
	m.cost, errs[5] = meter.Float64Histogram("llm.cost.per_request",
		metric.WithDescription("Estimated USD cost per call"), metric.WithUnit("USD"),
		metric.WithExplicitBucketBoundaries(costBuckets...))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// Call 标识一次调用：purpose 为 relevance 或 summary
type Call struct {
	Provider string
	Model    string
	Purpose  string
}

func (c Call) attrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	kv := append([]attribute.KeyValue{
		attribute.String("provider", c.Provider),
		attribute.String("model", c.Model),
		attribute.String("purpose", c.Purpose),
	}, extra...)
	return metric.WithAttributes(kv...)
}

// Outcome 调用结果；ErrorCode 非空表示失败
type Outcome struct {
	Status           string
	ErrorCode        string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Duration         time.Duration
}

// Start 开启 llm.completion span 并把在途计数加一，必须与 Finish 成对调用
func (m *Metrics) Start(ctx context.Context, call Call) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, "llm.completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", call.Provider),
			attribute.String("llm.model", call.Model),
			attribute.String("llm.purpose", call.Purpose),
		))
	m.active.Add(ctx, 1, call.attrs())
	return ctx, span
}

// Finish 记录结果并结束 span
func (m *Metrics) Finish(ctx context.Context, span trace.Span, call Call, out Outcome) {
	defer span.End()

	m.active.Add(ctx, -1, call.attrs())
	withStatus := call.attrs(attribute.String("status", out.Status))
	m.requests.Add(ctx, 1, withStatus)
	m.latency.Record(ctx, out.Duration.Seconds(), withStatus)

	for kind, n := range map[string]int{"prompt": out.PromptTokens, "completion": out.CompletionTokens} {
		if n > 0 {
			m.tokens.Add(ctx, int64(n), call.attrs(attribute.String("type", kind)))
		}
	}
	if out.Cost > 0 {
		m.cost.Record(ctx, out.Cost, withStatus)
	}
	if out.ErrorCode != "" {
		m.failures.Add(ctx, 1, call.attrs(attribute.String("error_code", out.ErrorCode)))
		span.SetAttributes(attribute.String("error.code", out.ErrorCode))
		span.SetStatus(codes.Error, out.ErrorCode)
	}

	span.SetAttributes(
		attribute.String("llm.status", out.Status),
		attribute.Int("llm.tokens.prompt", out.PromptTokens),
		attribute.Int("llm.tokens.completion", out.CompletionTokens),
		attribute.Float64("llm.cost", out.Cost),
		attribute.Int64("llm.duration_ms", out.Duration.Milliseconds()),
	)
}

func (m *Metrics) Tracer() trace.Tracer { return m.tracer }
