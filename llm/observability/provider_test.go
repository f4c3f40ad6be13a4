package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/BaSui01/wikichat/llm"
	"github.com/BaSui01/wikichat/testutil/mocks"
)

type otelHarness struct {
	reader   *sdkmetric.ManualReader
	recorder *tracetest.SpanRecorder
	metrics  *Metrics
}

func newOtelHarness(t *testing.T) *otelHarness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()
	m, err := NewMetrics(
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))),
	)
	require.NoError(t, err)
	return &otelHarness{reader: reader, recorder: recorder, metrics: m}
}

func (h *otelHarness) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func relevanceRequest() *llm.ChatRequest {
	req := llm.NewUserRequest("gpt-3.5-turbo", "is this relevant?", 10, 0.1)
	req.Metadata = map[string]string{llm.MetadataPurpose: "relevance"}
	return req
}

func TestInstrumentedProvider_Success(t *testing.T) {
	h := newOtelHarness(t)
	mock := mocks.NewMockProvider().WithResponse("YES").WithTokenUsage(120, 1)

	calc := NewCostCalculator()
	calc.SetPrice("gpt-3.5-turbo", 0.001, 0.002)
	tracker := NewCostTracker(calc)

	p := Instrument(mock, h.metrics, tracker)
	assert.Equal(t, "mock", p.Name())

	resp, err := p.Completion(context.Background(), relevanceRequest())
	require.NoError(t, err)
	content, err := llm.FirstContent(resp)
	require.NoError(t, err)
	assert.Equal(t, "YES", content)

	assert.Equal(t, int64(1), h.sum(t, "llm.request.total"))
	assert.Equal(t, int64(121), h.sum(t, "llm.token.total"))
	assert.Equal(t, int64(0), h.sum(t, "llm.error.total"))
	assert.Equal(t, int64(0), h.sum(t, "llm.request.active"))

	spans := h.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.completion", spans[0].Name())

	summary := tracker.Summary()
	assert.Equal(t, 1, summary.RequestCount)
	assert.Equal(t, 121, summary.TotalTokens)
	assert.Greater(t, summary.TotalCost, 0.0)
	assert.Equal(t, 1, summary.ByPurpose["relevance"].Requests)
}

func TestInstrumentedProvider_Error(t *testing.T) {
	h := newOtelHarness(t)
	upstream := &llm.Error{Code: llm.ErrRateLimited, Message: "slow down", HTTPStatus: 429, Retryable: true}
	p := Instrument(mocks.NewMockProvider().WithError(upstream), h.metrics, nil)

	_, err := p.Completion(context.Background(), relevanceRequest())
	require.ErrorIs(t, err, upstream)

	assert.Equal(t, int64(1), h.sum(t, "llm.request.total"))
	assert.Equal(t, int64(1), h.sum(t, "llm.error.total"))

	spans := h.recorder.Ended()
	require.Len(t, spans, 1)
	var code string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "error.code" {
			code = kv.Value.AsString()
		}
	}
	assert.Equal(t, string(llm.ErrRateLimited), code)
}

func TestInstrumentedProvider_UnknownPurpose(t *testing.T) {
	h := newOtelHarness(t)
	p := Instrument(mocks.NewMockProvider().WithResponse("ok"), h.metrics, nil)

	_, err := p.Completion(context.Background(), llm.NewUserRequest("gpt-4o-mini", "hi", 5, 0))
	require.NoError(t, err)

	spans := h.recorder.Ended()
	require.Len(t, spans, 1)
	var purpose string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "llm.purpose" {
			purpose = kv.Value.AsString()
		}
	}
	assert.Equal(t, unknownPurpose, purpose)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, string(llm.ErrUnauthorized), errorCode(&llm.Error{Code: llm.ErrUnauthorized}))
	assert.Equal(t, string(llm.ErrUpstreamTimeout), errorCode(context.DeadlineExceeded))
	assert.Equal(t, string(llm.ErrUpstreamError), errorCode(assert.AnError))
}
