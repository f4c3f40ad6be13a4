package assistant

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/rag"
	"github.com/BaSui01/wikichat/types"
)

// DefaultNResults 默认检索条数
const DefaultNResults = 5

// Route 查询最终走向
type Route string

const (
	RouteOffTopic  Route = "off_topic"
	RouteShortcut  Route = "shortcut"
	RouteAge       Route = "age"
	RouteNoResults Route = "no_results"
	RouteRAG       Route = "rag"
)

// Retriever 按文本检索，*rag.Collection 满足此接口
type Retriever interface {
	Query(ctx context.Context, text string, n int) (*rag.QueryResult, error)
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query    string `json:"query"`
	NResults int    `json:"n_results,omitempty"`
}

// SearchResponse 检索响应。四个数组一一对应，未检索时为空数组。
type SearchResponse struct {
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Distances  []float64        `json:"distances"`
	IDs        []string         `json:"ids"`
	Summary    *string          `json:"summary"`
	IsRelevant bool             `json:"is_relevant"`
	Message    *string          `json:"message"`
}

func emptyResponse(relevant bool) *SearchResponse {
	return &SearchResponse{
		Documents:  []string{},
		Metadatas:  []map[string]any{},
		Distances:  []float64{},
		IDs:        []string{},
		IsRelevant: relevant,
	}
}

// Router 串联相关性判定、短语捷径、检索与摘要
type Router struct {
	classifier *RelevanceClassifier
	summarizer *Summarizer
	retriever  Retriever
	persona    Persona
	metrics    Metrics
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewRouter 创建查询路由器，metrics 可为 nil
func NewRouter(classifier *RelevanceClassifier, summarizer *Summarizer, retriever Retriever, persona Persona, metrics Metrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Router{
		classifier: classifier,
		summarizer: summarizer,
		retriever:  retriever,
		persona:    persona,
		metrics:    metrics,
		tracer:     otel.Tracer(instrumentationName),
		logger:     logger.With(zap.String("component", "router")),
	}
}

// Classify 仅按短语规则判断走向，不调用 LLM 也不检索。
// 返回 RouteShortcut、RouteAge 或 RouteRAG。
func (r *Router) Classify(query string) Route {
	q := Normalize(query)
	switch {
	case ShortcutPatterns.MatchPhrase(q):
		return RouteShortcut
	case AgePatterns.MatchSubstring(q):
		return RouteAge
	default:
		return RouteRAG
	}
}

// Search 处理一次问答请求。
// 只有检索本身失败时返回错误，LLM 失败由判定器与摘要器降级处理。
func (r *Router) Search(ctx context.Context, req SearchRequest) (resp *SearchResponse, err error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.NewInvalidRequestError("query is required")
	}
	n := req.NResults
	if n <= 0 {
		n = DefaultNResults
	}

	ctx, span := r.tracer.Start(ctx, "router.search",
		trace.WithAttributes(attribute.Int("search.n_results", n)))
	defer span.End()

	start := time.Now()
	var route Route
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(attribute.String("search.route", string(route)))
		r.metrics.RecordQuery(string(route), time.Since(start))
		r.logger.Debug("query routed", zap.String("route", string(route)), zap.Duration("duration", time.Since(start)))
	}()

	if !r.classifier.IsRelevant(ctx, req.Query) {
		route = RouteOffTopic
		resp = emptyResponse(false)
		msg := r.persona.OffTopicMessage()
		resp.Message = &msg
		return resp, nil
	}

	if route = r.Classify(req.Query); route != RouteRAG {
		resp = emptyResponse(true)
		summary := r.summarizer.Summarize(ctx, req.Query, nil)
		resp.Summary = &summary
		return resp, nil
	}

	result, err := r.retriever.Query(ctx, req.Query, n)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRetrieved(result.Len())

	if len(result.Documents) == 0 {
		route = RouteNoResults
		resp = emptyResponse(true)
		summary := r.persona.NoResultsSummary()
		msg := NoResultsMessage
		resp.Summary = &summary
		resp.Message = &msg
		return resp, nil
	}

	route = RouteRAG
	summary := r.summarizer.Summarize(ctx, req.Query, result.Documents)
	return &SearchResponse{
		Documents:  result.Documents,
		Metadatas:  result.Metadatas,
		Distances:  result.Distances,
		IDs:        result.IDs,
		Summary:    &summary,
		IsRelevant: true,
	}, nil
}
