package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	sizeBuckets      = prometheus.ExponentialBuckets(100, 10, 8)
	llmBuckets       = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}
	embeddingBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10}
	queryBuckets     = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}
	ingestBuckets    = []float64{0.5, 1, 2, 5, 10, 30, 60, 120}
	retrievedBuckets = []float64{0, 1, 2, 3, 5, 10, 20}
)

// Collector 持有服务的全部 Prometheus 指标，各包通过小接口使用它
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	embeddingRequestsTotal   *prometheus.CounterVec
	embeddingRequestDuration *prometheus.HistogramVec

	queriesTotal     *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	relevanceChecks  *prometheus.CounterVec
	vectorStoreOps   *prometheus.CounterVec
	retrievedResults prometheus.Histogram
	wsConnections    prometheus.Gauge

	ingestRunsTotal *prometheus.CounterVec
	ingestChunks    prometheus.Gauge
	ingestDuration  prometheus.Histogram

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec
}

// NewCollector 注册到 prometheus.DefaultRegisterer，同一进程只能调用一次
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := builder{factory: promauto.With(reg), ns: namespace}

	c := &Collector{
		httpRequestsTotal:   b.counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		httpRequestDuration: b.histogram("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets, "method", "path"),
		httpRequestSize:     b.histogram("http_request_size_bytes", "HTTP request size in bytes", sizeBuckets, "method", "path"),
		httpResponseSize:    b.histogram("http_response_size_bytes", "HTTP response size in bytes", sizeBuckets, "method", "path"),

		// purpose: relevance | summary
		llmRequestsTotal:   b.counter("llm_requests_total", "Total number of LLM requests", "purpose", "model", "status"),
		llmRequestDuration: b.histogram("llm_request_duration_seconds", "LLM request duration in seconds", llmBuckets, "purpose", "model"),
		llmTokensUsed:      b.counter("llm_tokens_used_total", "Total number of tokens used", "purpose", "model", "type"),

		embeddingRequestsTotal:   b.counter("embedding_requests_total", "Total number of embedding requests", "provider", "status"),
		embeddingRequestDuration: b.histogram("embedding_request_duration_seconds", "Embedding request duration in seconds", embeddingBuckets, "provider"),

		// route: off_topic | shortcut | age | no_results | rag | error
		queriesTotal:  b.counter("queries_total", "Total number of search queries by terminal route", "route"),
		queryDuration: b.histogram("query_duration_seconds", "Search query duration in seconds", queryBuckets, "route"),
		// source: shortcut | cache | llm | fallback
		relevanceChecks:  b.counter("relevance_checks_total", "Relevance decisions by source and outcome", "source", "relevant"),
		vectorStoreOps:   b.counter("vector_store_operations_total", "Total number of vector store operations", "operation", "status"),
		retrievedResults: b.factory.NewHistogram(b.histogramOpts("retrieved_documents", "Number of documents returned per retrieval", retrievedBuckets)),
		wsConnections:    b.factory.NewGauge(b.gaugeOpts("websocket_connections", "Number of open chat websocket connections")),

		// status: ingested | skipped | failed
		ingestRunsTotal: b.counter("ingest_runs_total", "Total number of ingestion runs", "status"),
		ingestChunks:    b.factory.NewGauge(b.gaugeOpts("ingest_chunks", "Number of chunks written by the last ingestion")),
		ingestDuration:  b.factory.NewHistogram(b.histogramOpts("ingest_duration_seconds", "Ingestion duration in seconds", ingestBuckets)),

		cacheHits:   b.counter("cache_hits_total", "Total number of cache hits", "cache_type"),
		cacheMisses: b.counter("cache_misses_total", "Total number of cache misses", "cache_type"),

		dbConnectionsOpen: b.gauge("db_connections_open", "Number of open database connections", "database"),
		dbConnectionsIdle: b.gauge("db_connections_idle", "Number of idle database connections", "database"),
		dbQueryDuration:   b.histogram("db_query_duration_seconds", "Database query duration in seconds", prometheus.DefBuckets, "database", "operation"),
	}

	logger.Info("metrics collector initialized",
		zap.String("component", "metrics"),
		zap.String("namespace", namespace))
	return c
}

// builder 给所有指标统一加 namespace
type builder struct {
	factory promauto.Factory
	ns      string
}

func (b builder) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: b.ns, Name: name, Help: help}
}

func (b builder) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: b.ns, Name: name, Help: help, Buckets: buckets}
}

func (b builder) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{Namespace: b.ns, Name: name, Help: help}, labels)
}

func (b builder) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return b.factory.NewGaugeVec(b.gaugeOpts(name, help), labels)
}

func (b builder) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return b.factory.NewHistogramVec(b.histogramOpts(name, help, buckets), labels)
}
