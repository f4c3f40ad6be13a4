package metrics

import (
	"strconv"
	"time"
)

// RecordHTTPRequest 状态码按 2xx/3xx/4xx/5xx 归类
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

func (c *Collector) RecordLLMRequest(purpose, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(purpose, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(purpose, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(purpose, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(purpose, model, "completion").Add(float64(completionTokens))
}

func (c *Collector) RecordEmbeddingRequest(provider, status string, duration time.Duration) {
	c.embeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	c.embeddingRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordQuery 每个检索请求按最终路由记一次
func (c *Collector) RecordQuery(route string, duration time.Duration) {
	c.queriesTotal.WithLabelValues(route).Inc()
	c.queryDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) RecordRelevanceCheck(source string, relevant bool) {
	c.relevanceChecks.WithLabelValues(source, strconv.FormatBool(relevant)).Inc()
}

func (c *Collector) RecordVectorStoreOp(operation string, err error) {
	c.vectorStoreOps.WithLabelValues(operation, outcome(err)).Inc()
}

func (c *Collector) RecordRetrieved(n int) {
	c.retrievedResults.Observe(float64(n))
}

func (c *Collector) WebSocketOpened() { c.wsConnections.Inc() }
func (c *Collector) WebSocketClosed() { c.wsConnections.Dec() }

// RecordIngest 只有 ingested 会更新块数 Gauge，skipped 保留上一次的值
func (c *Collector) RecordIngest(status string, chunks int, duration time.Duration) {
	c.ingestRunsTotal.WithLabelValues(status).Inc()
	if status == "ingested" {
		c.ingestChunks.Set(float64(chunks))
	}
	c.ingestDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBConnections 连接池快照，由 database.PoolManager 定期上报
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusClass(code int) string {
	if code < 200 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
