package assistant

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/internal/cache"
)

var (
	relevanceParams = config.CompletionConfig{Model: "gpt-3.5-turbo", MaxTokens: 10, Temperature: 0.1}
	summaryParams   = config.CompletionConfig{Model: "gpt-3.5-turbo", MaxTokens: 300, Temperature: 0.3}
)

// recordingMetrics 记录调用，便于断言
type recordingMetrics struct {
	mu          sync.Mutex
	llm         []string
	relevance   []string
	routes      []string
	retrieved   []int
	ingests     []string
	cacheHits   int
	cacheMisses int
}

func (m *recordingMetrics) RecordLLMRequest(purpose, _, status string, _ time.Duration, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llm = append(m.llm, purpose+":"+status)
}

func (m *recordingMetrics) RecordRelevanceCheck(source string, relevant bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if relevant {
		m.relevance = append(m.relevance, source+":yes")
	} else {
		m.relevance = append(m.relevance, source+":no")
	}
}

func (m *recordingMetrics) RecordQuery(route string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, route)
}

func (m *recordingMetrics) RecordRetrieved(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieved = append(m.retrieved, n)
}

func (m *recordingMetrics) RecordIngest(status string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingests = append(m.ingests, status)
}

func (m *recordingMetrics) RecordCacheHit(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *recordingMetrics) RecordCacheMiss(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.KeyPrefix = "test:"
	manager, err := cache.NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return mr, manager
}
