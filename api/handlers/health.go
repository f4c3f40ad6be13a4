package handlers

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/wikichat/api"
	"github.com/BaSui01/wikichat/types"
)

const (
	welcomeMessage = "Welcome to ChatWith Wiki API"

	// readyTimeout 所有就绪探测共享的超时
	readyTimeout = 5 * time.Second

	probePass = "pass"
	probeFail = "fail"
)

// DocumentCounter 统计向量库文档数，*rag.Collection 满足此接口
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// HealthCheck 是 /ready 的一项依赖探测
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeReport /healthz 与 /ready 的响应体
type ProbeReport struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]ProbeResult `json:"checks,omitempty"`
}

type ProbeResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler 服务根路径、存活、就绪与版本端点
type HealthHandler struct {
	logger *zap.Logger
	store  DocumentCounter

	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHealthHandler store 为 nil 时 /health 总是报告 connected
func NewHealthHandler(store DocumentCounter, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger: logger.With(zap.String("component", "health_handler")),
		store:  store,
	}
}

func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
}

// HandleRoot GET /
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteError(w, types.NewNotFoundError("route not found"), nil)
		return
	}
	WriteSuccess(w, api.MessageResponse{Message: welcomeMessage})
}

// HandleHealth GET /health。向量库能返回文档数即为 connected，否则 503。
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteSuccess(w, api.ServiceHealth{Status: "healthy", Database: "connected"})
		return
	}
	if _, err := h.store.Count(r.Context()); err != nil {
		h.logger.Warn("vector store unreachable", zap.Error(err))
		WriteEnvelope(w, http.StatusServiceUnavailable, false, api.ServiceHealth{
			Status:   "unhealthy",
			Database: "disconnected",
		})
		return
	}
	WriteSuccess(w, api.ServiceHealth{Status: "healthy", Database: "connected"})
}

// HandleHealthz GET /healthz，只说明进程还活着
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, ProbeReport{Status: "healthy", Timestamp: time.Now().UTC()})
}

// HandleReady GET /ready。所有探测并发执行，任一失败即 503。
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	checks := slices.Clone(h.checks)
	h.mu.RUnlock()

	results := make([]ProbeResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = h.probe(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := ProbeReport{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]ProbeResult, len(checks)),
	}
	for i, check := range checks {
		report.Checks[check.Name()] = results[i]
		if results[i].Status == probeFail {
			report.Status = "unhealthy"
		}
	}

	if report.Status != "healthy" {
		WriteEnvelope(w, http.StatusServiceUnavailable, false, report)
		return
	}
	WriteSuccess(w, report)
}

func (h *HealthHandler) probe(ctx context.Context, check HealthCheck) ProbeResult {
	start := time.Now()
	err := check.Check(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.logger.Warn("readiness probe failed",
			zap.String("check", check.Name()),
			zap.Duration("latency", elapsed),
			zap.Error(err))
		return ProbeResult{Status: probeFail, Message: err.Error(), Latency: elapsed.String()}
	}
	return ProbeResult{Status: probePass, Latency: elapsed.String()}
}

// HandleVersion GET /version
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, info)
	}
}

// FuncHealthCheck 把一个函数包装成 HealthCheck
type FuncHealthCheck struct {
	name  string
	check func(ctx context.Context) error
}

func NewFuncHealthCheck(name string, check func(ctx context.Context) error) *FuncHealthCheck {
	return &FuncHealthCheck{name: name, check: check}
}

func (c *FuncHealthCheck) Name() string                    { return c.name }
func (c *FuncHealthCheck) Check(ctx context.Context) error { return c.check(ctx) }

// NewVectorStoreHealthCheck 以 Count 探测向量库
func NewVectorStoreHealthCheck(store DocumentCounter) *FuncHealthCheck {
	return NewFuncHealthCheck("vector_store", func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	})
}
