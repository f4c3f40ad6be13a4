package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/api/handlers"
	"github.com/BaSui01/wikichat/assistant"
	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/internal/cache"
	"github.com/BaSui01/wikichat/internal/metrics"
	"github.com/BaSui01/wikichat/internal/server"
	"github.com/BaSui01/wikichat/internal/telemetry"
	"github.com/BaSui01/wikichat/llm/observability"
	"github.com/BaSui01/wikichat/rag"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 WikiChat 的主服务器
type Server struct {
	cfg    *config.Config
	loader *config.Loader
	level  zap.AtomicLevel
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 依赖组件
	telemetry  *telemetry.Providers
	collector  *metrics.Collector
	storage    *storage
	cache      *cache.Manager
	collection *rag.Collection
	router     *assistant.Router
	ingestor   *assistant.Ingestor
	costs      *observability.CostTracker

	// Handlers
	healthHandler   *handlers.HealthHandler
	documentHandler *handlers.DocumentHandler
	searchHandler   *handlers.SearchHandler
	chatHandler     *handlers.ChatHandler

	// 配置文件监听
	watcher *config.Watcher

	// 限流清理与启动导入的生命周期
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, loader *config.Loader, level zap.AtomicLevel, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		loader: loader,
		level:  level,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 装配依赖并启动所有服务（非阻塞）
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// 1. 遥测
	providers, err := telemetry.Init(s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = providers

	// 2. 指标收集器
	s.collector = metrics.NewCollector("wikichat", s.logger)

	// 3. 存储与集合
	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	// 4. 问答链路
	if err := s.initAssistant(); err != nil {
		return fmt.Errorf("failed to init assistant: %w", err)
	}

	// 5. Handlers
	s.initHandlers()

	// 6. HTTP 服务器
	if err := s.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 7. Metrics 服务器
	if s.cfg.Server.MetricsPort > 0 {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// 8. 配置文件监听
	if err := s.startWatcher(ctx); err != nil {
		s.logger.Warn("config watcher disabled", zap.Error(err))
	}

	// 9. 启动导入
	if s.cfg.Wiki.IngestOnStartup {
		s.wg.Add(1)
		go s.ingestOnStartup(ctx)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("vector_store", s.cfg.VectorStore.Type),
		zap.Bool("cache_enabled", s.cache != nil),
		zap.Bool("telemetry_enabled", s.telemetry.Enabled()),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initStorage() error {
	st, err := openStorage(s.cfg, s.collector, s.logger)
	if err != nil {
		return err
	}
	s.storage = st

	coll, err := newCollection(s.cfg, st, s.collector, s.logger)
	if err != nil {
		return err
	}
	s.collection = coll
	return nil
}

func (s *Server) initAssistant() error {
	c, err := newCache(s.cfg, s.logger)
	if err != nil {
		// 缓存不可用时直接调用 LLM
		s.logger.Warn("redis unavailable, result cache disabled", zap.Error(err))
	} else {
		s.cache = c
	}

	s.costs = observability.NewCostTracker(observability.NewCostCalculator())
	provider, err := newProvider(s.cfg.LLM, s.costs, s.logger)
	if err != nil {
		return err
	}

	s.router, err = newRouter(s.cfg, provider, s.collection, s.cache, s.collector, s.logger)
	if err != nil {
		return err
	}
	s.ingestor = newIngestor(s.cfg, s.collection, s.collector, s.logger)
	return nil
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.collection, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewVectorStoreHealthCheck(s.collection))
	if s.storage.pool != nil {
		s.healthHandler.RegisterCheck(handlers.NewFuncHealthCheck("database", s.storage.pool.Ping))
	}
	if s.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewFuncHealthCheck("redis", s.cache.Ping))
	}

	s.documentHandler = handlers.NewDocumentHandler(s.collection, s.logger)
	s.searchHandler = handlers.NewSearchHandler(s.router, s.logger)
	s.chatHandler = handlers.NewChatHandler(s.router, s.cfg.Server.CORSAllowedOrigins, s.logger,
		handlers.WithConnectionGauge(s.collector))

	s.logger.Info("Handlers initialized")
}

// startWatcher 监听配置文件，log.level 变更即时生效
func (s *Server) startWatcher(ctx context.Context) error {
	if s.loader.ConfigPath() == "" {
		return nil
	}

	w, err := config.NewWatcher(s.loader, s.cfg, config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}
	w.OnReload(func(old, updated *config.Config) {
		if old.Log.Level != updated.Log.Level {
			s.level.SetLevel(parseLevel(updated.Log.Level))
			s.logger.Info("log level changed",
				zap.String("from", old.Log.Level),
				zap.String("to", updated.Log.Level))
		}
		s.logger.Info("Configuration reloaded; settings other than log.level apply after restart")
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

func (s *Server) ingestOnStartup(ctx context.Context) {
	defer s.wg.Done()

	res, err := s.ingestor.EnsureIngested(ctx)
	if err != nil {
		// 服务继续运行，可通过 wikichat ingest 重试
		s.logger.Error("startup ingestion failed", zap.Error(err))
		return
	}
	s.logger.Info("startup ingestion finished",
		zap.Bool("skipped", res.Skipped),
		zap.Int("chunks", res.Chunks),
		zap.Duration("duration", res.Duration),
	)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册全部 API 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 根路径与健康检查
	mux.HandleFunc("GET /", s.healthHandler.HandleRoot)
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 文档
	mux.HandleFunc("POST /documents", s.documentHandler.HandleAdd)
	mux.HandleFunc("POST /documents/{$}", s.documentHandler.HandleAdd)
	mux.HandleFunc("GET /documents/{id}", s.documentHandler.HandleGet)
	mux.HandleFunc("DELETE /documents/{id}", s.documentHandler.HandleDelete)
	mux.HandleFunc("GET /collection/info", s.documentHandler.HandleCollectionInfo)

	// 检索
	mux.HandleFunc("POST /search", s.searchHandler.HandleSearch)
	mux.HandleFunc("POST /search/{$}", s.searchHandler.HandleSearch)
	mux.HandleFunc("GET /ws/chat", s.chatHandler.HandleChat)

	return mux
}

// middleware 按固定顺序包装中间件链
func (s *Server) middleware(ctx context.Context, h http.Handler) http.Handler {
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		MetricsMiddleware(s.collector),
		OTelTracing(),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger))
	}

	switch {
	case s.cfg.Server.JWT.Enabled():
		chain = append(chain, JWTAuth(s.cfg.Server.JWT, publicPaths, s.logger))
	case len(s.cfg.Server.APIKeys) > 0:
		chain = append(chain, APIKeyAuth(s.cfg.Server.APIKeys, publicPaths, s.logger))
	default:
		s.logger.Warn("API authentication disabled: no api_keys or jwt configured")
	}

	return Chain(h, chain...)
}

func (s *Server) startHTTPServer(ctx context.Context) error {
	handler := s.middleware(ctx, s.routes())

	s.httpManager = server.NewManager(handler,
		server.ConfigFromServer("api", s.cfg.Server, s.cfg.Server.HTTPPort), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux,
		server.ConfigFromServer("metrics", s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 阻塞到收到信号、ctx 结束或 API 服务异常退出，然后优雅关闭
func (s *Server) WaitForShutdown(ctx context.Context) error {
	var err error
	if s.httpManager != nil {
		err = s.httpManager.WaitForShutdown(ctx)
	}
	s.Shutdown()
	return err
}

// Shutdown 按 服务器 → 配置监听 → 后台任务 → 遥测 → 数据库/Redis 的顺序关闭
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	// 1. HTTP 与 Metrics 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 2. 配置监听
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Error("Config watcher shutdown error", zap.Error(err))
		}
	}

	// 3. 限流清理与启动导入
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	// 4. 遥测
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	// 5. 数据库与 Redis
	if err := s.storage.Close(); err != nil {
		s.logger.Error("Database shutdown error", zap.Error(err))
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Redis shutdown error", zap.Error(err))
		}
	}

	if s.costs != nil {
		summary := s.costs.Summary()
		fields := []zap.Field{
			zap.Int("requests", summary.RequestCount),
			zap.Int("tokens", summary.TotalTokens),
			zap.Float64("cost_usd", summary.TotalCost),
		}
		for purpose, u := range summary.ByPurpose {
			fields = append(fields, zap.Int(purpose+"_requests", u.Requests))
		}
		s.logger.Info("LLM usage summary", fields...)
	}

	s.logger.Info("Graceful shutdown completed")
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeout > 0 {
		return s.cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
