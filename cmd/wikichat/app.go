package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/wikichat/assistant"
	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/internal/cache"
	"github.com/BaSui01/wikichat/internal/database"
	"github.com/BaSui01/wikichat/internal/metrics"
	"github.com/BaSui01/wikichat/internal/migration"
	"github.com/BaSui01/wikichat/llm"
	"github.com/BaSui01/wikichat/llm/observability"
	"github.com/BaSui01/wikichat/llm/providers"
	"github.com/BaSui01/wikichat/llm/providers/openaicompat"
	"github.com/BaSui01/wikichat/rag"
	"github.com/BaSui01/wikichat/rag/sources"
)

// =============================================================================
// 🧩 组件装配（serve / ingest 共用）
// =============================================================================

// loadConfig 读取 .env 后按 默认值 → YAML → 环境变量 加载配置
func loadConfig(configPath string, validators ...func(*config.Config) error) (*config.Config, *config.Loader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	loader := config.NewLoader().
		WithConfigPath(configPath).
		WithValidator((*config.Config).Validate)
	for _, v := range validators {
		loader = loader.WithValidator(v)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// requireEmbeddingCredentials ingest 只需要向量化凭据
func requireEmbeddingCredentials(c *config.Config) error {
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for the openai embedding provider (set %s_EMBEDDING_API_KEY or OPENAI_API_KEY)", config.DefaultEnvPrefix)
	}
	return nil
}

// storage 向量存储依赖的数据库资源，仅 sql 后端时非空
type storage struct {
	db   *gorm.DB
	pool *database.PoolManager
}

func (s *storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// openStorage 为 sql 向量存储打开连接池。auto_migrate 时先以独立连接执行迁移，
// 之后由迁移脚本负责表结构，gorm 不再 AutoMigrate。
func openStorage(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*storage, error) {
	if rag.VectorStoreType(cfg.VectorStore.Type) != rag.VectorStoreSQL {
		return &storage{}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database, logger); err != nil {
			return nil, err
		}
		cfg.Database.AutoMigrate = false
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPoolManager(db, database.PoolConfigFromDatabase(cfg.Database), logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("create pool manager: %w", err)
	}

	if collector != nil {
		pool.SetStatsRecorder(collector)
		if err := database.RegisterQueryMetrics(db, cfg.Database.Driver, collector); err != nil {
			logger.Warn("failed to register query metrics", zap.Error(err))
		}
	}
	return &storage{db: db, pool: pool}, nil
}

// migrateUp 以独立连接执行全部待应用迁移，结束后关闭该连接
func migrateUp(dbCfg config.DatabaseConfig, logger *zap.Logger) error {
	db, err := database.Open(dbCfg, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}

	m, err := migration.NewMigratorFromDatabaseConfig(dbCfg, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(context.Background()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version(context.Background())
	logger.Info("database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// newCollection 创建集合，collector 可为 nil
func newCollection(cfg *config.Config, st *storage, collector *metrics.Collector, logger *zap.Logger) (*rag.Collection, error) {
	var opts []rag.CollectionOption
	if collector != nil {
		opts = append(opts, rag.WithCollectionMetrics(collector))
	}
	return rag.NewCollectionFromConfig(cfg, st.db, logger, opts...)
}

// newIngestor 创建词条导入器，m 可为 nil
func newIngestor(cfg *config.Config, coll *rag.Collection, m assistant.Metrics, logger *zap.Logger) *assistant.Ingestor {
	scraperCfg := sources.DefaultWikipediaConfig()
	if cfg.Wiki.UserAgent != "" {
		scraperCfg.UserAgent = cfg.Wiki.UserAgent
	}
	if cfg.Wiki.Timeout > 0 {
		scraperCfg.Timeout = cfg.Wiki.Timeout
	}

	return assistant.NewIngestor(
		sources.NewWikipediaScraper(scraperCfg, logger),
		rag.NewChunkerFromConfig(cfg, logger),
		coll,
		assistant.IngestConfig{URL: cfg.Wiki.URL, DocumentID: cfg.Wiki.DocumentID},
		m,
		logger,
	)
}

// newProvider 创建 LLM 提供者：OpenAI 兼容客户端 → 重试 → OTel 观测
func newProvider(cfg config.LLMConfig, costs *observability.CostTracker, logger *zap.Logger) (llm.Provider, error) {
	var provider llm.Provider = openaicompat.New(openaicompat.Config{
		ProviderName:  "openai",
		APIKey:        cfg.APIKey,
		BaseURL:       cfg.BaseURL,
		DefaultModel:  cfg.Summary.Model,
		FallbackModel: "gpt-3.5-turbo",
		Timeout:       cfg.Timeout,
	}, logger)

	retryCfg := providers.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.MaxRetries
	provider = providers.NewRetryableProvider(provider, retryCfg, logger)

	llmMetrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("create llm metrics: %w", err)
	}
	return observability.Instrument(provider, llmMetrics, costs), nil
}

// newCache 启用缓存时连接 Redis，失败返回错误
func newCache(cfg *config.Config, logger *zap.Logger) (*cache.Manager, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return cache.NewManager(cache.ConfigFromRedis(cfg.Redis), logger)
}

// newRouter 组装相关性判定、摘要与检索路由
func newRouter(cfg *config.Config, provider llm.Provider, coll *rag.Collection, c *cache.Manager, m assistant.Metrics, logger *zap.Logger) (*assistant.Router, error) {
	persona, err := assistant.PersonaFromConfig(cfg.Wiki)
	if err != nil {
		return nil, err
	}

	relevanceOpts := []assistant.RelevanceOption{assistant.WithRelevanceMetrics(m)}
	summaryOpts := []assistant.SummarizerOption{assistant.WithSummaryMetrics(m)}
	if c != nil {
		relevanceOpts = append(relevanceOpts, assistant.WithRelevanceCache(c, cfg.Cache.RelevanceTTL))
		summaryOpts = append(summaryOpts, assistant.WithSummaryCache(c, cfg.Cache.SummaryTTL))
	}

	classifier := assistant.NewRelevanceClassifier(provider, persona, cfg.LLM.Relevance, logger, relevanceOpts...)
	summarizer := assistant.NewSummarizer(provider, persona, cfg.LLM.Summary, logger, summaryOpts...)
	return assistant.NewRouter(classifier, summarizer, coll, persona, m, logger), nil
}
