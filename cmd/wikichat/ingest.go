package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/assistant"
	"github.com/BaSui01/wikichat/config"
)

// =============================================================================
// 📥 ingest 命令
// =============================================================================

// runIngest 抓取配置的词条写入向量存储，结果以 JSON 输出到 stdout
func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	force := fs.Bool("force", false, "Delete the stored article and ingest it again")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath, requireEmbeddingCredentials)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(cfg, nil, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer st.Close()

	coll, err := newCollection(cfg, st, nil, logger)
	if err != nil {
		logger.Fatal("Failed to create collection", zap.Error(err))
	}

	ingestor := newIngestor(cfg, coll, assistant.NopMetrics(), logger)
	if err := ingest(ctx, ingestor, *force, os.Stdout); err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		os.Exit(1)
	}
	if *force {
		purgeSummaries(ctx, cfg, logger)
	}
}

// purgeSummaries 清掉基于旧正文生成的摘要缓存，Redis 不可用时只记录警告
func purgeSummaries(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	c, err := newCache(cfg, logger)
	if err != nil {
		logger.Warn("Skipping summary cache purge", zap.Error(err))
		return
	}
	if c == nil {
		return
	}
	defer c.Close()

	n, err := c.DeleteNamespace(ctx, "summary")
	if err != nil {
		logger.Warn("Summary cache purge failed", zap.Int("deleted", n), zap.Error(err))
		return
	}
	logger.Info("Summary cache purged", zap.Int("deleted", n))
}

// articleIngestor 由 *assistant.Ingestor 实现
type articleIngestor interface {
	EnsureIngested(ctx context.Context) (*assistant.IngestResult, error)
	Reingest(ctx context.Context) (*assistant.IngestResult, error)
}

func ingest(ctx context.Context, ing articleIngestor, force bool, out io.Writer) error {
	run := ing.EnsureIngested
	if force {
		run = ing.Reingest
	}

	res, err := run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
