package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/rag"
	"github.com/BaSui01/wikichat/rag/sources"
	"github.com/BaSui01/wikichat/types"
)

// listPageSize 强制重建时分页列举 ID 的页大小
const listPageSize = 500

// PageScraper 抓取词条，*sources.WikipediaScraper 满足此接口
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*sources.WikiPage, error)
}

// DocumentChunker 将正文切分为带元数据的分块，*rag.ParagraphChunker 满足此接口
type DocumentChunker interface {
	ChunkDocument(text string, base map[string]any) []rag.Chunk
}

// IngestConfig 导入目标
type IngestConfig struct {
	URL        string
	DocumentID string
}

// IngestResult 一次导入的结果
type IngestResult struct {
	DocumentID string        `json:"document_id"`
	Skipped    bool          `json:"skipped"`
	Chunks     int           `json:"chunks"`
	Title      string        `json:"title,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Ingestor 抓取词条、分块并写入集合。
// 完整文档 ID 已存在时跳过，分块 ID 为 {document_id}_chunk_{i}。
type Ingestor struct {
	scraper    PageScraper
	chunker    DocumentChunker
	collection *rag.Collection
	cfg        IngestConfig
	metrics    Metrics
	logger     *zap.Logger

	mu sync.Mutex
}

// NewIngestor 创建导入器，metrics 可为 nil
func NewIngestor(scraper PageScraper, chunker DocumentChunker, collection *rag.Collection, cfg IngestConfig, metrics Metrics, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Ingestor{
		scraper:    scraper,
		chunker:    chunker,
		collection: collection,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "ingestor"), zap.String("document_id", cfg.DocumentID)),
	}
}

// ChunkID 第 i 个分块的 ID
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, i)
}

// EnsureIngested 文档不存在时执行导入
func (in *Ingestor) EnsureIngested(ctx context.Context) (*IngestResult, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.run(ctx, false)
}

// Reingest 删除已有文档与分块后重新导入
func (in *Ingestor) Reingest(ctx context.Context) (*IngestResult, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.run(ctx, true)
}

func (in *Ingestor) run(ctx context.Context, force bool) (*IngestResult, error) {
	start := time.Now()
	res, err := in.ingest(ctx, force)
	switch {
	case err != nil:
		in.metrics.RecordIngest("failed", 0, time.Since(start))
		in.logger.Error("error during wikipedia ingestion", zap.Error(err))
		return nil, err
	case res.Skipped:
		in.metrics.RecordIngest("skipped", 0, time.Since(start))
	default:
		in.metrics.RecordIngest("ingested", res.Chunks, time.Since(start))
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (in *Ingestor) ingest(ctx context.Context, force bool) (*IngestResult, error) {
	docID := in.cfg.DocumentID
	res := &IngestResult{DocumentID: docID}

	if force {
		if err := in.purge(ctx); err != nil {
			return nil, err
		}
	} else {
		exists, err := in.collection.Exists(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("check existing document: %w", err)
		}
		if exists {
			in.logger.Info("wikipedia content already exists, skipping ingestion")
			res.Skipped = true
			return res, nil
		}
	}

	in.logger.Info("ingesting wikipedia content", zap.String("url", in.cfg.URL))
	page, err := in.scraper.Scrape(ctx, in.cfg.URL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(page.Content) == "" {
		return nil, types.NewError(types.ErrScrapeFailed, "scraped page has no content").
			WithHTTPStatus(http.StatusBadGateway)
	}

	pageMeta := page.Metadata()
	chunks := in.chunker.ChunkDocument(page.Content, pageMeta)

	ids := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	metas := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		ids[i] = ChunkID(docID, c.Index)
		contents[i] = c.Content
		c.Metadata["chunk_id"] = ids[i]
		metas[i] = c.Metadata
	}
	if err := in.collection.Add(ctx, ids, contents, metas); err != nil {
		return nil, fmt.Errorf("add chunks: %w", err)
	}

	// 完整文档最后写入，作为已导入标记
	if err := in.collection.Add(ctx, []string{docID}, []string{page.Content}, []map[string]any{pageMeta}); err != nil {
		return nil, fmt.Errorf("add full document: %w", err)
	}

	res.Chunks = len(chunks)
	res.Title = page.Title
	in.logger.Info("successfully ingested chunks and full document",
		zap.Int("chunks", res.Chunks),
		zap.String("title", page.Title))
	return res, nil
}

// purge 删除完整文档及其全部分块
func (in *Ingestor) purge(ctx context.Context) error {
	docID := in.cfg.DocumentID
	ids, err := in.existingChunkIDs(ctx)
	if err != nil {
		return err
	}
	ids = append(ids, docID)
	if err := in.collection.Delete(ctx, ids...); err != nil {
		return fmt.Errorf("purge document: %w", err)
	}
	in.logger.Info("existing document purged", zap.Int("ids", len(ids)))
	return nil
}

// existingChunkIDs 优先分页列举存储中的 ID，不支持列举时按 chunk_0 的 total_chunks 推算
func (in *Ingestor) existingChunkIDs(ctx context.Context) ([]string, error) {
	prefix := in.cfg.DocumentID + "_chunk_"

	if lister, ok := in.collection.Store().(rag.DocumentLister); ok {
		var ids []string
		for offset := 0; ; offset += listPageSize {
			page, err := lister.ListDocumentIDs(ctx, listPageSize, offset)
			if err != nil {
				return nil, fmt.Errorf("list documents: %w", err)
			}
			for _, id := range page {
				if strings.HasPrefix(id, prefix) {
					ids = append(ids, id)
				}
			}
			if len(page) < listPageSize {
				return ids, nil
			}
		}
	}

	docs, err := in.collection.Get(ctx, ChunkID(in.cfg.DocumentID, 0))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	total := totalChunks(docs[0].Metadata["total_chunks"])
	ids := make([]string, total)
	for i := range ids {
		ids[i] = ChunkID(in.cfg.DocumentID, i)
	}
	return ids, nil
}

// totalChunks 兼容 JSON 往返后的数值类型
func totalChunks(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
