package rag

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/wikichat/llm/embedding"
	"github.com/BaSui01/wikichat/types"
)

// defaultEmbedConcurrency 同时在途的 embedding 批次数
const defaultEmbedConcurrency = 4

// QueryResult 文本检索结果，四个数组按距离升序一一对应
type QueryResult struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
	Distances []float64        `json:"distances"`
}

// Len 结果条数
func (r *QueryResult) Len() int { return len(r.IDs) }

func emptyQueryResult() *QueryResult {
	return &QueryResult{
		IDs:       []string{},
		Documents: []string{},
		Metadatas: []map[string]any{},
		Distances: []float64{},
	}
}

// CollectionMetrics 向量化与存储操作指标，*metrics.Collector 满足此接口
type CollectionMetrics interface {
	RecordEmbeddingRequest(provider, status string, duration time.Duration)
	RecordVectorStoreOp(operation string, err error)
}

type nopCollectionMetrics struct{}

func (nopCollectionMetrics) RecordEmbeddingRequest(string, string, time.Duration) {}
func (nopCollectionMetrics) RecordVectorStoreOp(string, error)                    {}

// CollectionOption 集合选项
type CollectionOption func(*Collection)

// WithCollectionMetrics 设置指标记录器
func WithCollectionMetrics(m CollectionMetrics) CollectionOption {
	return func(c *Collection) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithEmbedConcurrency 设置同时在途的 embedding 批次数
func WithEmbedConcurrency(n int) CollectionOption {
	return func(c *Collection) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Collection 将名称、embedding 提供者与向量存储绑定在一起，
// 对外提供按文本读写的接口。
type Collection struct {
	name        string
	embedder    embedding.Provider
	store       VectorStore
	concurrency int
	metrics     CollectionMetrics
	logger      *zap.Logger
}

// NewCollection 创建集合
func NewCollection(name string, embedder embedding.Provider, store VectorStore, logger *zap.Logger, opts ...CollectionOption) *Collection {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collection{
		name:        name,
		embedder:    embedder,
		store:       store,
		concurrency: defaultEmbedConcurrency,
		metrics:     nopCollectionMetrics{},
		logger:      logger.With(zap.String("component", "collection"), zap.String("collection", name)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) recordEmbedding(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordEmbeddingRequest(c.embedder.Name(), status, time.Since(start))
}

// Name 集合名
func (c *Collection) Name() string { return c.name }

// Store 底层向量存储
func (c *Collection) Store() VectorStore { return c.store }

func embeddingError(err error) error {
	if _, ok := types.AsError(err); ok {
		return err
	}
	return types.NewError(types.ErrEmbeddingFailed, "failed to embed text").
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithComponent("embedding")
}

// embedAll 按提供者的批大小并发生成向量，结果与输入顺序一致
func (c *Collection) embedAll(ctx context.Context, texts []string) ([][]float64, error) {
	batch := c.embedder.MaxBatchSize()
	if batch <= 0 {
		batch = len(texts)
	}

	vectors := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		g.Go(func() error {
			began := time.Now()
			out, err := c.embedder.EmbedDocuments(gctx, texts[start:end])
			c.recordEmbedding(began, err)
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			if len(out) != end-start {
				return fmt.Errorf("embed batch [%d:%d]: got %d vectors", start, end, len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, embeddingError(err)
	}
	return vectors, nil
}

// Add 生成向量后写入存储，同 ID 覆盖。
// metadatas 可为 nil，否则长度必须与 ids 相同。
func (c *Collection) Add(ctx context.Context, ids, contents []string, metadatas []map[string]any) error {
	if len(ids) != len(contents) {
		return types.NewInvalidRequestError(fmt.Sprintf("ids and documents length mismatch: %d != %d", len(ids), len(contents)))
	}
	if metadatas != nil && len(metadatas) != len(ids) {
		return types.NewInvalidRequestError(fmt.Sprintf("ids and metadatas length mismatch: %d != %d", len(ids), len(metadatas)))
	}
	if len(ids) == 0 {
		return nil
	}
	for i, id := range ids {
		if id == "" {
			return types.NewInvalidRequestError(fmt.Sprintf("document[%d] has empty id", i))
		}
	}

	vectors, err := c.embedAll(ctx, contents)
	if err != nil {
		return err
	}

	docs := make([]Document, len(ids))
	for i := range ids {
		docs[i] = Document{ID: ids[i], Content: contents[i], Embedding: vectors[i]}
		if metadatas != nil {
			docs[i].Metadata = metadatas[i]
		}
	}

	err = c.store.AddDocuments(ctx, docs)
	c.metrics.RecordVectorStoreOp("add", err)
	if err != nil {
		return fmt.Errorf("add documents to %s: %w", c.name, err)
	}

	c.logger.Debug("documents added", zap.Int("count", len(docs)))
	return nil
}

// Query 按文本检索最相似的 n 条
func (c *Collection) Query(ctx context.Context, text string, n int) (*QueryResult, error) {
	if n <= 0 {
		return emptyQueryResult(), nil
	}

	began := time.Now()
	vec, err := c.embedder.EmbedQuery(ctx, text)
	c.recordEmbedding(began, err)
	if err != nil {
		return nil, embeddingError(err)
	}

	hits, err := c.store.Search(ctx, vec, n)
	c.metrics.RecordVectorStoreOp("query", err)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}

	res := emptyQueryResult()
	for _, h := range hits {
		res.IDs = append(res.IDs, h.Document.ID)
		res.Documents = append(res.Documents, h.Document.Content)
		res.Metadatas = append(res.Metadatas, h.Document.Metadata)
		res.Distances = append(res.Distances, h.Distance)
	}
	return res, nil
}

// Get 按 ID 获取文档
func (c *Collection) Get(ctx context.Context, ids ...string) ([]Document, error) {
	docs, err := c.store.GetDocuments(ctx, ids)
	c.metrics.RecordVectorStoreOp("get", err)
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", c.name, err)
	}
	return docs, nil
}

// Exists 文档是否存在
func (c *Collection) Exists(ctx context.Context, id string) (bool, error) {
	docs, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// Delete 删除文档
func (c *Collection) Delete(ctx context.Context, ids ...string) error {
	err := c.store.DeleteDocuments(ctx, ids)
	c.metrics.RecordVectorStoreOp("delete", err)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.name, err)
	}
	return nil
}

// Count 文档数量
func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.store.Count(ctx)
	c.metrics.RecordVectorStoreOp("count", err)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}
