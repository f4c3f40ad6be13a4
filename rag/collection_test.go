package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/llm/embedding"
	"github.com/BaSui01/wikichat/types"
)

// countingEmbedder 包装 HashProvider，记录批次调用次数，可注入错误
type countingEmbedder struct {
	*embedding.HashProvider
	batches atomic.Int64
	err     error
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float64, error) {
	e.batches.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.HashProvider.EmbedDocuments(ctx, docs)
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, q string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.HashProvider.EmbedQuery(ctx, q)
}

func newTestCollection(batch int) (*Collection, *countingEmbedder) {
	emb := &countingEmbedder{HashProvider: embedding.NewHashProvider(embedding.HashConfig{Dimensions: 128, BatchSize: batch})}
	return NewCollection("wiki_documents", emb, NewInMemoryVectorStore(zap.NewNop()), zap.NewNop()), emb
}

func TestCollection_AddAndQuery(t *testing.T) {
	col, emb := newTestCollection(2)
	ctx := context.Background()

	ids := []string{"d1", "d2", "d3", "d4", "d5"}
	contents := []string{
		"Sai Sai Kham Leng is a Burmese singer and actor",
		"He was born in Taunggyi in Shan State",
		"His debut album was released in 2000",
		"Cats are small domesticated carnivores",
		"The stock market closed higher today",
	}
	metas := make([]map[string]any, len(ids))
	for i := range metas {
		metas[i] = map[string]any{"chunk_index": i}
	}

	require.NoError(t, col.Add(ctx, ids, contents, metas))
	assert.Equal(t, int64(3), emb.batches.Load(), "5 documents in batches of 2")

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	res, err := col.Query(ctx, "Sai Sai Kham Leng is a Burmese singer and actor", 3)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())
	assert.Len(t, res.Documents, 3)
	assert.Len(t, res.Metadatas, 3)
	assert.Len(t, res.Distances, 3)
	assert.Equal(t, "d1", res.IDs[0])
	assert.InDelta(t, 0.0, res.Distances[0], 1e-9)
	for i := 1; i < len(res.Distances); i++ {
		assert.LessOrEqual(t, res.Distances[i-1], res.Distances[i])
	}
	assert.Equal(t, 0, res.Metadatas[0]["chunk_index"])
}

func TestCollection_QueryEmpty(t *testing.T) {
	col, _ := newTestCollection(8)

	res, err := col.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.NotNil(t, res.Documents)
	assert.NotNil(t, res.Distances)

	res, err = col.Query(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestCollection_AddValidation(t *testing.T) {
	col, emb := newTestCollection(8)
	ctx := context.Background()

	err := col.Add(ctx, []string{"a", "b"}, []string{"x"}, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	err = col.Add(ctx, []string{"a"}, []string{"x"}, []map[string]any{{}, {}})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	err = col.Add(ctx, []string{""}, []string{"x"}, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	assert.NoError(t, col.Add(ctx, nil, nil, nil))
	assert.Equal(t, int64(0), emb.batches.Load())
}

func TestCollection_EmbeddingError(t *testing.T) {
	col, emb := newTestCollection(1)
	emb.err = errors.New("upstream down")
	ctx := context.Background()

	err := col.Add(ctx, []string{"a", "b"}, []string{"x", "y"}, nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrEmbeddingFailed))

	_, err = col.Query(ctx, "q", 3)
	assert.True(t, types.IsErrorCode(err, types.ErrEmbeddingFailed))

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing stored when embedding fails")
}

func TestCollection_GetExistsDelete(t *testing.T) {
	col, _ := newTestCollection(8)
	ctx := context.Background()

	ids := make([]string, 4)
	contents := make([]string, 4)
	for i := range ids {
		ids[i] = fmt.Sprintf("wiki_chunk_%d", i)
		contents[i] = fmt.Sprintf("paragraph number %d about the singer", i)
	}
	require.NoError(t, col.Add(ctx, ids, contents, nil))

	ok, err := col.Exists(ctx, "wiki_chunk_2")
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := col.Get(ctx, "wiki_chunk_1", "missing")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, contents[1], docs[0].Content)

	require.NoError(t, col.Delete(ctx, "wiki_chunk_2", "missing"))
	ok, err = col.Exists(ctx, "wiki_chunk_2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "wiki_documents", col.Name())
	assert.NotNil(t, col.Store())
}

// opsRecorder 记录集合指标调用
type opsRecorder struct {
	mu         sync.Mutex
	embeddings []string
	ops        []string
}

func (r *opsRecorder) RecordEmbeddingRequest(provider, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings = append(r.embeddings, provider+":"+status)
}

func (r *opsRecorder) RecordVectorStoreOp(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.ops = append(r.ops, operation+":"+status)
}

func TestCollection_Metrics(t *testing.T) {
	rec := &opsRecorder{}
	emb := embedding.NewHashProvider(embedding.HashConfig{Dimensions: 64, BatchSize: 2})
	col := NewCollection("wiki_documents", emb, NewInMemoryVectorStore(zap.NewNop()), zap.NewNop(),
		WithCollectionMetrics(rec), WithEmbedConcurrency(1))
	ctx := context.Background()

	require.NoError(t, col.Add(ctx, []string{"a", "b", "c"}, []string{"one", "two", "three"}, nil))
	_, err := col.Query(ctx, "two", 1)
	require.NoError(t, err)
	_, err = col.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, col.Delete(ctx, "a"))
	_, err = col.Count(ctx)
	require.NoError(t, err)

	// 3 条文档按批大小 2 分两批，再加一次查询向量化
	assert.Len(t, rec.embeddings, 3)
	assert.Equal(t, "hash-embedding:success", rec.embeddings[0])
	assert.Equal(t, []string{"add:ok", "query:ok", "get:ok", "delete:ok", "count:ok"}, rec.ops)
}
