package rag

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/types"
)

// InMemoryVectorStore 进程内存储，vector_store.type 为 memory（默认）时使用。
// 重启后数据丢失，启动时的 ingest 会重新抓取。
type InMemoryVectorStore struct {
	mu     sync.RWMutex
	docs   map[string]Document
	order  []string // 插入顺序，ListDocumentIDs 与同分排序依赖它
	logger *zap.Logger
}

func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		docs:   make(map[string]Document),
		logger: logger.With(zap.String("component", "memory_store")),
	}
}

// AddDocuments 先校验整批再写入，任何一条不合法则整批不生效
func (s *InMemoryVectorStore) AddDocuments(_ context.Context, docs []Document) error {
	for i, doc := range docs {
		switch {
		case doc.ID == "":
			return types.NewInvalidRequestError(fmt.Sprintf("document[%d] has empty id", i))
		case len(doc.Embedding) == 0:
			return types.NewInvalidRequestError(fmt.Sprintf("document %s has no embedding", doc.ID))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if _, exists := s.docs[doc.ID]; !exists {
			s.order = append(s.order, doc.ID)
		}
		doc.Metadata = cloneMetadata(doc.Metadata)
		s.docs[doc.ID] = doc
	}

	s.logger.Debug("documents stored", zap.Int("added", len(docs)), zap.Int("total", len(s.order)))
	return nil
}

func (s *InMemoryVectorStore) Search(_ context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error) {
	s.mu.RLock()
	candidates := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		doc := s.docs[id]
		doc.Metadata = cloneMetadata(doc.Metadata)
		candidates = append(candidates, doc)
	}
	s.mu.RUnlock()

	return rankByCosine(queryEmbedding, candidates, topK), nil
}

func (s *InMemoryVectorStore) DeleteDocuments(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.order)
	for _, id := range ids {
		delete(s.docs, id)
	}
	s.order = slices.DeleteFunc(s.order, func(id string) bool {
		_, ok := s.docs[id]
		return !ok
	})

	s.logger.Debug("documents deleted", zap.Int("deleted", before-len(s.order)), zap.Int("remaining", len(s.order)))
	return nil
}

func (s *InMemoryVectorStore) UpdateDocument(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.docs[doc.ID]
	if !ok {
		return types.NewNotFoundError(fmt.Sprintf("document not found: %s", doc.ID))
	}
	if len(doc.Embedding) == 0 {
		doc.Embedding = old.Embedding
	}
	doc.Metadata = cloneMetadata(doc.Metadata)
	s.docs[doc.ID] = doc
	return nil
}

func (s *InMemoryVectorStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *InMemoryVectorStore) GetDocuments(_ context.Context, ids []string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			doc.Metadata = cloneMetadata(doc.Metadata)
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *InMemoryVectorStore) ClearAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.docs)
	s.order = nil
	s.logger.Info("memory store cleared")
	return nil
}

// ListDocumentIDs 按插入顺序分页
func (s *InMemoryVectorStore) ListDocumentIDs(_ context.Context, limit int, offset int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset = max(offset, 0)
	if limit <= 0 || offset >= len(s.order) {
		return []string{}, nil
	}
	end := min(offset+limit, len(s.order))
	return slices.Clone(s.order[offset:end]), nil
}
