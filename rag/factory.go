package rag

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/llm/embedding"
)

// VectorStoreType 标识要创建的向量存储后端。
type VectorStoreType string

const (
	VectorStoreMemory VectorStoreType = "memory"
	VectorStoreQdrant VectorStoreType = "qdrant"
	VectorStoreSQL    VectorStoreType = "sql"
)

var errNilConfig = errors.New("rag: config is nil")

// NewVectorStoreFromConfig 根据 vector_store.type 创建 VectorStore。
// sql 后端需要 db；类型为空时默认使用 InMemory 后端。
func NewVectorStoreFromConfig(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (VectorStore, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch kind := VectorStoreType(cfg.VectorStore.Type); kind {
	case VectorStoreMemory, "":
		return NewInMemoryVectorStore(logger), nil
	case VectorStoreQdrant:
		return NewQdrantStore(qdrantConfigFrom(cfg), logger), nil
	case VectorStoreSQL:
		if db == nil {
			return nil, errors.New("sql vector store requires database configuration")
		}
		return NewSQLVectorStore(db, SQLStoreConfig{
			Collection:  cfg.VectorStore.Collection,
			AutoMigrate: cfg.Database.AutoMigrate,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", kind)
	}
}

// NewEmbeddingProviderFromConfig 根据 embedding 配置段创建 embedding.Provider。
func NewEmbeddingProviderFromConfig(cfg *config.Config, logger *zap.Logger) (embedding.Provider, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	return embedding.NewFromConfig(cfg.Embedding, cfg.LLM.MaxRetries, logger)
}

// NewCollectionFromConfig 组装 embedding 提供者与向量存储。
func NewCollectionFromConfig(cfg *config.Config, db *gorm.DB, logger *zap.Logger, opts ...CollectionOption) (*Collection, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	emb, err := NewEmbeddingProviderFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	store, err := NewVectorStoreFromConfig(cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	return NewCollection(cfg.VectorStore.Collection, emb, store, logger, opts...), nil
}

// NewChunkerFromConfig 创建段落分块器，token 计数使用配置的 tiktoken 编码。
func NewChunkerFromConfig(cfg *config.Config, logger *zap.Logger) *ParagraphChunker {
	return NewParagraphChunker(cfg.Chunker.ChunkSize, NewEncodingAdapter(cfg.Chunker.Encoding, logger), logger)
}

// 集合按需创建，向量维度跟随 embedding.dimensions。
func qdrantConfigFrom(cfg *config.Config) QdrantConfig {
	q := cfg.Qdrant
	return QdrantConfig{
		Host:                 q.Host,
		Port:                 q.Port,
		BaseURL:              q.BaseURL(),
		APIKey:               q.APIKey,
		Timeout:              q.Timeout,
		Collection:           cfg.VectorStore.Collection,
		VectorSize:           cfg.Embedding.Dimensions,
		AutoCreateCollection: true,
	}
}
