package rag

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/wikichat/config"
)

func TestNewVectorStoreFromConfig(t *testing.T) {
	logger := zap.NewNop()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tests := []struct {
		name      string
		storeType string
		db        *gorm.DB
		wantType  string
		wantErr   bool
		errMsg    string
	}{
		{name: "default", wantType: "*rag.InMemoryVectorStore"},
		{name: "memory", storeType: "memory", wantType: "*rag.InMemoryVectorStore"},
		{name: "qdrant", storeType: "qdrant", wantType: "*rag.QdrantStore"},
		{name: "sql", storeType: "sql", db: db, wantType: "*rag.SQLVectorStore"},
		{name: "sql needs db", storeType: "sql", wantErr: true, errMsg: "requires database"},
		{name: "unknown", storeType: "redis", wantErr: true, errMsg: "unsupported vector store type: redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.VectorStore.Type = tt.storeType
			cfg.Database.AutoMigrate = true

			store, err := NewVectorStoreFromConfig(cfg, tt.db, logger)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", store))
		})
	}
}

func TestNewVectorStoreFromConfig_NilConfig(t *testing.T) {
	_, err := NewVectorStoreFromConfig(nil, nil, nil)
	assert.ErrorIs(t, err, errNilConfig)
}

func TestNewVectorStoreFromConfig_NilLogger(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VectorStore.Type = "memory"
	store, err := NewVectorStoreFromConfig(cfg, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, store)
}

func TestQdrantConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Qdrant = config.QdrantConfig{
		Host:    "qdrant.local",
		Port:    6334,
		APIKey:  "secret",
		Timeout: 5 * time.Second,
	}
	cfg.VectorStore.Collection = "wiki_documents"
	cfg.Embedding.Dimensions = 512

	got := qdrantConfigFrom(cfg)
	assert.Equal(t, "qdrant.local", got.Host)
	assert.Equal(t, 6334, got.Port)
	assert.Equal(t, "secret", got.APIKey)
	assert.Equal(t, 5*time.Second, got.Timeout)
	assert.Equal(t, "http://qdrant.local:6334", got.BaseURL)
	assert.Equal(t, "wiki_documents", got.Collection)
	assert.Equal(t, 512, got.VectorSize)
	assert.True(t, got.AutoCreateCollection)
}

func TestNewEmbeddingProviderFromConfig(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "openai", wantName: "openai-embedding"},
		{provider: "hash", wantName: "hash-embedding"},
		{provider: "cohere", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Embedding.Provider = tt.provider
			cfg.Embedding.APIKey = "sk-test"

			p, err := NewEmbeddingProviderFromConfig(cfg, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}

	_, err := NewEmbeddingProviderFromConfig(nil, nil)
	assert.ErrorIs(t, err, errNilConfig)
}

func TestNewCollectionFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VectorStore.Type = "memory"
	cfg.Embedding.Provider = "hash"

	col, err := NewCollectionFromConfig(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, cfg.VectorStore.Collection, col.Name())

	cfg.VectorStore.Type = "nope"
	_, err = NewCollectionFromConfig(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewChunkerFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Chunker.ChunkSize = 500

	chunker := NewChunkerFromConfig(cfg, zap.NewNop())
	assert.Equal(t, 500, chunker.ChunkSize())

	chunks := chunker.ChunkDocument("a short paragraph about the singer", nil)
	require.Len(t, chunks, 1)
	assert.Greater(t, chunks[0].TokenCount, 0)
}
