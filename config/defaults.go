// =============================================================================
// 📦 WikiChat 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Wiki:        DefaultWikiConfig(),
		Chunker:     DefaultChunkerConfig(),
		Embedding:   DefaultEmbeddingConfig(),
		VectorStore: DefaultVectorStoreConfig(),
		Qdrant:      DefaultQdrantConfig(),
		Database:    DefaultDatabaseConfig(),
		LLM:         DefaultLLMConfig(),
		Redis:       DefaultRedisConfig(),
		Cache:       DefaultCacheConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// DefaultWikiConfig 返回默认词条配置
func DefaultWikiConfig() WikiConfig {
	return WikiConfig{
		URL:             "https://en.wikipedia.org/wiki/Sai_Sai_Kham_Leng",
		DocumentID:      "sai_sai_kham_leng_wiki",
		Topic:           "Sai Sai Kham Leng",
		Description:     "a Myanmar singer, actor, and entertainer",
		BirthDate:       "1979-04-10",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Timeout:         30 * time.Second,
		IngestOnStartup: true,
	}
}

// DefaultChunkerConfig 返回默认分块配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize: 1000,
		Encoding:  "cl100k_base",
	}
}

// DefaultEmbeddingConfig 返回默认向量化配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		BatchSize:  64,
		Timeout:    30 * time.Second,
	}
}

// DefaultVectorStoreConfig 返回默认向量存储配置
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Type:       "memory",
		Collection: "wiki_documents",
	}
}

// DefaultQdrantConfig 返回默认 Qdrant 配置
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:    "localhost",
		Port:    6333,
		APIKey:  "",
		Timeout: 30 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "wikichat",
		Password:        "",
		Name:            "wikichat.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		APIKey:     "",
		BaseURL:    "https://api.openai.com",
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		Relevance: CompletionConfig{
			Model:       "gpt-3.5-turbo",
			MaxTokens:   10,
			Temperature: 0.1,
		},
		Summary: CompletionConfig{
			Model:       "gpt-3.5-turbo",
			MaxTokens:   300,
			Temperature: 0.3,
		},
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      false,
		RelevanceTTL: time.Hour,
		SummaryTTL:   24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "wikichat",
		SampleRate:   0.1,
	}
}
