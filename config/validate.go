package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	vectorStoreTypes   = []string{"memory", "qdrant", "sql"}
	embeddingProviders = []string{"openai", "hash"}
	databaseDrivers    = []string{"postgres", "mysql", "sqlite"}
)

// Validate 一次返回全部问题（errors.Join）
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		fail("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		fail("server.metrics_port %d out of range", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.HTTPPort {
		fail("server.metrics_port must differ from server.http_port")
	}

	if c.Wiki.URL == "" {
		fail("wiki.url is required")
	}
	if c.Wiki.DocumentID == "" {
		fail("wiki.document_id is required")
	}
	if _, err := c.Wiki.Birthday(); err != nil {
		fail("wiki.birth_date %q is not YYYY-MM-DD", c.Wiki.BirthDate)
	}
	if c.Chunker.ChunkSize <= 0 {
		fail("chunker.chunk_size must be positive")
	}

	if !slices.Contains(embeddingProviders, c.Embedding.Provider) {
		fail("embedding.provider %q not one of %v", c.Embedding.Provider, embeddingProviders)
	}
	if !slices.Contains(vectorStoreTypes, c.VectorStore.Type) {
		fail("vector_store.type %q not one of %v", c.VectorStore.Type, vectorStoreTypes)
	}
	if c.VectorStore.Type == "sql" && !slices.Contains(databaseDrivers, c.Database.Driver) {
		fail("database.driver %q not one of %v", c.Database.Driver, databaseDrivers)
	}

	for _, call := range []struct {
		name string
		cfg  CompletionConfig
	}{{"relevance", c.LLM.Relevance}, {"summary", c.LLM.Summary}} {
		if call.cfg.Model == "" {
			fail("llm.%s.model is required", call.name)
		}
		if call.cfg.Temperature < 0 || call.cfg.Temperature > 2 {
			fail("llm.%s.temperature %.2f outside [0, 2]", call.name, call.cfg.Temperature)
		}
	}

	return errors.Join(errs...)
}

// RequireLLMCredentials serve 模式额外要求的凭据
func RequireLLMCredentials(c *Config) error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set %s_LLM_API_KEY or OPENAI_API_KEY)", DefaultEnvPrefix)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return errors.New("embedding.api_key is required for the openai embedding provider")
	}
	return nil
}
