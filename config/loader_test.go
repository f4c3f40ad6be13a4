package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
	assert.Equal(t, "sai_sai_kham_leng_wiki", cfg.Wiki.DocumentID)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := writeYAML(t, `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins:
    - "https://chat.example.com"

wiki:
  url: "https://en.wikipedia.org/wiki/Go_(programming_language)"
  document_id: "golang_wiki"

chunker:
  chunk_size: 500

vector_store:
  type: qdrant
  collection: go_docs

llm:
  summary:
    model: "gpt-4o-mini"
    max_tokens: 512

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`)

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Server.CORSAllowedOrigins)

	assert.Equal(t, "golang_wiki", cfg.Wiki.DocumentID)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "go_docs", cfg.VectorStore.Collection)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Summary.Model)
	assert.Equal(t, 512, cfg.LLM.Summary.MaxTokens)
	// 未覆盖的字段保持默认值
	assert.InDelta(t, 0.3, cfg.LLM.Summary.Temperature, 0.0001)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Relevance.Model)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("WIKICHAT_SERVER_HTTP_PORT", "7777")
	t.Setenv("WIKICHAT_SERVER_API_KEYS", "k1, k2,")
	t.Setenv("WIKICHAT_WIKI_TOPIC", "Someone Else")
	t.Setenv("WIKICHAT_LLM_RELEVANCE_MODEL", "gpt-4o")
	t.Setenv("WIKICHAT_LLM_RELEVANCE_TEMPERATURE", "0.0")
	t.Setenv("WIKICHAT_CACHE_ENABLED", "true")
	t.Setenv("WIKICHAT_CACHE_SUMMARY_TTL", "90m")
	t.Setenv("WIKICHAT_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "Someone Else", cfg.Wiki.Topic)
	assert.Equal(t, "gpt-4o", cfg.LLM.Relevance.Model)
	assert.Equal(t, 0.0, cfg.LLM.Relevance.Temperature)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 90*time.Minute, cfg.Cache.SummaryTTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := writeYAML(t, `
server:
  http_port: 8888
wiki:
  topic: "yaml-topic"
  document_id: "yaml-doc"
`)

	t.Setenv("WIKICHAT_SERVER_HTTP_PORT", "9999")
	t.Setenv("WIKICHAT_WIKI_TOPIC", "env-topic")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-topic", cfg.Wiki.Topic)
	assert.Equal(t, "yaml-doc", cfg.Wiki.DocumentID)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("WIKICHAT_SERVER_READ_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("WIKICHAT_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey)
	assert.Equal(t, "sk-fallback", cfg.Embedding.APIKey)
	assert.Equal(t, cfg.LLM.BaseURL, cfg.Embedding.BaseURL)
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	t.Setenv("WIKICHAT_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_RequireLLMCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("WIKICHAT_LLM_API_KEY", "")

	_, err := NewLoader().WithValidator(RequireLLMCredentials).Load()
	assert.Error(t, err)

	t.Setenv("WIKICHAT_LLM_API_KEY", "sk-test")
	cfg, err := NewLoader().WithValidator(RequireLLMCredentials).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := writeYAML(t, `
server:
  http_port: [invalid
  this is not valid yaml
`)

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid HTTP port (negative)",
			modify:  func(c *Config) { c.Server.HTTPPort = -1 },
			wantErr: true,
		},
		{
			name:    "invalid HTTP port (too large)",
			modify:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: true,
		},
		{
			name:    "metrics port collides",
			modify:  func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort },
			wantErr: true,
		},
		{
			name:    "zero chunk size",
			modify:  func(c *Config) { c.Chunker.ChunkSize = 0 },
			wantErr: true,
		},
		{
			name:    "bad birth date",
			modify:  func(c *Config) { c.Wiki.BirthDate = "10/04/1979" },
			wantErr: true,
		},
		{
			name:    "unknown vector store",
			modify:  func(c *Config) { c.VectorStore.Type = "chroma" },
			wantErr: true,
		},
		{
			name: "sql store with unknown driver",
			modify: func(c *Config) {
				c.VectorStore.Type = "sql"
				c.Database.Driver = "oracle"
			},
			wantErr: true,
		},
		{
			name:    "unknown embedder",
			modify:  func(c *Config) { c.Embedding.Provider = "cohere" },
			wantErr: true,
		},
		{
			name:    "summary temperature too high",
			modify:  func(c *Config) { c.LLM.Summary.Temperature = 3.0 },
			wantErr: true,
		},
		{
			name:    "missing relevance model",
			modify:  func(c *Config) { c.LLM.Relevance.Model = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestConfig_ValidateReportsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Wiki.URL = ""
	cfg.VectorStore.Type = "chroma"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.http_port", "wiki.url", "vector_store.type"} {
		assert.Contains(t, err.Error(), want)
	}
}
