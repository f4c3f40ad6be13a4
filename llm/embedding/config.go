package embedding

import (
	"fmt"
	"time"

	"github.com/BaSui01/wikichat/config"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`           // text-embedding-3-small
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"` // 512, 1536
	BatchSize  int           `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Logger     *zap.Logger   `json:"-" yaml:"-"`
}

// HashConfig configures the local feature-hash embedder.
type HashConfig struct {
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	BatchSize  int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
}

// DefaultOpenAIConfig returns default OpenAI embedding config.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    "https://api.openai.com",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		BatchSize:  64,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// NewFromConfig 根据 embedding 配置段创建 Provider。
func NewFromConfig(cfg config.EmbeddingConfig, maxRetries int, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
			MaxRetries: maxRetries,
			Logger:     logger,
		}), nil
	case "hash":
		return NewHashProvider(HashConfig{
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
