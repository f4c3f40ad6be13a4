package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const (
	openAIProviderName = "openai-embedding"
	// legacyModel 不接受 dimensions 参数
	legacyModel = "text-embedding-ada-002"
)

// OpenAIProvider 调用 OpenAI 兼容网关的 /v1/embeddings
type OpenAIProvider struct {
	cfg OpenAIConfig
	api *apiClient
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	cfg = cfg.withDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "embedding"), zap.String("provider", openAIProviderName))

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	return &OpenAIProvider{
		cfg: cfg,
		api: newAPIClient(openAIProviderName, cfg.BaseURL, cfg.Timeout, cfg.MaxRetries, headers, logger),
	}
}

func (c OpenAIConfig) withDefaults() OpenAIConfig {
	def := DefaultOpenAIConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Dimensions == 0 {
		c.Dimensions = def.Dimensions
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	return c
}

func (p *OpenAIProvider) Name() string      { return openAIProviderName }
func (p *OpenAIProvider) Dimensions() int   { return p.cfg.Dimensions }
func (p *OpenAIProvider) MaxBatchSize() int { return p.cfg.BatchSize }

type openAIEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type openAIEmbedResponse struct {
	Data  []EmbeddingData `json:"data"`
	Model string          `json:"model"`
	Usage EmbeddingUsage  `json:"usage"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	out := &EmbeddingResponse{Provider: openAIProviderName, Model: p.cfg.Model}
	if len(req.Input) == 0 {
		return out, nil
	}

	wire := openAIEmbedRequest{
		Input:          req.Input,
		Model:          p.cfg.Model,
		Dimensions:     req.Dimensions,
		EncodingFormat: "float",
	}
	if req.Model != "" {
		wire.Model = req.Model
	}
	switch {
	case wire.Model == legacyModel:
		wire.Dimensions = 0
	case wire.Dimensions == 0:
		wire.Dimensions = p.cfg.Dimensions
	}

	var decoded openAIEmbedResponse
	if err := p.api.postJSON(ctx, "/v1/embeddings", wire, &decoded); err != nil {
		return nil, err
	}
	out.Model = decoded.Model
	out.Usage = decoded.Usage
	out.Embeddings = decoded.Data
	return out, nil
}

func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &EmbeddingRequest{Input: []string{query}, InputType: InputTypeQuery})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedDocuments 按 batch_size 分批请求，结果顺序与输入一致
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	all := make([][]float64, 0, len(documents))
	for start := 0; start < len(documents); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(documents))
		resp, err := p.Embed(ctx, &EmbeddingRequest{Input: documents[start:end], InputType: InputTypeDocument})
		if err != nil {
			return nil, fmt.Errorf("embed documents %d-%d: %w", start, end, err)
		}
		vecs, err := inInputOrder(resp.Embeddings, end-start)
		if err != nil {
			return nil, err
		}
		all = append(all, vecs...)
	}
	return all, nil
}
