package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashProvider 是一个本地、确定性的特征哈希嵌入器。
// 对小写后的词与相邻词对做 signed hashing，写入固定维度后 L2 归一化。
// 不依赖任何外部服务，用于离线开发、测试和演示。
type HashProvider struct {
	dimensions int
	maxBatch   int
}

// NewHashProvider 创建哈希嵌入器，dimensions<=0 时使用 384。
func NewHashProvider(cfg HashConfig) *HashProvider {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	return &HashProvider{dimensions: cfg.Dimensions, maxBatch: cfg.BatchSize}
}

func (h *HashProvider) Name() string      { return "hash-embedding" }
func (h *HashProvider) Dimensions() int   { return h.dimensions }
func (h *HashProvider) MaxBatchSize() int { return h.maxBatch }

// Embed 为每个输入计算哈希向量。
func (h *HashProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	out := make([]EmbeddingData, len(req.Input))
	tokens := 0
	for i, text := range req.Input {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, n := h.vector(text)
		tokens += n
		out[i] = EmbeddingData{Index: i, Embedding: vec}
	}
	return &EmbeddingResponse{
		Provider:   h.Name(),
		Model:      "feature-hash",
		Embeddings: out,
		Usage:      EmbeddingUsage{PromptTokens: tokens, TotalTokens: tokens},
	}, nil
}

func (h *HashProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := h.Embed(ctx, &EmbeddingRequest{Input: []string{query}, InputType: InputTypeQuery})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0].Embedding, nil
}

func (h *HashProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	resp, err := h.Embed(ctx, &EmbeddingRequest{Input: documents, InputType: InputTypeDocument})
	if err != nil {
		return nil, err
	}
	result := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		result[i] = e.Embedding
	}
	return result, nil
}

func (h *HashProvider) vector(text string) ([]float64, int) {
	vec := make([]float64, h.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for i, w := range words {
		h.add(vec, w, 1.0)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, len(words)
}

func (h *HashProvider) add(vec []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	idx := sum % uint64(len(vec))
	// 最高位决定符号，降低碰撞带来的偏差
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
