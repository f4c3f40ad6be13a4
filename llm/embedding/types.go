package embedding

import "context"

// InputType 区分检索查询与入库文档，部分模型会据此使用不同的前缀。
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// EmbeddingRequest 一次嵌入调用的输入。Model/Dimensions 为空时取提供者默认值。
type EmbeddingRequest struct {
	Input      []string  `json:"input"`
	Model      string    `json:"model,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"`
	InputType  InputType `json:"input_type,omitempty"`
}

// EmbeddingData 中的 Index 对应 EmbeddingRequest.Input 的下标。
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type EmbeddingResponse struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Embeddings []EmbeddingData `json:"embeddings"`
	Usage      EmbeddingUsage  `json:"usage"`
}

// Provider 是 rag.Collection 依赖的嵌入接口。
// 文章分块走 EmbedDocuments，用户问题走 EmbedQuery。
type Provider interface {
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	Name() string
	Dimensions() int
	MaxBatchSize() int
}
