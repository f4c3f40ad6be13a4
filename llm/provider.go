package llm

import (
	"context"
	"strings"
	"time"
)

// MetadataPurpose ChatRequest.Metadata 中标记调用用途的键，取值 relevance 或 summary
const MetadataPurpose = "purpose"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest TraceID 作为上游的 user 字段透传，便于对账
type ChatRequest struct {
	TraceID     string            `json:"trace_id"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewUserRequest 单条 user 消息
func NewUserRequest(model, prompt string, maxTokens int, temperature float64) *ChatRequest {
	return &ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstChoice resp 为 nil 或没有 choices 时返回 ErrEmptyResponse
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, emptyResponse("", "nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, emptyResponse(resp.Provider, "empty choices in ChatResponse from %s", resp.Provider)
	}
	return resp.Choices[0], nil
}

// FirstContent 第一个 choice 去掉首尾空白后的文本
func FirstContent(resp *ChatResponse) (string, error) {
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(choice.Message.Content), nil
}

type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider 同步聊天补全。实现需并发安全，中间件（重试、观测）以装饰器形式叠加。
type Provider interface {
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// HealthCheck 轻量探测，供 /ready 使用
	HealthCheck(ctx context.Context) (*HealthStatus, error)
	Name() string
}
