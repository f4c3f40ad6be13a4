package providers

import (
	"net/http"
	"time"

	"github.com/BaSui01/wikichat/llm"
)

// /v1/chat/completions 的请求与响应结构。

type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// CompletionRequest 中 Temperature 不带 omitempty：相关性判定需要显式发送 0。
type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []WireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	User        string        `json:"user,omitempty"`
}

type CompletionChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      WireMessage `json:"message"`
}

type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type CompletionResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *CompletionUsage   `json:"usage,omitempty"`
	Created int64              `json:"created,omitempty"`
}

func ToWireMessages(msgs []llm.Message) []WireMessage {
	out := make([]WireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = WireMessage{Role: string(m.Role), Content: m.Content, Name: m.Name}
	}
	return out
}

// ChatResponse 转换为 llm.ChatResponse；返回的消息角色固定为 assistant。
func (r CompletionResponse) ChatResponse(provider string) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:       r.ID,
		Provider: provider,
		Model:    r.Model,
		Choices:  make([]llm.ChatChoice, len(r.Choices)),
	}
	for i, c := range r.Choices {
		resp.Choices[i] = llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content, Name: c.Message.Name},
		}
	}
	if r.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
	}
	if r.Created != 0 {
		resp.CreatedAt = time.Unix(r.Created, 0)
	}
	return resp
}

// ChooseModel 优先级：请求 > 默认 > 兜底。
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	switch {
	case req != nil && req.Model != "":
		return req.Model
	case defaultModel != "":
		return defaultModel
	default:
		return fallbackModel
	}
}

// BearerTokenHeaders 设置 Authorization 与 JSON Content-Type。
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}
