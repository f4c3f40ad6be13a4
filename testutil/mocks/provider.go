// Package mocks 提供测试用的 llm.Provider。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/wikichat/llm"
)

// MockProviderCall 一次 Completion 调用及其结果。
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// CompletionFunc 按请求内容决定返回值，例如区分相关性提示词与摘要提示词。
type CompletionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

// MockProvider 默认对任何请求回复 "Mock response"。
type MockProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	fn    CompletionFunc
	usage llm.ChatUsage
	calls []MockProviderCall
}

var _ llm.Provider = (*MockProvider)(nil)

func NewMockProvider() *MockProvider {
	return &MockProvider{
		reply: "Mock response",
		usage: llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func (m *MockProvider) WithResponse(reply string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
	return m
}

// WithError 之后每次调用都返回 err。
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = llm.ChatUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return m
}

// WithCompletionFunc 优先于 WithResponse；fn 在锁外执行。
func (m *MockProvider) WithCompletionFunc(fn CompletionFunc) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	fn, err, reply, usage := m.fn, m.err, m.reply, m.usage
	m.mu.Unlock()

	var resp *llm.ChatResponse
	switch {
	case err != nil:
	case fn != nil:
		resp, err = fn(ctx, req)
	default:
		resp = NewChatResponse(req.Model, reply)
		resp.Usage = usage
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
	m.mu.Unlock()
	return resp, err
}

// Calls 返回调用记录的副本。
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// NewChatResponse 单 choice 的 assistant 回复。
func NewChatResponse(model, content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: "mock",
		Model:    model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		CreatedAt: time.Now(),
	}
}
