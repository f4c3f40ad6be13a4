package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/wikichat/internal/tlsutil"
	"github.com/BaSui01/wikichat/llm"
	"github.com/BaSui01/wikichat/llm/providers"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "https://api.openai.com"
	defaultChatPath       = "/v1/chat/completions"
	defaultModelsPath     = "/v1/models"
	defaultRequestTimeout = 30 * time.Second
)

// Config 描述一个 OpenAI 兼容端点（OpenAI、vLLM、Ollama 的 OpenAI shim 等）。
type Config struct {
	ProviderName  string
	APIKey        string
	BaseURL       string
	DefaultModel  string
	FallbackModel string
	Timeout       time.Duration

	EndpointPath   string
	ModelsEndpoint string

	// BuildHeaders 为 nil 时使用 Bearer token。
	BuildHeaders func(req *http.Request, apiKey string)
	// RequestHook 在序列化前修改请求体。
	RequestHook func(req *llm.ChatRequest, body *providers.CompletionRequest)
}

func (c Config) withDefaults() Config {
	if c.ProviderName == "" {
		c.ProviderName = "openai"
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.EndpointPath == "" {
		c.EndpointPath = defaultChatPath
	}
	if c.ModelsEndpoint == "" {
		c.ModelsEndpoint = defaultModelsPath
	}
	if c.Timeout == 0 {
		c.Timeout = defaultRequestTimeout
	}
	return c
}

// Provider 相关性判定与摘要生成共用的 chat completion 客户端。
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

func New(cfg Config, logger *zap.Logger) *Provider {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.NewClient(cfg.Timeout, nil),
		logger: logger.With(zap.String("component", "llm_provider"), zap.String("provider", cfg.ProviderName)),
	}
}

func (p *Provider) Name() string { return p.cfg.ProviderName }

func (p *Provider) SetBuildHeaders(fn func(req *http.Request, apiKey string)) {
	p.cfg.BuildHeaders = fn
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	if p.cfg.BuildHeaders == nil {
		providers.BearerTokenHeaders(req, apiKey)
		return
	}
	p.cfg.BuildHeaders(req, apiKey)
}

// send 发出请求并把传输层错误映射为 llm.Error。调用方负责关闭 Body。
func (p *Provider) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(req, p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s %s: %w", p.Name(), path, ctx.Err())
		}
		return nil, providers.NetworkError(err, p.Name())
	}
	return resp, nil
}

// HealthCheck 请求 models 端点，供 /ready 使用。
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodGet, p.cfg.ModelsEndpoint, nil)
	status := &llm.HealthStatus{Latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("%s health check failed: status=%d msg=%s",
			p.Name(), resp.StatusCode, providers.ReadErrorMessage(resp.Body))
	}
	status.Healthy = true
	return status, nil
}

func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "messages must not be empty",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	wire := providers.CompletionRequest{
		Model:       providers.ChooseModel(req, p.cfg.DefaultModel, p.cfg.FallbackModel),
		Messages:    providers.ToWireMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		User:        req.TraceID,
	}
	if p.cfg.RequestHook != nil {
		p.cfg.RequestHook(req, &wire)
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	resp, err := p.send(ctx, http.MethodPost, p.cfg.EndpointPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := providers.ReadErrorMessage(resp.Body)
		p.logger.Warn("completion rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", wire.Model),
			zap.String("error", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var decoded providers.CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	out := decoded.ChatResponse(p.Name())
	if out.Model == "" {
		out.Model = wire.Model
	}
	p.logger.Debug("completion finished",
		zap.String("model", out.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}
