package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/internal/tlsutil"
	"github.com/BaSui01/wikichat/llm"
	"github.com/BaSui01/wikichat/llm/providers"
	"github.com/BaSui01/wikichat/llm/retry"
)

// apiClient 发送 JSON 请求到嵌入网关，5xx/429/网络错误按退避策略重试
type apiClient struct {
	provider string
	baseURL  string
	headers  http.Header
	http     *http.Client
	retryer  retry.Retryer
}

func newAPIClient(provider, baseURL string, timeout time.Duration, maxRetries int, headers http.Header, logger *zap.Logger) *apiClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	policy := retry.DefaultRetryPolicy().WithMaxRetries(maxRetries)
	policy.InitialDelay = 500 * time.Millisecond
	policy.MaxDelay = 10 * time.Second
	policy.ShouldRetry = llm.IsRetryable

	return &apiClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		headers:  headers,
		http:     tlsutil.NewClient(timeout, nil),
		retryer:  retry.NewBackoffRetryer(policy, logger),
	}
}

// postJSON 把 in 编码为请求体，成功时把响应解码进 out
func (c *apiClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.retryer.Do(ctx, func() error {
		return c.post(ctx, path, payload, out)
	})
}

func (c *apiClient) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = c.headers.Clone()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return providers.NetworkError(err, c.provider)
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return mapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), c.provider)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// mapHTTPError 400 一律映射为 ErrInvalidRequest，其余交给 providers.MapHTTPError
func mapHTTPError(status int, msg, provider string) *llm.Error {
	if status == http.StatusBadRequest {
		return &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	}
	return providers.MapHTTPError(status, msg, provider)
}

// inInputOrder 按 Index 把向量放回输入位置；Index 越界时退回响应顺序
func inInputOrder(data []EmbeddingData, n int) ([][]float64, error) {
	if len(data) != n {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(data), n)
	}
	out := make([][]float64, n)
	for i, d := range data {
		idx := d.Index
		if idx < 0 || idx >= n || out[idx] != nil {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}
