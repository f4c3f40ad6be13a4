package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/BaSui01/wikichat/internal/tlsutil"
	"github.com/BaSui01/wikichat/types"
)

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 4 << 10

// qdrantStatusError 非 2xx 响应
type qdrantStatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("method=%s path=%s status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

// qdrantClient 针对单个 collection 的 REST 调用
type qdrantClient struct {
	baseURL    string
	collection string
	http       *http.Client
}

func newQdrantClient(baseURL, collection, apiKey string, timeout time.Duration) *qdrantClient {
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"api-key": apiKey}
	}
	return &qdrantClient{
		baseURL:    baseURL,
		collection: collection,
		http:       tlsutil.NewClient(timeout, headers),
	}
}

// path 返回 collection 下的路径，suffix 为空时即 collection 本身
func (c *qdrantClient) path(suffix string) string {
	return "/collections/" + url.PathEscape(c.collection) + suffix
}

// send 发送 JSON 请求；out 为 nil 时丢弃响应体。非 2xx 返回 *qdrantStatusError。
func (c *qdrantClient) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &qdrantStatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// call 同 send，失败时包装成 VECTOR_STORE_ERROR
func (c *qdrantClient) call(ctx context.Context, op, method, path string, in, out any) error {
	if err := c.send(ctx, method, path, in, out); err != nil {
		return qdrantError(op, err)
	}
	return nil
}

func qdrantError(op string, err error) error {
	return types.NewError(types.ErrVectorStoreError, "qdrant "+op+" failed").
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithComponent("qdrant")
}

// hasStatus err 是否为给定状态码的 Qdrant 响应
func hasStatus(err error, status int) bool {
	var se *qdrantStatusError
	return errors.As(err, &se) && se.Status == status
}
