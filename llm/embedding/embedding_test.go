package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/wikichat/config"
	"github.com/BaSui01/wikichat/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestOpenAIConfig_WithDefaults(t *testing.T) {
	cfg := OpenAIConfig{}.withDefaults()
	assert.Equal(t, "https://api.openai.com", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Equal(t, 64, cfg.BatchSize)

	cfg = OpenAIConfig{BaseURL: "http://gw", Model: "m", Dimensions: 512, BatchSize: -1}.withDefaults()
	assert.Equal(t, "http://gw", cfg.BaseURL)
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, 512, cfg.Dimensions)
	assert.Equal(t, 64, cfg.BatchSize)
}

func TestNewAPIClient(t *testing.T) {
	c := newAPIClient("test", "http://example.com/", 0, 1, http.Header{}, nil)
	assert.Equal(t, "http://example.com", c.baseURL)
	assert.Equal(t, 30*time.Second, c.http.Timeout)

	c = newAPIClient("test", "http://api.test", 10*time.Second, 1, http.Header{}, nil)
	assert.Equal(t, 10*time.Second, c.http.Timeout)
}

func TestInInputOrder(t *testing.T) {
	tests := []struct {
		name    string
		data    []EmbeddingData
		n       int
		want    [][]float64
		wantErr bool
	}{
		{
			name: "reordered by index",
			data: []EmbeddingData{{Index: 1, Embedding: []float64{1}}, {Index: 0, Embedding: []float64{0}}},
			n:    2,
			want: [][]float64{{0}, {1}},
		},
		{
			name: "bad index falls back to position",
			data: []EmbeddingData{{Index: 7, Embedding: []float64{0}}, {Index: 1, Embedding: []float64{1}}},
			n:    2,
			want: [][]float64{{0}, {1}},
		},
		{
			name:    "count mismatch",
			data:    []EmbeddingData{{Embedding: []float64{0}}},
			n:       2,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inInputOrder(tt.data, tt.n)
			if tt.wantErr {
				assert.ErrorContains(t, err, "count mismatch")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- mapHTTPError ---

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		wantCode  llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{http.StatusTooManyRequests, "slow", llm.ErrRateLimited, true},
		{http.StatusBadRequest, "input too long, limit 8191", llm.ErrInvalidRequest, false},
		{http.StatusInternalServerError, "", llm.ErrUpstreamError, true},
		{http.StatusBadGateway, "", llm.ErrUpstreamError, true},
		{http.StatusServiceUnavailable, "", llm.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := mapHTTPError(tt.status, tt.msg, "test-provider")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "test-provider", err.Provider)
			assert.Equal(t, tt.status, err.HTTPStatus)
		})
	}
}

// --- OpenAIProvider ---

func newEmbeddingServer(t *testing.T, handler func(req openAIEmbedRequest) (int, any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-emb", r.Header.Get("Authorization"))
		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func embedBody(vectors [][]float64, reverse bool) map[string]any {
	data := make([]map[string]any, 0, len(vectors))
	for i := range vectors {
		idx := i
		if reverse {
			idx = len(vectors) - 1 - i
		}
		data = append(data, map[string]any{"object": "embedding", "index": idx, "embedding": vectors[idx]})
	}
	return map[string]any{
		"object": "list",
		"data":   data,
		"model":  "text-embedding-3-small",
		"usage":  map[string]int{"prompt_tokens": 7, "total_tokens": 7},
	}
}

func TestOpenAIProvider_EmbedDocuments_PreservesOrder(t *testing.T) {
	var got openAIEmbedRequest
	server := newEmbeddingServer(t, func(req openAIEmbedRequest) (int, any) {
		got = req
		vecs := make([][]float64, len(req.Input))
		for i := range req.Input {
			vecs[i] = []float64{float64(i), 1}
		}
		// 服务端乱序返回，客户端按 index 归位
		return http.StatusOK, embedBody(vecs, true)
	})
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-emb", BaseURL: server.URL, Dimensions: 2})
	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", got.Model)
	assert.Equal(t, 2, got.Dimensions)
	assert.Equal(t, "float", got.EncodingFormat)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, []float64{float64(i), 1}, v)
	}
}

func TestOpenAIProvider_EmbedQuery(t *testing.T) {
	server := newEmbeddingServer(t, func(req openAIEmbedRequest) (int, any) {
		assert.Equal(t, []string{"how old is he"}, req.Input)
		return http.StatusOK, embedBody([][]float64{{0.1, 0.2}}, false)
	})
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-emb", BaseURL: server.URL})
	vec, err := p.EmbedQuery(context.Background(), "how old is he")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, 64, p.MaxBatchSize())
}

func TestOpenAIProvider_CountMismatch(t *testing.T) {
	server := newEmbeddingServer(t, func(req openAIEmbedRequest) (int, any) {
		return http.StatusOK, embedBody([][]float64{{1}}, false)
	})
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-emb", BaseURL: server.URL})
	_, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := newEmbeddingServer(t, func(req openAIEmbedRequest) (int, any) {
		if calls.Add(1) == 1 {
			return http.StatusServiceUnavailable, map[string]any{"error": map[string]string{"message": "busy"}}
		}
		return http.StatusOK, embedBody([][]float64{{1, 0}}, false)
	})
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-emb", BaseURL: server.URL, MaxRetries: 2, Logger: zap.NewNop()})
	p.api.retryer = fastRetryer()

	vec, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIProvider_DoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	server := newEmbeddingServer(t, func(req openAIEmbedRequest) (int, any) {
		calls.Add(1)
		return http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "Incorrect API key"}}
	})
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-emb", BaseURL: server.URL, MaxRetries: 3})
	p.api.retryer = fastRetryer()

	_, err := p.EmbedQuery(context.Background(), "q")
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
	assert.Equal(t, "Incorrect API key", llmErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIProvider_EmptyInput(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: "http://127.0.0.1:1"})
	vecs, err := p.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

// --- HashProvider ---

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(HashConfig{Dimensions: 64})
	a, err := p.EmbedQuery(context.Background(), "Sai Sai Kham Leng albums")
	require.NoError(t, err)
	b, err := p.EmbedQuery(context.Background(), "sai sai kham leng ALBUMS!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "case and punctuation must not matter")
	assert.Len(t, a, 64)
}

func TestHashProvider_SimilarTextsScoreHigher(t *testing.T) {
	p := NewHashProvider(HashConfig{})
	ctx := context.Background()
	docs, err := p.EmbedDocuments(ctx, []string{
		"He released his debut album in 2000 and became a popular hip hop artist.",
		"The river flows through the valley toward the southern sea.",
	})
	require.NoError(t, err)
	q, err := p.EmbedQuery(ctx, "what was his debut album")
	require.NoError(t, err)

	assert.Greater(t, cosine(q, docs[0]), cosine(q, docs[1]))
}

func TestHashProvider_UnitNormProperty(t *testing.T) {
	p := NewHashProvider(HashConfig{Dimensions: 32})
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-z]{1,8}( [a-z]{1,8}){0,20}`).Draw(rt, "text")
		vec, err := p.EmbedQuery(context.Background(), text)
		if err != nil {
			rt.Fatal(err)
		}
		var norm float64
		for _, v := range vec {
			norm += v * v
		}
		if math.Abs(norm-1) > 1e-9 {
			rt.Fatalf("norm^2 = %v for %q", norm, text)
		}
	})
}

func TestHashProvider_EmbedResponse(t *testing.T) {
	p := NewHashProvider(HashConfig{Dimensions: 8})
	resp, err := p.Embed(context.Background(), &EmbeddingRequest{Input: []string{"first text", "second"}})
	require.NoError(t, err)

	assert.Equal(t, "hash-embedding", resp.Provider)
	assert.Equal(t, "feature-hash", resp.Model)
	require.Len(t, resp.Embeddings, 2)
	for i, d := range resp.Embeddings {
		assert.Equal(t, i, d.Index)
		assert.Len(t, d.Embedding, 8)
	}
	assert.Positive(t, resp.Usage.PromptTokens)
	assert.Equal(t, resp.Usage.PromptTokens, resp.Usage.TotalTokens)
}

func TestHashProvider_EmptyTextIsZeroVector(t *testing.T) {
	p := NewHashProvider(HashConfig{Dimensions: 8})
	vec, err := p.EmbedQuery(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 8), vec)
}

// --- NewFromConfig ---

func TestNewFromConfig(t *testing.T) {
	p, err := NewFromConfig(config.EmbeddingConfig{Provider: "hash", Dimensions: 16}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "hash-embedding", p.Name())
	assert.Equal(t, 16, p.Dimensions())

	p, err = NewFromConfig(config.EmbeddingConfig{Provider: "openai", APIKey: "k"}, 1, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "openai-embedding", p.Name())

	_, err = NewFromConfig(config.EmbeddingConfig{Provider: "cohere"}, 0, nil)
	assert.Error(t, err)
}

func TestOpenAIProvider_EmbedDocuments_Batches(t *testing.T) {
	var batches []int
	server := newEmbeddingServer(t, func(req openAIEmbedRequest) (int, any) {
		batches = append(batches, len(req.Input))
		vecs := make([][]float64, len(req.Input))
		for i, in := range req.Input {
			vecs[i] = []float64{float64(len(in))}
		}
		return http.StatusOK, embedBody(vecs, false)
	})
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-emb", BaseURL: server.URL, BatchSize: 2})
	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, batches)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, []float64{float64(i + 1)}, v)
	}
}
