package rag

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/types"
)

// payload 字段名
const (
	payloadDocID    = "doc_id"
	payloadContent  = "content"
	payloadMetadata = "metadata"
)

// QdrantConfig Qdrant REST 连接参数。BaseURL 非空时忽略 Host/Port。
type QdrantConfig struct {
	Host       string
	Port       int
	BaseURL    string
	APIKey     string
	Collection string
	Timeout    time.Duration

	// AutoCreateCollection 首次写入时以 VectorSize（为 0 则取首个向量长度）建集合
	AutoCreateCollection bool
	VectorSize           int
	Distance             string // Cosine | Dot | Euclid
}

func (c QdrantConfig) withDefaults() QdrantConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6333
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Distance == "" {
		c.Distance = "Cosine"
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	}
	c.Collection = strings.TrimSpace(c.Collection)
	return c
}

// QdrantStore 以 Qdrant 集合实现 VectorStore。点 ID 由文档 ID 派生出稳定的 UUID，
// 文档 ID、正文与元数据存放在 payload 中。
type QdrantStore struct {
	cfg    QdrantConfig
	api    *qdrantClient
	logger *zap.Logger

	mu      sync.Mutex
	created bool
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score,omitempty"`
	Vector  []float64      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type qdrantSearchRequest struct {
	Vector      []float64 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type qdrantRetrieveRequest struct {
	IDs         []string `json:"ids"`
	WithPayload bool     `json:"with_payload"`
	WithVector  bool     `json:"with_vector"`
}

type qdrantScrollRequest struct {
	Limit       int      `json:"limit"`
	Offset      any      `json:"offset,omitempty"`
	WithPayload []string `json:"with_payload"`
	WithVector  bool     `json:"with_vector"`
}

type qdrantPointsResult struct {
	Result []qdrantPoint `json:"result"`
}

func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &QdrantStore{
		cfg:    cfg,
		api:    newQdrantClient(cfg.BaseURL, cfg.Collection, strings.TrimSpace(cfg.APIKey), cfg.Timeout),
		logger: logger.With(zap.String("component", "qdrant_store")),
	}
}

var qdrantNamespace = uuid.MustParse("d9bde6d4-4f3a-4e6b-8f7a-5d8d2f3b4c1a")

// qdrantPointID 任意字符串 ID 映射到固定的 UUIDv5
func qdrantPointID(docID string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(docID)).String()
}

func (s *QdrantStore) checkCollection() error {
	if s.cfg.Collection == "" {
		return types.NewInvalidRequestError("qdrant collection is required")
	}
	return nil
}

// ensureCollection 每个进程最多成功创建一次；409 表示集合已存在
func (s *QdrantStore) ensureCollection(ctx context.Context, size int) error {
	if !s.cfg.AutoCreateCollection {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}

	body := map[string]any{"vectors": map[string]any{"size": size, "distance": s.cfg.Distance}}
	err := s.api.send(ctx, http.MethodPut, s.api.path(""), body, nil)
	if err != nil && !hasStatus(err, http.StatusConflict) {
		return qdrantError("create collection", err)
	}
	s.created = true
	s.logger.Info("qdrant collection ready",
		zap.String("collection", s.cfg.Collection),
		zap.Int("vector_size", size))
	return nil
}

// collectionMissing 集合尚未创建（或已被删除）时 Qdrant 对 points 端点返回 404。
// 读操作把它当作空集合，同时允许下一次写入重新建集合。
func (s *QdrantStore) collectionMissing(err error) bool {
	if !hasStatus(err, http.StatusNotFound) {
		return false
	}
	s.mu.Lock()
	s.created = false
	s.mu.Unlock()
	return true
}

func toDocument(p qdrantPoint) Document {
	doc := Document{Embedding: p.Vector}
	doc.ID, _ = p.Payload[payloadDocID].(string)
	doc.Content, _ = p.Payload[payloadContent].(string)
	doc.Metadata, _ = p.Payload[payloadMetadata].(map[string]any)
	if doc.ID == "" {
		doc.ID = fmt.Sprint(p.ID)
	}
	return doc
}

// vectorSize 校验整批文档的 ID 与向量维度，返回统一的维度
func (s *QdrantStore) vectorSize(docs []Document) (int, error) {
	size := s.cfg.VectorSize
	for i, doc := range docs {
		switch {
		case doc.ID == "":
			return 0, types.NewInvalidRequestError(fmt.Sprintf("document[%d] has empty id", i))
		case len(doc.Embedding) == 0:
			return 0, types.NewInvalidRequestError(fmt.Sprintf("document[%d] has no embedding", i))
		case size == 0:
			size = len(doc.Embedding)
		}
		if len(doc.Embedding) != size {
			return 0, types.NewInvalidRequestError(fmt.Sprintf(
				"document[%d] embedding dimension mismatch: got=%d want=%d", i, len(doc.Embedding), size))
		}
	}
	return size, nil
}

func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.checkCollection(); err != nil {
		return err
	}
	size, err := s.vectorSize(docs)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, size); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(docs))
	for i, doc := range docs {
		points[i] = qdrantPoint{
			ID:     qdrantPointID(doc.ID),
			Vector: doc.Embedding,
			Payload: map[string]any{
				payloadDocID:    doc.ID,
				payloadContent:  doc.Content,
				payloadMetadata: doc.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	err = s.api.call(ctx, "upsert", http.MethodPut, s.api.path("/points?wait=true"), body, nil)
	// 集合在进程运行期间被外部删除：重建后重试一次
	if err != nil && s.cfg.AutoCreateCollection && s.collectionMissing(err) {
		if err := s.ensureCollection(ctx, size); err != nil {
			return err
		}
		err = s.api.call(ctx, "upsert", http.MethodPut, s.api.path("/points?wait=true"), body, nil)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("qdrant upsert completed", zap.Int("count", len(docs)))
	return nil
}

// Search Qdrant 按 cosine 相似度返回，Distance 取 1 - score
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error) {
	if err := s.checkCollection(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []VectorSearchResult{}, nil
	}
	if len(queryEmbedding) == 0 {
		return nil, types.NewInvalidRequestError("query embedding is required")
	}

	var resp qdrantPointsResult
	req := qdrantSearchRequest{Vector: queryEmbedding, Limit: topK, WithPayload: true}
	if err := s.api.call(ctx, "search", http.MethodPost, s.api.path("/points/search"), req, &resp); err != nil {
		if s.collectionMissing(err) {
			return []VectorSearchResult{}, nil
		}
		return nil, err
	}

	out := make([]VectorSearchResult, len(resp.Result))
	for i, p := range resp.Result {
		out[i] = VectorSearchResult{Document: toDocument(p), Score: p.Score, Distance: 1 - p.Score}
	}
	sortByDistance(out)
	return out, nil
}

// GetDocuments 按请求顺序返回，缺失的 ID 跳过
func (s *QdrantStore) GetDocuments(ctx context.Context, ids []string) ([]Document, error) {
	if err := s.checkCollection(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	req := qdrantRetrieveRequest{IDs: make([]string, len(ids)), WithPayload: true, WithVector: true}
	for i, id := range ids {
		req.IDs[i] = qdrantPointID(id)
	}
	var resp qdrantPointsResult
	if err := s.api.call(ctx, "retrieve", http.MethodPost, s.api.path("/points"), req, &resp); err != nil {
		if s.collectionMissing(err) {
			return []Document{}, nil
		}
		return nil, err
	}

	found := make(map[string]Document, len(resp.Result))
	for _, p := range resp.Result {
		doc := toDocument(p)
		found[doc.ID] = doc
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := found[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *QdrantStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.checkCollection(); err != nil {
		return err
	}

	points := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			points = append(points, qdrantPointID(id))
		}
	}
	body := map[string]any{"points": points}
	err := s.api.call(ctx, "delete", http.MethodPost, s.api.path("/points/delete?wait=true"), body, nil)
	if err != nil && !s.collectionMissing(err) {
		return err
	}
	return nil
}

// UpdateDocument 未给出新向量时沿用原向量
func (s *QdrantStore) UpdateDocument(ctx context.Context, doc Document) error {
	existing, err := s.GetDocuments(ctx, []string{doc.ID})
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return types.NewNotFoundError(fmt.Sprintf("document not found: %s", doc.ID))
	}
	if len(doc.Embedding) == 0 {
		doc.Embedding = existing[0].Embedding
	}
	return s.AddDocuments(ctx, []Document{doc})
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if err := s.checkCollection(); err != nil {
		return 0, err
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := s.api.call(ctx, "count", http.MethodPost, s.api.path("/points/count"), body, &resp); err != nil {
		if s.collectionMissing(err) {
			return 0, nil
		}
		return 0, err
	}
	return resp.Result.Count, nil
}

// ClearAll 删除整个 collection，下一次写入时重新创建
func (s *QdrantStore) ClearAll(ctx context.Context) error {
	if err := s.checkCollection(); err != nil {
		return err
	}
	err := s.api.send(ctx, http.MethodDelete, s.api.path(""), nil, nil)
	if err != nil && !hasStatus(err, http.StatusNotFound) {
		return qdrantError("drop collection", err)
	}

	s.mu.Lock()
	s.created = false
	s.mu.Unlock()

	s.logger.Info("qdrant collection cleared", zap.String("collection", s.cfg.Collection))
	return nil
}

// ListDocumentIDs 用 scroll 翻页。Qdrant 的游标是点 ID 而不是序号，
// 所以 offset 通过丢弃前 offset 个点实现。
func (s *QdrantStore) ListDocumentIDs(ctx context.Context, limit int, offset int) ([]string, error) {
	if err := s.checkCollection(); err != nil {
		return nil, err
	}
	ids := []string{}
	if limit <= 0 {
		return ids, nil
	}
	offset = max(offset, 0)

	var (
		skipped int
		cursor  any
	)
	for len(ids) < limit {
		req := qdrantScrollRequest{
			Limit:       limit + offset - skipped - len(ids),
			Offset:      cursor,
			WithPayload: []string{payloadDocID},
		}
		var resp struct {
			Result struct {
				Points         []qdrantPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.api.call(ctx, "scroll", http.MethodPost, s.api.path("/points/scroll"), req, &resp); err != nil {
			if s.collectionMissing(err) {
				return ids, nil
			}
			return nil, err
		}

		for _, p := range resp.Result.Points {
			if skipped < offset {
				skipped++
				continue
			}
			if len(ids) == limit {
				break
			}
			ids = append(ids, toDocument(p).ID)
		}

		cursor = resp.Result.NextPageOffset
		if cursor == nil || len(resp.Result.Points) == 0 {
			break
		}
	}
	return ids, nil
}

// HealthCheck 列出集合，能返回即视为可达
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	if err := s.api.send(ctx, http.MethodGet, "/collections", nil, nil); err != nil {
		return qdrantError("health check", err)
	}
	return nil
}
