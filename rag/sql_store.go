package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/wikichat/types"
)

// DocumentRecord documents 表的一行。
// 同一张表可承载多个 collection，主键为 (collection, id)。
type DocumentRecord struct {
	Collection string `gorm:"primaryKey;size:191"`
	ID         string `gorm:"primaryKey;size:191"`
	Content    string `gorm:"type:text;not null"`
	Metadata   string `gorm:"type:text"`
	Embedding  []byte `gorm:"not null"`
	Dimensions int    `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 表名
func (DocumentRecord) TableName() string { return "documents" }

// SQLStoreConfig SQL 向量存储配置
type SQLStoreConfig struct {
	Collection  string `json:"collection"`
	AutoMigrate bool   `json:"auto_migrate"`
	BatchSize   int    `json:"batch_size"`
}

// SQLVectorStore 基于 gorm 的向量存储。
// 向量以 float32 blob 落盘，检索时在进程内计算余弦相似度，
// 适合单词条规模的数据量。
type SQLVectorStore struct {
	db     *gorm.DB
	cfg    SQLStoreConfig
	logger *zap.Logger
}

// NewSQLVectorStore 创建 SQL 向量存储
func NewSQLVectorStore(db *gorm.DB, cfg SQLStoreConfig, logger *zap.Logger) (*SQLVectorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sql vector store requires a database handle")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "default"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&DocumentRecord{}); err != nil {
			return nil, fmt.Errorf("auto migrate documents: %w", err)
		}
	}

	return &SQLVectorStore{
		db:     db,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "sql_store"), zap.String("collection", cfg.Collection)),
	}, nil
}

func sqlError(op string, err error) error {
	return types.NewError(types.ErrVectorStoreError, "sql "+op+" failed").
		WithCause(err).
		WithHTTPStatus(http.StatusInternalServerError).
		WithComponent("sql")
}

func (s *SQLVectorStore) scoped(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Where("collection = ?", s.cfg.Collection)
}

func (s *SQLVectorStore) toRecord(doc Document) (DocumentRecord, error) {
	var meta string
	if len(doc.Metadata) > 0 {
		b, err := json.Marshal(doc.Metadata)
		if err != nil {
			return DocumentRecord{}, fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		meta = string(b)
	}
	return DocumentRecord{
		Collection: s.cfg.Collection,
		ID:         doc.ID,
		Content:    doc.Content,
		Metadata:   meta,
		Embedding:  EncodeVector(doc.Embedding),
		Dimensions: len(doc.Embedding),
	}, nil
}

func fromRecord(rec DocumentRecord, withEmbedding bool) (Document, error) {
	doc := Document{ID: rec.ID, Content: rec.Content}
	if rec.Metadata != "" {
		if err := json.Unmarshal([]byte(rec.Metadata), &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("unmarshal metadata for %s: %w", rec.ID, err)
		}
	}
	if withEmbedding {
		vec, err := DecodeVector(rec.Embedding)
		if err != nil {
			return Document{}, fmt.Errorf("decode embedding for %s: %w", rec.ID, err)
		}
		doc.Embedding = vec
	}
	return doc, nil
}

// AddDocuments 批量 upsert
func (s *SQLVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	records := make([]DocumentRecord, 0, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return types.NewInvalidRequestError(fmt.Sprintf("document[%d] has empty id", i))
		}
		if len(doc.Embedding) == 0 {
			return types.NewInvalidRequestError(fmt.Sprintf("document[%d] has no embedding", i))
		}
		rec, err := s.toRecord(doc)
		if err != nil {
			return types.NewInvalidRequestError(err.Error())
		}
		records = append(records, rec)
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "metadata", "embedding", "dimensions", "updated_at"}),
		}).
		CreateInBatches(records, s.cfg.BatchSize).Error
	if err != nil {
		return sqlError("upsert", err)
	}

	s.logger.Debug("sql upsert completed", zap.Int("count", len(records)))
	return nil
}

// Search 加载全部向量并按余弦距离排序
func (s *SQLVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error) {
	if topK <= 0 {
		return []VectorSearchResult{}, nil
	}
	if len(queryEmbedding) == 0 {
		return nil, types.NewInvalidRequestError("query embedding is required")
	}

	var records []DocumentRecord
	if err := s.scoped(ctx).Find(&records).Error; err != nil {
		return nil, sqlError("search", err)
	}

	candidates := make([]Document, 0, len(records))
	for _, rec := range records {
		if rec.Dimensions != len(queryEmbedding) {
			continue
		}
		doc, err := fromRecord(rec, true)
		if err != nil {
			s.logger.Warn("skipping unreadable document", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		candidates = append(candidates, doc)
	}
	return rankByCosine(queryEmbedding, candidates, topK), nil
}

// DeleteDocuments 删除文档
func (s *SQLVectorStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.scoped(ctx).Where("id IN ?", ids).Delete(&DocumentRecord{}).Error; err != nil {
		return sqlError("delete", err)
	}
	return nil
}

// UpdateDocument 更新已存在的文档，Embedding 为空时保留原向量
func (s *SQLVectorStore) UpdateDocument(ctx context.Context, doc Document) error {
	var existing DocumentRecord
	err := s.scoped(ctx).Where("id = ?", doc.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewNotFoundError(fmt.Sprintf("document not found: %s", doc.ID))
	}
	if err != nil {
		return sqlError("update", err)
	}

	rec, err := s.toRecord(doc)
	if err != nil {
		return types.NewInvalidRequestError(err.Error())
	}
	updates := map[string]any{
		"content":  rec.Content,
		"metadata": rec.Metadata,
	}
	if len(doc.Embedding) > 0 {
		updates["embedding"] = rec.Embedding
		updates["dimensions"] = rec.Dimensions
	}

	err = s.db.WithContext(ctx).Model(&DocumentRecord{}).
		Where("collection = ? AND id = ?", s.cfg.Collection, doc.ID).
		Updates(updates).Error
	if err != nil {
		return sqlError("update", err)
	}
	return nil
}

// Count 文档数量
func (s *SQLVectorStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.scoped(ctx).Model(&DocumentRecord{}).Count(&n).Error; err != nil {
		return 0, sqlError("count", err)
	}
	return int(n), nil
}

// GetDocuments 按请求顺序返回存在的文档
func (s *SQLVectorStore) GetDocuments(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}

	var records []DocumentRecord
	if err := s.scoped(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, sqlError("get", err)
	}

	byID := make(map[string]Document, len(records))
	for _, rec := range records {
		doc, err := fromRecord(rec, true)
		if err != nil {
			return nil, sqlError("get", err)
		}
		byID[doc.ID] = doc
	}

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// ClearAll 清空当前 collection
func (s *SQLVectorStore) ClearAll(ctx context.Context) error {
	if err := s.scoped(ctx).Delete(&DocumentRecord{}).Error; err != nil {
		return sqlError("clear", err)
	}
	s.logger.Info("sql collection cleared")
	return nil
}

// ListDocumentIDs 按 ID 排序分页
func (s *SQLVectorStore) ListDocumentIDs(ctx context.Context, limit int, offset int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	ids := []string{}
	err := s.scoped(ctx).Model(&DocumentRecord{}).
		Order("id").
		Limit(limit).
		Offset(offset).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, sqlError("list", err)
	}
	return ids, nil
}

// HealthCheck 检查数据库连通性
func (s *SQLVectorStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return sqlError("health check", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return sqlError("health check", err)
	}
	return nil
}
