package rag

import (
	"cmp"
	"context"
	"math"
	"slices"
)

// VectorStore 是 Collection 背后的存储后端：memory、sql 或 qdrant。
// 所有实现对同一 ID 的重复写入做覆盖，删除或读取不存在的 ID 不报错。
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []Document) error
	// Search 按距离升序返回至多 topK 条，结果不携带向量
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error)
	DeleteDocuments(ctx context.Context, ids []string) error
	// UpdateDocument 只更新已有文档；Embedding 为空时保留原向量
	UpdateDocument(ctx context.Context, doc Document) error
	Count(ctx context.Context) (int, error)
	// GetDocuments 按请求顺序返回存在的文档
	GetDocuments(ctx context.Context, ids []string) ([]Document, error)
}

// Clearable 可一次清空整个集合的后端
type Clearable interface {
	ClearAll(ctx context.Context) error
}

// DocumentLister 可分页列出文档 ID 的后端，ingest --force 用它找出旧 chunk
type DocumentLister interface {
	ListDocumentIDs(ctx context.Context, limit int, offset int) ([]string, error)
}

// VectorSearchResult Score 为余弦相似度，Distance = 1 - Score
type VectorSearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
	Distance float64  `json:"distance"`
}

// cosineSimilarity 维度不一致或含零向量时为 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i, x := range a {
		y := b[i]
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

// sortByDistance 稳定排序，距离相同时保持输入顺序
func sortByDistance(results []VectorSearchResult) {
	slices.SortStableFunc(results, func(a, b VectorSearchResult) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
}

// rankByCosine 对候选文档做暴力余弦排序并截取前 topK 条，memory 与 sql 后端共用
func rankByCosine(query []float64, candidates []Document, topK int) []VectorSearchResult {
	if topK <= 0 || len(candidates) == 0 {
		return []VectorSearchResult{}
	}
	results := make([]VectorSearchResult, len(candidates))
	for i, doc := range candidates {
		score := cosineSimilarity(query, doc.Embedding)
		doc.Embedding = nil
		results[i] = VectorSearchResult{Document: doc, Score: score, Distance: 1 - score}
	}
	sortByDistance(results)
	return results[:min(topK, len(results))]
}
