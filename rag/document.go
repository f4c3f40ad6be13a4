package rag

import "maps"

// Document 是向量库中的一条记录：一个 chunk 或整篇词条.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float64      `json:"embedding,omitempty"`
}

// cloneMetadata 浅拷贝，存储与调用方互不影响对方的 map
func cloneMetadata(m map[string]any) map[string]any { return maps.Clone(m) }
