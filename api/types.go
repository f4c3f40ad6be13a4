package api

import (
	"github.com/BaSui01/wikichat/assistant"
)

// =============================================================================
// 文档类型
// =============================================================================

// DocumentRequest 代表添加文档请求。
// @Description 添加文档请求结构
type DocumentRequest struct {
	// 文档 ID（同 ID 重复添加会覆盖）
	ID string `json:"id" example:"sai_sai_kham_leng_wiki_chunk_0" binding:"required"`
	// 文档正文
	Content string `json:"content" example:"Sai Sai Kham Leng is a Burmese singer..." binding:"required"`
	// 自定义元数据
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentResponse 代表单个文档。
// @Description 文档结构
type DocumentResponse struct {
	ID       string         `json:"id" example:"sai_sai_kham_leng_wiki"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// MessageResponse 代表只携带提示信息的响应。
// @Description 消息响应
type MessageResponse struct {
	Message string `json:"message" example:"Document doc_1 added successfully"`
}

// CollectionInfo 代表集合概要。
// @Description 集合信息
type CollectionInfo struct {
	CollectionName string `json:"collection_name" example:"wiki_documents"`
	DocumentCount  int    `json:"document_count" example:"42"`
}

// =============================================================================
// 检索类型
// =============================================================================

// SearchRequest 检索请求，n_results 缺省为 5。
type SearchRequest = assistant.SearchRequest

// SearchResponse 检索响应：documents/metadatas/distances/ids 一一对应。
type SearchResponse = assistant.SearchResponse

// =============================================================================
// 健康检查类型
// =============================================================================

// ServiceHealth 代表 /health 响应体。
// @Description 服务健康状况
type ServiceHealth struct {
	Status   string `json:"status" example:"healthy"`
	Database string `json:"database" example:"connected"`
}

// =============================================================================
// Websocket 帧
// =============================================================================

// ChatFrame 是 /ws/chat 的服务端帧：成功时携带 Result，失败时携带 Error。
type ChatFrame struct {
	Query  string          `json:"query"`
	Route  string          `json:"route,omitempty"`
	Result *SearchResponse `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
