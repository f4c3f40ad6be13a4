package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/api"
	"github.com/BaSui01/wikichat/rag"
	"github.com/BaSui01/wikichat/types"
)

// =============================================================================
// 📄 文档接口 Handler
// =============================================================================

// DocumentStore 按文本读写集合，*rag.Collection 满足此接口
type DocumentStore interface {
	Add(ctx context.Context, ids, contents []string, metadatas []map[string]any) error
	Get(ctx context.Context, ids ...string) ([]rag.Document, error)
	Delete(ctx context.Context, ids ...string) error
	Count(ctx context.Context) (int, error)
	Name() string
}

// DocumentHandler 文档 CRUD 与集合信息处理器
type DocumentHandler struct {
	store  DocumentStore
	logger *zap.Logger
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(store DocumentStore, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{
		store:  store,
		logger: logger.With(zap.String("component", "document_handler")),
	}
}

// HandleAdd 处理添加文档请求
// @Summary 添加文档
// @Description 向量化并写入一条文档，同 ID 覆盖
// @Tags 文档
// @Accept json
// @Produce json
// @Param request body api.DocumentRequest true "文档"
// @Success 200 {object} api.MessageResponse "添加成功"
// @Failure 400 {object} Response "无效请求或写入失败"
// @Security ApiKeyAuth
// @Router /documents/ [post]
func (h *DocumentHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.DocumentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := validateDocumentRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if err := h.store.Add(r.Context(), []string{req.ID}, []string{req.Content}, []map[string]any{metadata}); err != nil {
		WriteRequestError(w, http.StatusBadRequest, err, h.logger)
		return
	}

	h.logger.Info("document added", zap.String("id", req.ID), zap.Int("content_len", len(req.Content)))
	WriteSuccess(w, api.MessageResponse{Message: fmt.Sprintf("Document %s added successfully", req.ID)})
}

// HandleGet 处理获取文档请求
// @Summary 获取文档
// @Tags 文档
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} api.DocumentResponse "文档"
// @Failure 404 {object} Response "文档不存在"
// @Security ApiKeyAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		WriteError(w, types.NewInvalidRequestError("document id is required"), h.logger)
		return
	}

	docs, err := h.store.Get(r.Context(), id)
	if err != nil {
		WriteRequestError(w, http.StatusBadRequest, err, h.logger)
		return
	}
	if len(docs) == 0 {
		WriteError(w, types.NewNotFoundError("Document not found"), h.logger)
		return
	}

	doc := docs[0]
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	WriteSuccess(w, api.DocumentResponse{ID: doc.ID, Content: doc.Content, Metadata: metadata})
}

// HandleDelete 处理删除文档请求，删除不存在的 ID 同样返回成功
// @Summary 删除文档
// @Tags 文档
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} api.MessageResponse "删除成功"
// @Failure 400 {object} Response "删除失败"
// @Security ApiKeyAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		WriteError(w, types.NewInvalidRequestError("document id is required"), h.logger)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		WriteRequestError(w, http.StatusBadRequest, err, h.logger)
		return
	}

	h.logger.Info("document deleted", zap.String("id", id))
	WriteSuccess(w, api.MessageResponse{Message: fmt.Sprintf("Document %s deleted successfully", id)})
}

// HandleCollectionInfo 处理集合信息请求
// @Summary 集合信息
// @Tags 文档
// @Produce json
// @Success 200 {object} api.CollectionInfo "集合名称与文档数"
// @Failure 400 {object} Response "统计失败"
// @Security ApiKeyAuth
// @Router /collection/info [get]
func (h *DocumentHandler) HandleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		WriteRequestError(w, http.StatusBadRequest, err, h.logger)
		return
	}

	WriteSuccess(w, api.CollectionInfo{CollectionName: h.store.Name(), DocumentCount: count})
}

func validateDocumentRequest(req *api.DocumentRequest) *types.Error {
	if strings.TrimSpace(req.ID) == "" {
		return types.NewInvalidRequestError("id is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return types.NewInvalidRequestError("content is required")
	}
	return nil
}
