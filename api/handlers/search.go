package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/api"
)

// =============================================================================
// 🔍 检索接口 Handler
// =============================================================================

// Searcher 相关性判定 + 检索 + 摘要，*assistant.Router 满足此接口
type Searcher interface {
	Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
}

// SearchHandler 检索处理器
type SearchHandler struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(searcher Searcher, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		searcher: searcher,
		logger:   logger.With(zap.String("component", "search_handler")),
	}
}

// HandleSearch 处理检索请求
// @Summary 检索并摘要
// @Description 判断问题是否与词条相关，命中快捷回复或检索后由 LLM 摘要
// @Tags 检索
// @Accept json
// @Produce json
// @Param request body api.SearchRequest true "检索请求"
// @Success 200 {object} api.SearchResponse "检索结果"
// @Failure 400 {object} Response "无效请求或检索失败"
// @Security ApiKeyAuth
// @Router /search/ [post]
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.SearchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	start := time.Now()
	resp, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		WriteRequestError(w, http.StatusBadRequest, err, h.logger)
		return
	}

	h.logger.Debug("search served",
		zap.Bool("is_relevant", resp.IsRelevant),
		zap.Int("documents", len(resp.Documents)),
		zap.Duration("duration", time.Since(start)),
	)
	WriteSuccess(w, resp)
}
