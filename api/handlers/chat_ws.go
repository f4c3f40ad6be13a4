package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/wikichat/api"
	"github.com/BaSui01/wikichat/assistant"
	"github.com/BaSui01/wikichat/types"
)

// =============================================================================
// 💬 Websocket 对话 Handler
// =============================================================================

const (
	// chatReadLimit 单帧上限
	chatReadLimit = 64 << 10
	// chatWriteTimeout 单帧写超时
	chatWriteTimeout = 10 * time.Second
)

// ChatSearcher 检索并暴露规则路由，*assistant.Router 满足此接口
type ChatSearcher interface {
	Searcher
	Classify(query string) assistant.Route
}

// ConnectionGauge 在线连接数，*metrics.Collector 满足此接口
type ConnectionGauge interface {
	WebSocketOpened()
	WebSocketClosed()
}

type nopGauge struct{}

func (nopGauge) WebSocketOpened() {}
func (nopGauge) WebSocketClosed() {}

// ChatOption 对话处理器选项
type ChatOption func(*ChatHandler)

// WithConnectionGauge 设置连接数指标
func WithConnectionGauge(g ConnectionGauge) ChatOption {
	return func(h *ChatHandler) {
		if g != nil {
			h.gauge = g
		}
	}
}

// ChatHandler /ws/chat 处理器：每个文本帧 {query, n_results?} 对应一个结果帧
type ChatHandler struct {
	searcher       ChatSearcher
	originPatterns []string
	gauge          ConnectionGauge
	logger         *zap.Logger
}

// NewChatHandler 创建对话处理器。originPatterns 可以是 CORS 形式的完整 origin
// （http://localhost:3000）或 host 模式；为空时只接受同源连接。
func NewChatHandler(searcher ChatSearcher, originPatterns []string, logger *zap.Logger, opts ...ChatOption) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	hosts := make([]string, 0, len(originPatterns))
	for _, p := range originPatterns {
		if _, host, ok := strings.Cut(p, "://"); ok {
			p = host
		}
		hosts = append(hosts, strings.TrimSuffix(p, "/"))
	}
	h := &ChatHandler{
		searcher:       searcher,
		originPatterns: hosts,
		gauge:          nopGauge{},
		logger:         logger.With(zap.String("component", "chat_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleChat 处理 websocket 对话
// @Summary Websocket 对话
// @Description 升级为 websocket，逐帧返回检索结果
// @Tags 检索
// @Router /ws/chat [get]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept 已写入 HTTP 错误响应
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(chatReadLimit)

	h.gauge.WebSocketOpened()
	defer h.gauge.WebSocketClosed()

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if isNormalClose(err) {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			} else {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			h.writeFrame(ctx, conn, errorFrame("", types.NewInvalidRequestError("only text frames are supported")))
			continue
		}

		if err := h.writeFrame(ctx, conn, h.answer(ctx, data)); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *ChatHandler) answer(ctx context.Context, data []byte) api.ChatFrame {
	var req api.SearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorFrame("", types.NewInvalidRequestError("invalid JSON frame").WithCause(err))
	}

	resp, err := h.searcher.Search(ctx, req)
	if err != nil {
		return errorFrame(req.Query, err)
	}

	return api.ChatFrame{
		Query:  req.Query,
		Route:  string(h.route(req.Query, resp)),
		Result: resp,
	}
}

// route 根据规则路由与检索结果还原最终走向
func (h *ChatHandler) route(query string, resp *api.SearchResponse) assistant.Route {
	if !resp.IsRelevant {
		return assistant.RouteOffTopic
	}
	route := h.searcher.Classify(query)
	if route == assistant.RouteRAG && len(resp.Documents) == 0 {
		return assistant.RouteNoResults
	}
	return route
}

func (h *ChatHandler) writeFrame(ctx context.Context, conn *websocket.Conn, frame api.ChatFrame) error {
	ctx, cancel := context.WithTimeout(ctx, chatWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}

func errorFrame(query string, err error) api.ChatFrame {
	detail := &api.ErrorDetail{Code: string(types.ErrInvalidRequest), Message: err.Error()}
	if apiErr, ok := types.AsError(err); ok {
		detail.Code = string(apiErr.Code)
		detail.Message = apiErr.Message
	}
	return api.ChatFrame{Query: query, Error: detail}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "EOF")
}
