package chat

import (
	"context"
	"io"
	"net/http"

	"todays-meal/internal/api/middleware"
	chatcore "todays-meal/internal/core/chat"
	"todays-meal/internal/pkg/common"
	"todays-meal/internal/repository"

	"github.com/gin-contrib/requestid"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// recentConversations 會話列表只回傳最新的幾筆
const recentConversations = 10

// Service 對話服務
type Service interface {
	Start(ctx context.Context, userID string) (*chatcore.Reply, error)
	Stream(ctx context.Context, req chatcore.Request) (<-chan chatcore.Event, error)
	Chat(ctx context.Context, req chatcore.Request) (*chatcore.Reply, error)
}

// Conversations 會話查詢
type Conversations interface {
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]repository.ConversationSummary, int64, error)
	GetConversationDetail(ctx context.Context, userID, conversationID string) (*repository.ConversationDetail, error)
}

// MessageRequest 送出訊息的請求
type MessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Filters        struct {
		MaxCookingTime common.FlexibleInt `json:"maxCookingTime"`
	} `json:"filters"`
	Stream bool `json:"stream"`
}

// Handler 對話處理器
type Handler struct {
	service       Service
	conversations Conversations
}

// NewHandler 創建對話處理器
func NewHandler(service Service, conversations Conversations) *Handler {
	return &Handler{service: service, conversations: conversations}
}

// HandleStart 建立新會話並回傳問候
func (h *Handler) HandleStart(c *gin.Context) {
	reply, err := h.service.Start(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// HandleMessage 處理使用者訊息，stream=true 時以 SSE 回傳事件
func (h *Handler) HandleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}

	chatReq := chatcore.Request{
		UserID:         middleware.UserID(c),
		ConversationID: req.ConversationID,
		Message:        req.Message,
		MaxCookingTime: int(req.Filters.MaxCookingTime),
	}

	if !req.Stream {
		reply, err := h.service.Chat(c.Request.Context(), chatReq)
		if err != nil {
			common.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, reply)
		return
	}

	events, err := h.service.Stream(c.Request.Context(), chatReq)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sent := 0
	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		if err := sse.Encode(w, sse.Event{Data: event}); err != nil {
			common.LogWarn("SSE 寫入失敗",
				zap.String("request_id", requestid.Get(c)),
				zap.Error(err),
			)
			return false
		}
		sent++
		return true
	})

	common.LogDebug("SSE 串流結束",
		zap.String("request_id", requestid.Get(c)),
		zap.Int("events", sent),
	)
}

// HandleListConversations 最新的會話列表
func (h *Handler) HandleListConversations(c *gin.Context) {
	conversations, _, err := h.conversations.ListConversations(c.Request.Context(), middleware.UserID(c), recentConversations, 0)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// HandleGetConversation 會話內容與全部訊息
func (h *Handler) HandleGetConversation(c *gin.Context) {
	detail, err := h.conversations.GetConversationDetail(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
