package history

import (
	"context"
	"net/http"
	"strconv"

	"todays-meal/internal/api/middleware"
	"todays-meal/internal/pkg/common"
	"todays-meal/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Store 歷史紀錄查詢
type Store interface {
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]repository.ConversationSummary, int64, error)
	ListRecipeHistory(ctx context.Context, userID string, q repository.RecipeHistoryQuery) ([]common.Recipe, int64, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
}

// Handler 歷史紀錄處理器
type Handler struct {
	store Store
}

// NewHandler 創建歷史紀錄處理器
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// HandleListConversations 分頁列出會話
func (h *Handler) HandleListConversations(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	conversations, total, err := h.store.ListConversations(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"total":         total,
		"limit":         limit,
		"offset":        offset,
	})
}

// HandleListRecipes 分頁列出提案過的食譜，可依欄位排序
func (h *Handler) HandleListRecipes(c *gin.Context) {
	limit, offset, err := paging(c)
	if err != nil {
		common.WriteError(c, err)
		return
	}

	sortBy := c.DefaultQuery("sortBy", "created_at")
	if _, ok := repository.RecipeSort[sortBy]; !ok {
		common.WriteError(c, common.NewError(common.ErrCodeInvalidRequest, "sortBy が不正です", http.StatusBadRequest, nil))
		return
	}
	order := c.DefaultQuery("order", "desc")
	if order != "asc" && order != "desc" {
		common.WriteError(c, common.NewError(common.ErrCodeInvalidRequest, "order は asc か desc です", http.StatusBadRequest, nil))
		return
	}

	recipes, total, err := h.store.ListRecipeHistory(c.Request.Context(), middleware.UserID(c), repository.RecipeHistoryQuery{
		Limit:  limit,
		Offset: offset,
		SortBy: sortBy,
		Order:  order,
	})
	if err != nil {
		common.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recipes": recipes,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// HandleDeleteConversation 刪除自己的會話
func (h *Handler) HandleDeleteConversation(c *gin.Context) {
	if err := h.store.DeleteConversation(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "会話を削除しました"})
}

// paging 讀取 limit 與 offset，limit 上限為 maxLimit
func paging(c *gin.Context) (int, int, error) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return 0, 0, common.NewError(common.ErrCodeInvalidRequest, "limit が不正です", http.StatusBadRequest, err)
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, common.NewError(common.ErrCodeInvalidRequest, "offset が不正です", http.StatusBadRequest, err)
	}
	return min(limit, maxLimit), offset, nil
}
