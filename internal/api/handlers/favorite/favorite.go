package favorite

import (
	"context"
	"net/http"
	"strings"

	"todays-meal/internal/api/middleware"
	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"
	"todays-meal/internal/repository"

	"github.com/gin-gonic/gin"
)

// Store 收藏操作
type Store interface {
	List(ctx context.Context, userID string) ([]repository.FavoriteRecipe, error)
	Add(ctx context.Context, userID, recipeID string) (*model.Favorite, error)
	Remove(ctx context.Context, userID, recipeID string) error
	IsFavorite(ctx context.Context, userID, recipeID string) (bool, error)
}

// AddRequest 新增收藏的請求
type AddRequest struct {
	RecipeID string `json:"recipeId"`
}

// Handler 收藏處理器
type Handler struct {
	store Store
}

// NewHandler 創建收藏處理器
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// HandleList 列出收藏的食譜
func (h *Handler) HandleList(c *gin.Context) {
	favorites, err := h.store.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

// HandleAdd 新增收藏
func (h *Handler) HandleAdd(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.WriteError(c, common.Wrap(common.ErrInvalidRequest, err))
		return
	}
	recipeID := strings.TrimSpace(req.RecipeID)
	if recipeID == "" {
		common.WriteError(c, common.ErrMissingRecipeID)
		return
	}

	fav, err := h.store.Add(c.Request.Context(), middleware.UserID(c), recipeID)
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "お気に入りに追加しました", "id": fav.ID})
}

// HandleRemove 取消收藏
func (h *Handler) HandleRemove(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), middleware.UserID(c), c.Param("recipeId")); err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "お気に入りから削除しました"})
}

// HandleCheck 是否已收藏
func (h *Handler) HandleCheck(c *gin.Context) {
	ok, err := h.store.IsFavorite(c.Request.Context(), middleware.UserID(c), c.Param("recipeId"))
	if err != nil {
		common.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFavorite": ok})
}
