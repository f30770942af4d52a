package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"gorm.io/gorm"
)

// FavoriteRepository 收藏的持久化
type FavoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository 創建收藏儲存
func NewFavoriteRepository(db *gorm.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// FavoriteRecipe 收藏列表項目
type FavoriteRecipe struct {
	common.Recipe
	FavoritedAt time.Time `json:"favorited_at"`
}

// List 依收藏時間遞減列出
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]FavoriteRecipe, error) {
	var favorites []model.Favorite
	err := r.db.WithContext(ctx).
		Preload("Recipe").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	result := make([]FavoriteRecipe, 0, len(favorites))
	for _, f := range favorites {
		if f.Recipe.ID == "" {
			continue
		}
		result = append(result, FavoriteRecipe{Recipe: f.Recipe.ToCommon(), FavoritedAt: f.CreatedAt})
	}
	return result, nil
}

// Add 新增收藏；食譜不存在回傳 ErrRecipeNotFound，重複收藏回傳 ErrFavoriteExists
func (r *FavoriteRepository) Add(ctx context.Context, userID, recipeID string) (*model.Favorite, error) {
	var favorite *model.Favorite
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Recipe{}).Where("id = ?", recipeID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return common.ErrRecipeNotFound
		}

		if err := tx.Model(&model.Favorite{}).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return common.ErrFavoriteExists
		}

		favorite = &model.Favorite{
			ID:       common.GenerateUUID(),
			UserID:   userID,
			RecipeID: recipeID,
		}
		return tx.Omit("Recipe").Create(favorite).Error
	})
	if err != nil {
		var ce *common.CustomError
		if errors.As(err, &ce) {
			return nil, ce
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, common.ErrFavoriteExists
		}
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	return favorite, nil
}

// Remove 取消收藏；不存在時回傳 ErrFavoriteNotFound
func (r *FavoriteRepository) Remove(ctx context.Context, userID, recipeID string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(&model.Favorite{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrFavoriteNotFound
	}
	return nil
}

// IsFavorite 檢查是否已收藏
func (r *FavoriteRepository) IsFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Favorite{}).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return count > 0, nil
}
