package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository 會話、訊息與食譜的持久化
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 創建會話儲存
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ConversationSummary 會話列表項目
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

// ConversationDetail 會話與其訊息
type ConversationDetail struct {
	Conversation *model.Conversation `json:"conversation"`
	Messages     []model.Message     `json:"messages"`
}

// CreateConversation 建立會話
func (r *ConversationRepository) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:     common.GenerateUUID(),
		UserID: userID,
		Title:  title,
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation 取得使用者自己的會話
func (r *ConversationRepository) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// GetConversationDetail 取得會話與依時間排序的訊息
func (r *ConversationRepository) GetConversationDetail(ctx context.Context, userID, conversationID string) (*ConversationDetail, error) {
	conv, err := r.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := r.History(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: messages}, nil
}

// Touch 更新會話標題與 updated_at
func (r *ConversationRepository) Touch(ctx context.Context, conversationID, title string) error {
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// AppendMessage 追加訊息
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = common.GenerateUUID()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// History 依建立時間遞增取得會話訊息
func (r *ConversationRepository) History(ctx context.Context, conversationID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return messages, nil
}

// Ingredients 取得會話累積的食材
func (r *ConversationRepository) Ingredients(ctx context.Context, conversationID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.ConversationIngredient{}).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	return names, nil
}

// AddIngredients 新增食材，已存在者略過
func (r *ConversationRepository) AddIngredients(ctx context.Context, conversationID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	rows := make([]model.ConversationIngredient, 0, len(names))
	for _, n := range names {
		rows = append(rows, model.ConversationIngredient{ConversationID: conversationID, Name: n})
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to add ingredients: %w", err)
	}
	return nil
}

// SaveRecipes 儲存食譜，ID 已存在者略過
func (r *ConversationRepository) SaveRecipes(ctx context.Context, recipes []common.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	rows := make([]model.Recipe, 0, len(recipes))
	for _, rc := range recipes {
		rows = append(rows, model.RecipeFromCommon(rc))
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to save recipes: %w", err)
	}
	return nil
}

// PruneConversations 只保留 updated_at 最新的 max 筆，連同訊息與食材一併刪除
func (r *ConversationRepository) PruneConversations(ctx context.Context, userID string, max int) (int64, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("created_at DESC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(ids) <= max {
		return 0, nil
	}
	stale := ids[max:]

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteConversations(tx, stale)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(stale)), nil
}

// DeleteConversation 刪除使用者自己的會話
func (r *ConversationRepository) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if _, err := r.GetConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteConversations(tx, []string{conversationID})
	})
}

func deleteConversations(tx *gorm.DB, ids []string) error {
	if err := tx.Where("conversation_id IN ?", ids).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := tx.Where("conversation_id IN ?", ids).Delete(&model.ConversationIngredient{}).Error; err != nil {
		return fmt.Errorf("failed to delete ingredients: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("failed to delete conversations: %w", err)
	}
	return nil
}

// ListConversations 依 updated_at 遞減列出會話與訊息數
func (r *ConversationRepository) ListConversations(ctx context.Context, userID string, limit, offset int) ([]ConversationSummary, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	summaries := []ConversationSummary{}
	err := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Select("conversations.id, conversations.title, conversations.created_at, conversations.updated_at, "+
			"(SELECT COUNT(*) FROM messages WHERE messages.conversation_id = conversations.id) AS message_count").
		Where("conversations.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&summaries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	return summaries, total, nil
}

// RecipeSort 食譜歷史排序欄位
var RecipeSort = map[string]string{
	"created_at":   "recipes.created_at",
	"cooking_time": "recipes.cooking_time",
	"calories":     "recipes.calories",
	"name":         "recipes.name",
}

// RecipeHistoryQuery 食譜歷史查詢條件
type RecipeHistoryQuery struct {
	Limit  int
	Offset int
	SortBy string
	Order  string
}

// ListRecipeHistory 列出使用者會話中出現過的食譜
func (r *ConversationRepository) ListRecipeHistory(ctx context.Context, userID string, q RecipeHistoryQuery) ([]common.Recipe, int64, error) {
	ids, err := r.userRecipeIDs(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []common.Recipe{}, 0, nil
	}

	column, ok := RecipeSort[q.SortBy]
	if !ok {
		column = RecipeSort["created_at"]
	}
	direction := "DESC"
	if q.Order == "asc" {
		direction = "ASC"
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Recipe{}).Where("id IN ?", ids).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	var rows []model.Recipe
	err = r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order(column + " " + direction).
		Order("recipes.id ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	recipes := make([]common.Recipe, len(rows))
	for i := range rows {
		recipes[i] = rows[i].ToCommon()
	}
	return recipes, total, nil
}

// userRecipeIDs 收集使用者會話訊息中附帶的食譜 ID
func (r *ConversationRepository) userRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Select("messages.recipe_ids").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.role = ?", userID, string(common.RoleAssistant)).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to collect recipe ids: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, m := range messages {
		for _, id := range m.RecipeIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
