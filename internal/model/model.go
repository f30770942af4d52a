package model

import (
	"time"

	"todays-meal/internal/pkg/common"
)

// Conversation 會話
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"-"`
	Title     string    `gorm:"size:200" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// Message 會話中的單則訊息，只追加不修改
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index" json:"-"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	RecipeIDs      []string  `gorm:"serializer:json" json:"recipeIds,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Recipe 已生成並持久化的食譜
type Recipe struct {
	ID          string              `gorm:"primaryKey;size:36"`
	Name        string              `gorm:"size:200;not null"`
	Ingredients []common.Ingredient `gorm:"serializer:json;not null"`
	Steps       []string            `gorm:"serializer:json;not null"`
	CookingTime int
	Calories    int
	Protein     float64
	Fat         float64
	Carbs       float64
	Category    string            `gorm:"size:32"`
	ImageURL    string            `gorm:"size:500"`
	SourceURL   string            `gorm:"size:500"`
	SourceName  string            `gorm:"size:200"`
	SideDishes  []common.SideDish `gorm:"serializer:json"`
	CreatedAt   time.Time
}

// ToCommon 轉為對外的食譜結構
func (r *Recipe) ToCommon() common.Recipe {
	return common.Recipe{
		ID:          r.ID,
		Name:        r.Name,
		Ingredients: r.Ingredients,
		Steps:       r.Steps,
		CookingTime: r.CookingTime,
		Calories:    r.Calories,
		Nutrition: common.Nutrition{
			Protein: r.Protein,
			Fat:     r.Fat,
			Carbs:   r.Carbs,
		},
		Category:   r.Category,
		ImageURL:   r.ImageURL,
		SourceURL:  r.SourceURL,
		SourceName: r.SourceName,
		SideDishes: r.SideDishes,
	}
}

// RecipeFromCommon 由生成結果建立資料列
func RecipeFromCommon(r common.Recipe) Recipe {
	return Recipe{
		ID:          r.ID,
		Name:        r.Name,
		Ingredients: r.Ingredients,
		Steps:       r.Steps,
		CookingTime: r.CookingTime,
		Calories:    r.Calories,
		Protein:     r.Nutrition.Protein,
		Fat:         r.Nutrition.Fat,
		Carbs:       r.Nutrition.Carbs,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		SourceURL:   r.SourceURL,
		SourceName:  r.SourceName,
		SideDishes:  r.SideDishes,
	}
}

// Favorite 使用者收藏
type Favorite struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_favorite_user_recipe;index"`
	RecipeID  string `gorm:"size:36;not null;uniqueIndex:idx_favorite_user_recipe"`
	Recipe    Recipe `gorm:"foreignKey:RecipeID"`
	CreatedAt time.Time
}

// ConversationIngredient 會話累積的食材，只增不減
type ConversationIngredient struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID string `gorm:"size:36;not null;uniqueIndex:idx_conv_ingredient"`
	Name           string `gorm:"size:100;not null;uniqueIndex:idx_conv_ingredient"`
	CreatedAt      time.Time
}

// UserPreference 偏好計數列，(user, type, key) 唯一
type UserPreference struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_user_pref;index"`
	Type      string    `gorm:"column:preference_type;size:32;not null;uniqueIndex:idx_user_pref"`
	Key       string    `gorm:"column:preference_key;size:100;not null;uniqueIndex:idx_user_pref"`
	Value     string    `gorm:"column:preference_value;size:200;not null"`
	Frequency int       `gorm:"not null;default:1"`
	LastUsed  time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KnowledgeRecipe 檢索用的參考食譜
type KnowledgeRecipe struct {
	ID          string              `gorm:"primaryKey;size:36" json:"id"`
	Name        string              `gorm:"size:200;not null;uniqueIndex" json:"name"`
	Description string              `gorm:"type:text" json:"description"`
	Ingredients []common.Ingredient `gorm:"serializer:json;not null" json:"ingredients"`
	Steps       []string            `gorm:"serializer:json;not null" json:"steps"`
	CookingTime int                 `gorm:"index" json:"cookingTime"`
	Calories    int                 `json:"calories"`
	Protein     float64             `json:"protein"`
	Fat         float64             `json:"fat"`
	Carbs       float64             `json:"carbs"`
	CuisineType string              `gorm:"size:32;index" json:"cuisineType"`
	Tags        []string            `gorm:"serializer:json" json:"tags"`
	Difficulty  string              `gorm:"size:32" json:"difficulty"`
	Source      string              `gorm:"size:100" json:"source"`
	ImageURL    string              `gorm:"size:500" json:"imageUrl,omitempty"`
	SourceURL   string              `gorm:"size:500" json:"sourceUrl,omitempty"`
	SourceName  string              `gorm:"size:200" json:"sourceName,omitempty"`
	CreatedAt   time.Time           `json:"-"`
}

// TableName 沿用既有資料表名稱
func (KnowledgeRecipe) TableName() string {
	return "recipe_knowledge_base"
}

// All 回傳需要自動遷移的模型
func All() []interface{} {
	return []interface{}{
		&Conversation{},
		&Message{},
		&Recipe{},
		&Favorite{},
		&ConversationIngredient{},
		&UserPreference{},
		&KnowledgeRecipe{},
	}
}
