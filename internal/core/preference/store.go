package preference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 使用者偏好儲存
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 創建偏好儲存
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Upsert 寫入偏好訊號，已存在時 frequency 加一並刷新 last_used
func (s *Store) Upsert(ctx context.Context, userID string, sig Signal) error {
	now := s.now()
	row := model.UserPreference{
		ID:        common.GenerateUUID(),
		UserID:    userID,
		Type:      sig.Type,
		Key:       sig.Key,
		Value:     sig.Value,
		Frequency: 1,
		LastUsed:  now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "preference_type"}, {Name: "preference_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"frequency":  gorm.Expr("user_preferences.frequency + 1"),
			"last_used":  now,
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert preference %s/%s: %w", sig.Type, sig.Key, err)
	}
	return nil
}

// Record 擷取訊息與新食材中的訊號並逐筆寫入，單筆失敗只記錄日誌
func (s *Store) Record(ctx context.Context, userID, text string, newIngredients []string) int {
	signals := append(ExtractSignals(text), IngredientSignals(newIngredients)...)
	written := 0
	for _, sig := range signals {
		if err := s.Upsert(ctx, userID, sig); err != nil {
			common.LogWarn("偏好寫入失敗", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		written++
	}
	return written
}

// List 依 frequency、last_used 由高到低排序
func (s *Store) List(ctx context.Context, userID string) ([]model.UserPreference, error) {
	var prefs []model.UserPreference
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("frequency DESC").
		Order("last_used DESC").
		Order("preference_key ASC").
		Find(&prefs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	return prefs, nil
}

// PromptText 取得使用者偏好並格式化為提示文字
func (s *Store) PromptText(ctx context.Context, userID string) (string, error) {
	prefs, err := s.List(ctx, userID)
	if err != nil {
		return "", err
	}
	return Format(prefs), nil
}

// Format 將已排序的偏好轉為提示文字，相同輸入產生相同輸出
func Format(prefs []model.UserPreference) string {
	if len(prefs) == 0 {
		return ""
	}

	grouped := make(map[string][]string)
	for _, p := range prefs {
		grouped[p.Type] = append(grouped[p.Type], p.Value)
	}

	var parts []string
	if v := grouped[TypeFavoriteIngredient]; len(v) > 0 {
		parts = append(parts, "よく使う食材: "+strings.Join(head(v, 5), "、"))
	}
	if v := grouped[TypeCuisine]; len(v) > 0 {
		parts = append(parts, "好きな料理ジャンル: "+v[0])
	}
	if v := grouped[TypeCookingTime]; len(v) > 0 {
		parts = append(parts, "調理時間の好み: "+v[0])
	}
	if v := grouped[TypeDietary]; len(v) > 0 {
		parts = append(parts, "食事の好み: "+v[0])
	}
	if v := grouped[TypeDislikeIngredient]; len(v) > 0 {
		parts = append(parts, "苦手な食材: "+strings.Join(head(v, 3), "、"))
	}
	return strings.Join(parts, "\n")
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
