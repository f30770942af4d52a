package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
)

//go:embed seed.json
var defaultSeed []byte

// Seed 載入參考食譜，path 為空時使用內建資料；已存在的名稱略過
func (s *Store) Seed(ctx context.Context, path string) (int, error) {
	data := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to read seed file: %w", err)
		}
		data = b
	}

	var recipes []model.KnowledgeRecipe
	if err := common.ParseJSONBytes(data, &recipes); err != nil {
		return 0, fmt.Errorf("failed to parse seed data: %w", err)
	}

	added := 0
	for _, r := range recipes {
		if r.Name == "" {
			continue
		}

		var count int64
		if err := s.db.WithContext(ctx).Model(&model.KnowledgeRecipe{}).
			Where("name = ?", r.Name).Count(&count).Error; err != nil {
			return added, fmt.Errorf("failed to check recipe %s: %w", r.Name, err)
		}
		if count > 0 {
			continue
		}

		if r.ID == "" {
			r.ID = common.GenerateUUID()
		}
		if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
			return added, fmt.Errorf("failed to insert recipe %s: %w", r.Name, err)
		}
		added++
	}

	common.LogInfo("參考食譜載入完成", zap.Int("added", added), zap.Int("total", len(recipes)))
	return added, nil
}
