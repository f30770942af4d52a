package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"todays-meal/internal/model"

	"gorm.io/gorm"
)

// DefaultLimit 未指定筆數時的檢索上限
const DefaultLimit = 5

// SearchParams 檢索條件
type SearchParams struct {
	Ingredients    []string
	CuisineType    string
	MaxCookingTime int
	Tags           []string
	Limit          int
}

// Store 參考食譜知識庫
type Store struct {
	db *gorm.DB
}

// NewStore 創建知識庫
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Search 先以料理類型與調理時間過濾，再依食材與標籤加權排序
func (s *Store) Search(ctx context.Context, p SearchParams) ([]model.KnowledgeRecipe, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	scored := len(p.Ingredients) > 0 || len(p.Tags) > 0

	q := s.db.WithContext(ctx).Model(&model.KnowledgeRecipe{})
	if p.CuisineType != "" {
		q = q.Where("cuisine_type = ?", p.CuisineType)
	}
	if p.MaxCookingTime > 0 {
		q = q.Where("cooking_time <= ?", p.MaxCookingTime)
	}
	q = q.Order("cooking_time ASC").Order("name ASC")
	// 需要評分時取回全部候選，截斷放在排序之後
	if !scored {
		q = q.Limit(limit)
	}

	var rows []model.KnowledgeRecipe
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	if !scored {
		return rows, nil
	}
	return rank(rows, p.Ingredients, p.Tags, limit), nil
}

type scoredRecipe struct {
	recipe model.KnowledgeRecipe
	score  int
}

func rank(rows []model.KnowledgeRecipe, ingredients, tags []string, limit int) []model.KnowledgeRecipe {
	candidates := make([]scoredRecipe, 0, len(rows))
	for _, r := range rows {
		if score := Score(r, ingredients, tags); score > 0 {
			candidates = append(candidates, scoredRecipe{recipe: r, score: score})
		}
	}

	// 同分時保留過濾查詢的順序
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	result := make([]model.KnowledgeRecipe, len(candidates))
	for i, c := range candidates {
		result[i] = c.recipe
	}
	return result
}

// Score 加權計分：食材清單命中 +10、名稱命中 +5、說明命中 +3、每個標籤命中 +5
func Score(r model.KnowledgeRecipe, ingredients, tags []string) int {
	name := strings.ToLower(r.Name)
	desc := strings.ToLower(r.Description)

	score := 0
	for _, ing := range ingredients {
		ing = strings.ToLower(strings.TrimSpace(ing))
		if ing == "" {
			continue
		}
		for _, ri := range r.Ingredients {
			if strings.Contains(strings.ToLower(ri.Name), ing) {
				score += 10
				break
			}
		}
		if strings.Contains(name, ing) {
			score += 5
		}
		if strings.Contains(desc, ing) {
			score += 3
		}
	}

	for _, tag := range tags {
		tag = strings.ToLower(tag)
		for _, t := range r.Tags {
			if strings.Contains(strings.ToLower(t), tag) {
				score += 5
				break
			}
		}
	}
	return score
}

// FindByName 依料理名稱尋找最接近的參考食譜，完全一致優先，其次互相包含
func (s *Store) FindByName(ctx context.Context, dish string) (*model.KnowledgeRecipe, error) {
	dish = strings.TrimSpace(dish)
	if dish == "" {
		return nil, nil
	}

	var rows []model.KnowledgeRecipe
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}

	var best *model.KnowledgeRecipe
	for i := range rows {
		name := rows[i].Name
		if name == dish {
			return &rows[i], nil
		}
		if strings.Contains(name, dish) || strings.Contains(dish, name) {
			// 名稱長度最接近者為最佳
			if best == nil || lengthGap(name, dish) < lengthGap(best.Name, dish) {
				best = &rows[i]
			}
		}
	}
	return best, nil
}

func lengthGap(a, b string) int {
	d := len([]rune(a)) - len([]rune(b))
	if d < 0 {
		return -d
	}
	return d
}

// PantryStaples 視為家中常備的調味料，不列入缺少食材
var PantryStaples = []string{
	"塩", "こしょう", "塩こしょう", "黒こしょう", "砂糖", "醤油",
	"みりん", "酒", "水", "サラダ油", "ごま油", "オリーブオイル",
}

// MissingIngredients 回傳參考食譜中使用者尚未擁有的必要食材
func MissingIngredients(r *model.KnowledgeRecipe, known []string) []string {
	if r == nil {
		return nil
	}

	var missing []string
	for _, ing := range r.Ingredients {
		if isStaple(ing.Name) || covered(ing.Name, known) {
			continue
		}
		missing = append(missing, ing.Name)
	}
	return missing
}

func isStaple(name string) bool {
	for _, s := range PantryStaples {
		if name == s {
			return true
		}
	}
	return false
}

func covered(name string, known []string) bool {
	for _, k := range known {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.Contains(name, k) || strings.Contains(k, name) {
			return true
		}
	}
	return false
}
