package knowledge

import (
	"fmt"
	"strings"

	"todays-meal/internal/core/preference"
	"todays-meal/internal/model"
)

type tagRule struct {
	keywords []string
	tags     []string
}

var tagRules = []tagRule{
	{keywords: []string{"簡単", "時短", "手軽", "早く", "すぐ", "さっと"}, tags: []string{"簡単", "時短"}},
	{keywords: []string{"ヘルシー", "健康", "低カロリー"}, tags: []string{"ヘルシー"}},
	{keywords: []string{"辛い", "スパイシー", "ピリ辛"}, tags: []string{"辛い", "スパイシー"}},
	{keywords: []string{"ご飯", "白米", "おかず"}, tags: []string{"ご飯に合う"}},
	{keywords: []string{"野菜"}, tags: []string{"野菜たっぷり"}},
	{keywords: []string{"本格"}, tags: []string{"本格的"}},
}

// ExtractTags 從訊息擷取檢索標籤，依規則順序去重
func ExtractTags(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var tags []string
	for _, r := range tagRules {
		if !containsAny(lower, r.keywords) {
			continue
		}
		for _, t := range r.tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// DetectCuisine 偵測訊息指定的料理類型，沒有則回傳空字串
func DetectCuisine(text string) string {
	lower := strings.ToLower(text)
	for _, r := range preference.CuisineRules {
		if containsAny(lower, r.Keywords) {
			return r.Cuisine
		}
	}
	return ""
}

// FormatForPrompt 將參考食譜轉為提示用的文字區塊
func FormatForPrompt(recipes []model.KnowledgeRecipe) string {
	if len(recipes) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(recipes))
	for i, r := range recipes {
		ingredients := make([]string, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			ingredients = append(ingredients, strings.TrimSpace(ing.Name+" "+ing.Amount))
		}

		var b strings.Builder
		fmt.Fprintf(&b, "【参考レシピ%d】\n", i+1)
		fmt.Fprintf(&b, "名前: %s\n", r.Name)
		fmt.Fprintf(&b, "説明: %s\n", r.Description)
		fmt.Fprintf(&b, "材料: %s\n", strings.Join(ingredients, ", "))
		fmt.Fprintf(&b, "手順: %s\n", strings.Join(r.Steps, " → "))
		fmt.Fprintf(&b, "調理時間: %d分\n", r.CookingTime)
		fmt.Fprintf(&b, "カロリー: %dkcal\n", r.Calories)
		fmt.Fprintf(&b, "料理ジャンル: %s\n", r.CuisineType)
		fmt.Fprintf(&b, "難易度: %s", r.Difficulty)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
