package recipe

import (
	"context"
	"strings"

	"todays-meal/internal/core/ai/service"
	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
)

// RequestType 使用者輸入的請求類型
type RequestType string

const (
	RequestIngredients  RequestType = "ingredients"
	RequestMood         RequestType = "mood"
	RequestSpecificDish RequestType = "specific_dish"
	RequestSubstitute   RequestType = "substitute"
	RequestOther        RequestType = "other"
)

// Intent 一則使用者訊息的結構化分類結果
type Intent struct {
	IsValid           bool        `json:"isValid"`
	NewIngredients    []string    `json:"newIngredients"`
	RequestType       RequestType `json:"requestType"`
	SpecificDish      string      `json:"specificDish,omitempty"`
	MissingIngredient string      `json:"missingIngredient,omitempty"`
}

// fallbackIntent 解析失敗時的預設值：視為有效但不新增食材
func fallbackIntent() Intent {
	return Intent{IsValid: true, NewIngredients: []string{}, RequestType: RequestOther}
}

type analysisResult struct {
	IsValidInput      *bool    `json:"isValidInput"`
	Ingredients       []string `json:"ingredients"`
	RequestType       string   `json:"requestType"`
	SpecificDish      string   `json:"specificDish"`
	MissingIngredient string   `json:"missingIngredient"`
}

// Classifier 意圖分類器
type Classifier struct {
	ai service.Completer
}

// NewClassifier 創建意圖分類器
func NewClassifier(ai service.Completer) *Classifier {
	return &Classifier{ai: ai}
}

// Classify 分類使用者訊息。模型輸出無法解析時回傳預設值，只有呼叫本身失敗才回傳錯誤
func (c *Classifier) Classify(ctx context.Context, text string, known []string) (Intent, error) {
	content, err := c.ai.Complete(ctx, &service.Prompt{
		Kind:        service.KindIntent,
		System:      SystemPrompt,
		Instruction: buildAnalysisPrompt(text, known),
		Temperature: 0.2,
		Cacheable:   true,
	})
	if err != nil {
		return Intent{}, err
	}
	return ParseIntent(content, known), nil
}

// ParseIntent 從模型輸出解析意圖，新食材去重並排除已知食材
func ParseIntent(content string, known []string) Intent {
	var raw analysisResult
	if err := common.ParseEmbeddedJSON(content, &raw); err != nil {
		common.LogWarn("意圖分析結果解析失敗，使用預設值", zap.Error(err))
		return fallbackIntent()
	}

	intent := Intent{
		IsValid:           raw.IsValidInput == nil || *raw.IsValidInput,
		NewIngredients:    newIngredients(raw.Ingredients, known),
		RequestType:       normalizeRequestType(raw.RequestType),
		SpecificDish:      strings.TrimSpace(raw.SpecificDish),
		MissingIngredient: strings.TrimSpace(raw.MissingIngredient),
	}
	return intent
}

func normalizeRequestType(s string) RequestType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ingredients":
		return RequestIngredients
	case "mood":
		return RequestMood
	case "specific_dish", "specific", "dish":
		return RequestSpecificDish
	case "substitute", "substitution":
		return RequestSubstitute
	default:
		return RequestOther
	}
}

func newIngredients(candidates, known []string) []string {
	seen := make(map[string]bool, len(known)+len(candidates))
	for _, k := range known {
		seen[strings.TrimSpace(k)] = true
	}

	out := []string{}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// MergeIngredients 合併已知與新食材，保持順序且不重複
func MergeIngredients(known, added []string) []string {
	out := make([]string, 0, len(known)+len(added))
	seen := make(map[string]bool, len(known)+len(added))
	for _, list := range [][]string{known, added} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
