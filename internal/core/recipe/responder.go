package recipe

import (
	"context"
	"fmt"
	"strings"

	"todays-meal/internal/core/ai/service"
	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"
)

// Responder 產生對話回覆文字
type Responder struct {
	ai service.Completer
}

// NewResponder 創建回覆產生器
func NewResponder(ai service.Completer) *Responder {
	return &Responder{ai: ai}
}

func (r *Responder) complete(ctx context.Context, kind string, history []common.Turn, instruction string) (string, error) {
	text, err := r.ai.Complete(ctx, &service.Prompt{
		Kind:        kind,
		System:      SystemPrompt,
		History:     history,
		Instruction: instruction,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Greeting 開場問候
func (r *Responder) Greeting(ctx context.Context) (string, error) {
	return r.complete(ctx, service.KindGreeting, nil, greetingPrompt)
}

// InvalidInput 無法理解輸入時請使用者重新描述
func (r *Responder) InvalidInput(ctx context.Context, text string, history []common.Turn) (string, error) {
	return r.complete(ctx, service.KindInvalid, history, buildInvalidPrompt(text))
}

// Substitute 代用食材建議
func (r *Responder) Substitute(ctx context.Context, text, missing string, ingredients []string, history []common.Turn) (string, error) {
	return r.complete(ctx, service.KindSubstitute, history, buildSubstitutePrompt(text, missing, ingredients))
}

// Summarize 介紹這次產生的食譜；沒有食譜時請使用者補充資訊
func (r *Responder) Summarize(ctx context.Context, text string, ingredients []string, recipes []common.Recipe, history []common.Turn) (string, error) {
	return r.complete(ctx, service.KindSummary, history, buildSummaryPrompt(text, ingredients, recipes))
}

// Acknowledge 開始生成前的狀態訊息
func (r *Responder) Acknowledge(ingredients []string, dish string) string {
	switch {
	case dish != "":
		return fmt.Sprintf("「%s」のレシピを考えています...", dish)
	case len(ingredients) > 0:
		return fmt.Sprintf("「%s」を使ったレシピを考えています...", strings.Join(ingredients, "、"))
	default:
		return "レシピを考えています..."
	}
}

// DishShortage 指定料理缺少食材時的固定回覆
func (r *Responder) DishShortage(entry *model.KnowledgeRecipe, missing []string) string {
	amounts := make(map[string]string, len(entry.Ingredients))
	for _, ing := range entry.Ingredients {
		amounts[ing.Name] = ing.Amount
	}

	var b strings.Builder
	fmt.Fprintf(&b, "「%s」を作るには、次の食材が必要です。\n", entry.Name)
	for _, name := range missing {
		if amount := amounts[name]; amount != "" {
			fmt.Fprintf(&b, "・%s（%s）\n", name, amount)
		} else {
			fmt.Fprintf(&b, "・%s\n", name)
		}
	}
	b.WriteString("\nお手元にあれば教えてくださいね。今ある食材で作れる別の料理をご提案することもできますよ😊")
	return b.String()
}
