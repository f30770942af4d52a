package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"todays-meal/internal/core/ai/service"
	"todays-meal/internal/core/knowledge"
	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Retriever 參考食譜檢索
type Retriever interface {
	Search(ctx context.Context, p knowledge.SearchParams) ([]model.KnowledgeRecipe, error)
}

// GeneratorConfig 生成迴圈設定
type GeneratorConfig struct {
	MaxAttempts     int
	TargetCount     int
	QuickMaxMinutes int
	RetrievalLimit  int
	ImageBaseURL    string
}

// DefaultGeneratorConfig 預設生成設定
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxAttempts:     6,
		TargetCount:     3,
		QuickMaxMinutes: 20,
		RetrievalLimit:  knowledge.DefaultLimit,
		ImageBaseURL:    "/images/recipes",
	}
}

// GenerateRequest 一次生成所需的輸入
type GenerateRequest struct {
	UserText       string
	Ingredients    []string
	History        []common.Turn
	Preferences    string
	MaxCookingTime int
	SpecificDish   string
}

// EmitFunc 每接受一道食譜就呼叫一次，回傳錯誤時停止生成
type EmitFunc func(common.Recipe) error

// Generator 逐道生成不重複的食譜
type Generator struct {
	ai        service.Completer
	retriever Retriever
	validate  *validator.Validate
	cfg       GeneratorConfig
}

// NewGenerator 創建食譜生成器；retriever 可為 nil
func NewGenerator(ai service.Completer, retriever Retriever, cfg GeneratorConfig) *Generator {
	def := DefaultGeneratorConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = def.TargetCount
	}
	if cfg.QuickMaxMinutes <= 0 {
		cfg.QuickMaxMinutes = def.QuickMaxMinutes
	}
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = def.RetrievalLimit
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = def.ImageBaseURL
	}
	return &Generator{
		ai:        ai,
		retriever: retriever,
		validate:  validator.New(),
		cfg:       cfg,
	}
}

var quickKeywords = []string{"簡単", "時短", "手軽", "早く", "すぐ", "さっと", "quick", "fast"}

// EffectiveMaxCookingTime 訊息含時短關鍵字時，將調理時間上限壓到 quickMax 以下；0 表示不限
func EffectiveMaxCookingTime(text string, limit, quickMax int) int {
	if !containsAny(strings.ToLower(text), quickKeywords) {
		return limit
	}
	if limit <= 0 || limit > quickMax {
		return quickMax
	}
	return limit
}

// Generate 最多嘗試 MaxAttempts 次，取得 TargetCount 道名稱不重複的食譜即停止
func (g *Generator) Generate(ctx context.Context, req GenerateRequest, emit EmitFunc) ([]common.Recipe, error) {
	maxTime := EffectiveMaxCookingTime(req.UserText, req.MaxCookingTime, g.cfg.QuickMaxMinutes)
	params := knowledge.SearchParams{
		Ingredients:    req.Ingredients,
		CuisineType:    knowledge.DetectCuisine(req.UserText),
		MaxCookingTime: maxTime,
		Tags:           knowledge.ExtractTags(req.UserText),
		Limit:          g.cfg.RetrievalLimit,
	}

	var (
		recipes   []common.Recipe
		usedNames []string
	)
	for attempt := 1; attempt <= g.cfg.MaxAttempts && len(recipes) < g.cfg.TargetCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return recipes, err
		}

		recipe, err := g.generateOne(ctx, req, params, usedNames, attempt)
		if err != nil {
			common.LogWarn("食譜生成失敗",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		if contains(usedNames, recipe.Name) {
			common.LogDebug("食譜名稱重複，捨棄",
				zap.Int("attempt", attempt),
				zap.String("name", recipe.Name),
			)
			continue
		}

		g.postProcess(recipe)
		usedNames = append(usedNames, recipe.Name)
		recipes = append(recipes, *recipe)

		if emit != nil {
			if err := emit(*recipe); err != nil {
				return recipes, err
			}
		}
	}

	if len(recipes) < g.cfg.TargetCount {
		common.LogWarn("食譜數量不足",
			zap.Int("generated", len(recipes)),
			zap.Int("target", g.cfg.TargetCount),
			zap.Int("max_attempts", g.cfg.MaxAttempts),
		)
	}
	return recipes, nil
}

// generateOne 單次嘗試：檢索、組提示、呼叫模型並解析驗證
func (g *Generator) generateOne(ctx context.Context, req GenerateRequest, params knowledge.SearchParams, usedNames []string, attempt int) (*common.Recipe, error) {
	var references string
	if g.retriever != nil {
		refs, err := g.retriever.Search(ctx, params)
		if err != nil {
			common.LogWarn("參考食譜檢索失敗", zap.Error(err))
		} else {
			references = knowledge.FormatForPrompt(refs)
		}
	}

	prompt := buildRecipePrompt(recipePromptInput{
		userText:       req.UserText,
		ingredients:    req.Ingredients,
		preferences:    req.Preferences,
		maxCookingTime: params.MaxCookingTime,
		specificDish:   req.SpecificDish,
		references:     references,
		usedNames:      usedNames,
		attempt:        attempt,
	})

	content, err := g.ai.Complete(ctx, &service.Prompt{
		Kind:        service.KindRecipe,
		System:      SystemPrompt,
		History:     req.History,
		Instruction: prompt,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	recipe, err := ParseRecipe(content)
	if err != nil {
		return nil, err
	}
	if err := g.validate.Struct(recipe); err != nil {
		return nil, fmt.Errorf("invalid recipe %q: %w", recipe.Name, err)
	}
	return recipe, nil
}

// postProcess 補上 ID、分類、圖片與配菜
func (g *Generator) postProcess(r *common.Recipe) {
	r.ID = common.GenerateUUID()
	category := DetectCategory(r.Name)
	r.Category = category.Name
	r.ImageURL = ImageURL(g.cfg.ImageBaseURL, category)
	r.SideDishes = SideDishes(DetectStyle(r.Name, r.Ingredients))
}

type rawIngredient struct {
	Name   string          `json:"name"`
	Amount json.RawMessage `json:"amount"`
}

type rawRecipe struct {
	Name        string             `json:"name"`
	Ingredients []rawIngredient    `json:"ingredients"`
	Steps       []string           `json:"steps"`
	CookingTime common.FlexibleInt `json:"cookingTime"`
	Calories    common.FlexibleInt `json:"calories"`
	Nutrition   struct {
		Protein common.FlexibleFloat `json:"protein"`
		Fat     common.FlexibleFloat `json:"fat"`
		Carbs   common.FlexibleFloat `json:"carbs"`
	} `json:"nutrition"`
}

// 模型有時以 {"recipe": {...}} 包裹，有時直接回傳食譜本體
type recipeEnvelope struct {
	Recipe *rawRecipe `json:"recipe"`
	rawRecipe
}

var stepPrefixPattern = regexp.MustCompile(`^\s*(?:手順\s*\d+\s*[:：.．]?|ステップ\s*\d+\s*[:：.．]?|\d+\s*[.．、)）:：])\s*`)

// ParseRecipe 從模型輸出解析一道食譜，不做欄位驗證
func ParseRecipe(content string) (*common.Recipe, error) {
	var env recipeEnvelope
	if err := common.ParseEmbeddedJSON(content, &env); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}

	raw := env.rawRecipe
	if env.Recipe != nil {
		raw = *env.Recipe
	}
	if strings.TrimSpace(raw.Name) == "" {
		return nil, fmt.Errorf("recipe has no name")
	}

	ingredients := make([]common.Ingredient, 0, len(raw.Ingredients))
	for _, ing := range raw.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		ingredients = append(ingredients, common.Ingredient{Name: name, Amount: amountText(ing.Amount)})
	}

	steps := make([]string, 0, len(raw.Steps))
	for _, s := range raw.Steps {
		s = strings.TrimSpace(stepPrefixPattern.ReplaceAllString(s, ""))
		if s != "" {
			steps = append(steps, s)
		}
	}

	return &common.Recipe{
		Name:        strings.TrimSpace(raw.Name),
		Ingredients: ingredients,
		Steps:       steps,
		CookingTime: int(raw.CookingTime),
		Calories:    int(raw.Calories),
		Nutrition: common.Nutrition{
			Protein: float64(raw.Nutrition.Protein),
			Fat:     float64(raw.Nutrition.Fat),
			Carbs:   float64(raw.Nutrition.Carbs),
		},
	}, nil
}

// amountText 分量可能是字串或數字，一律轉為字串
func amountText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
