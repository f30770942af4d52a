package chat

import (
	"context"
	"fmt"

	"todays-meal/internal/core/knowledge"
	"todays-meal/internal/core/recipe"
	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
)

// State 對話流程狀態，每個請求建立一個新的狀態機
type State int

const (
	StateStart State = iota
	StateClassify
	StateSubstituteAnswer
	StateDishLookup
	StateInvalidResponse
	StatePreRecipeAck
	StateGenerating
	StateDone
)

var stateNames = map[State]string{
	StateStart:            "START",
	StateClassify:         "CLASSIFY",
	StateSubstituteAnswer: "SUBSTITUTE_ANSWER",
	StateDishLookup:       "DISH_LOOKUP",
	StateInvalidResponse:  "INVALID_RESPONSE",
	StatePreRecipeAck:     "PRE_RECIPE_ACK",
	StateGenerating:       "GENERATING",
	StateDone:             "DONE",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PreferenceStore 偏好記錄與讀取
type PreferenceStore interface {
	Record(ctx context.Context, userID, text string, newIngredients []string) int
	PromptText(ctx context.Context, userID string) (string, error)
}

// DishFinder 依料理名稱查詢參考食譜
type DishFinder interface {
	FindByName(ctx context.Context, dish string) (*model.KnowledgeRecipe, error)
}

// Input 一次對話請求的輸入
type Input struct {
	UserID           string
	Message          string
	History          []common.Turn
	KnownIngredients []string
	MaxCookingTime   int
}

// Outcome 狀態機執行結果
type Outcome struct {
	Intent      recipe.Intent
	Ingredients []string
	Recipes     []common.Recipe
	Response    string
	Path        []State
}

// Pipeline 對話流程狀態機
type Pipeline struct {
	classifier *recipe.Classifier
	generator  *recipe.Generator
	responder  *recipe.Responder
	prefs      PreferenceStore
	dishes     DishFinder
}

// NewPipeline 創建對話流程；prefs 與 dishes 可為 nil
func NewPipeline(classifier *recipe.Classifier, generator *recipe.Generator, responder *recipe.Responder, prefs PreferenceStore, dishes DishFinder) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		generator:  generator,
		responder:  responder,
		prefs:      prefs,
		dishes:     dishes,
	}
}

// Responder 回傳回覆產生器
func (p *Pipeline) Responder() *recipe.Responder {
	return p.responder
}

// Run 執行 START → CLASSIFY → 分支 → [GENERATING] → DONE，事件依序送出
func (p *Pipeline) Run(ctx context.Context, in Input, emit EmitFunc) (*Outcome, error) {
	out := &Outcome{Recipes: []common.Recipe{}}
	history := append(append([]common.Turn{}, in.History...), common.Turn{Role: common.RoleUser, Content: in.Message})

	state := StateStart
	for state != StateDone {
		out.Path = append(out.Path, state)

		var err error
		switch state {
		case StateStart:
			state = StateClassify

		case StateClassify:
			out.Intent, err = p.classifier.Classify(ctx, in.Message, in.KnownIngredients)
			if err != nil {
				return out, fmt.Errorf("classify: %w", err)
			}
			out.Ingredients = recipe.MergeIngredients(in.KnownIngredients, out.Intent.NewIngredients)
			state = route(out.Intent)

		case StateSubstituteAnswer:
			out.Response, err = p.responder.Substitute(ctx, in.Message, out.Intent.MissingIngredient, out.Ingredients, history)
			if err != nil {
				return out, fmt.Errorf("substitute: %w", err)
			}
			if err := emit(responseEvent(out.Response)); err != nil {
				return out, err
			}
			state = StateDone

		case StateDishLookup:
			state = p.lookupDish(ctx, out)
			if state == StateDone {
				if err := emit(responseEvent(out.Response)); err != nil {
					return out, err
				}
			}

		case StateInvalidResponse:
			out.Response, err = p.responder.InvalidInput(ctx, in.Message, history)
			if err != nil {
				return out, fmt.Errorf("invalid input reply: %w", err)
			}
			if err := emit(responseEvent(out.Response)); err != nil {
				return out, err
			}
			state = StateDone

		case StatePreRecipeAck:
			if p.prefs != nil {
				p.prefs.Record(ctx, in.UserID, in.Message, out.Intent.NewIngredients)
			}
			if err := emit(statusEvent(p.responder.Acknowledge(out.Ingredients, out.Intent.SpecificDish))); err != nil {
				return out, err
			}
			state = StateGenerating

		case StateGenerating:
			if err := p.generate(ctx, in, history, out, emit); err != nil {
				return out, err
			}
			state = StateDone

		default:
			return out, fmt.Errorf("unknown state %s", state)
		}
	}

	out.Path = append(out.Path, StateDone)
	return out, nil
}

// route 分類後的分支：代用 > 指定料理 > 無效輸入 > 生成
func route(intent recipe.Intent) State {
	switch {
	case intent.RequestType == recipe.RequestSubstitute && intent.MissingIngredient != "":
		return StateSubstituteAnswer
	case intent.RequestType == recipe.RequestSpecificDish && intent.SpecificDish != "":
		return StateDishLookup
	case !intent.IsValid:
		return StateInvalidResponse
	default:
		return StatePreRecipeAck
	}
}

// lookupDish 找到參考食譜且缺少食材時直接回覆，否則繼續生成
func (p *Pipeline) lookupDish(ctx context.Context, out *Outcome) State {
	if p.dishes == nil {
		return StatePreRecipeAck
	}

	entry, err := p.dishes.FindByName(ctx, out.Intent.SpecificDish)
	if err != nil {
		common.LogWarn("料理查詢失敗", zap.String("dish", out.Intent.SpecificDish), zap.Error(err))
		return StatePreRecipeAck
	}
	if entry == nil {
		return StatePreRecipeAck
	}

	missing := knowledge.MissingIngredients(entry, out.Ingredients)
	if len(missing) == 0 {
		return StatePreRecipeAck
	}
	out.Response = p.responder.DishShortage(entry, missing)
	return StateDone
}

func (p *Pipeline) generate(ctx context.Context, in Input, history []common.Turn, out *Outcome, emit EmitFunc) error {
	var prefText string
	if p.prefs != nil {
		text, err := p.prefs.PromptText(ctx, in.UserID)
		if err != nil {
			common.LogWarn("偏好讀取失敗", zap.String("user_id", in.UserID), zap.Error(err))
		}
		prefText = text
	}

	recipes, err := p.generator.Generate(ctx, recipe.GenerateRequest{
		UserText:       in.Message,
		Ingredients:    out.Ingredients,
		History:        in.History,
		Preferences:    prefText,
		MaxCookingTime: in.MaxCookingTime,
		SpecificDish:   out.Intent.SpecificDish,
	}, func(r common.Recipe) error {
		return emit(recipeEvent(r))
	})
	out.Recipes = append(out.Recipes, recipes...)
	if err != nil {
		return err
	}

	out.Response, err = p.responder.Summarize(ctx, in.Message, out.Ingredients, out.Recipes, history)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	return emit(responseEvent(out.Response))
}
