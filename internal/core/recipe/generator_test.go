package recipe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"todays-meal/internal/core/ai/aitest"
	"todays-meal/internal/core/ai/service"
	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(recipes *[]common.Recipe) EmitFunc {
	return func(r common.Recipe) error {
		*recipes = append(*recipes, r)
		return nil
	}
}

func TestGenerateThreeDistinct(t *testing.T) {
	ai := newScriptedAI().On(service.KindRecipe,
		recipeJSON("豚肉とキャベツの味噌炒め", 5),
		recipeJSON("回鍋肉", 6),
		recipeJSON("豚肉とキャベツのスープ", 8),
	)
	gen := NewGenerator(ai, &stubRetriever{}, DefaultGeneratorConfig())

	var emitted []common.Recipe
	got, err := gen.Generate(context.Background(), GenerateRequest{
		UserText:    "豚肉とキャベツがあります",
		Ingredients: []string{"豚肉", "キャベツ"},
	}, collect(&emitted))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, got, emitted)
	assert.Equal(t, 3, ai.Count(service.KindRecipe))

	names := map[string]bool{}
	for _, r := range got {
		assert.False(t, names[r.Name], "duplicate %s", r.Name)
		names[r.Name] = true

		assert.NotEmpty(t, r.ID)
		assert.GreaterOrEqual(t, len(r.Steps), 5)
		assert.LessOrEqual(t, len(r.Steps), 8)
		assert.Greater(t, r.CookingTime, 0)
		assert.GreaterOrEqual(t, r.Nutrition.Protein, 0.0)
		assert.Len(t, r.SideDishes, 2)
		assert.Equal(t, "工程1を行う", r.Steps[0])
	}
	assert.Equal(t, "炒め物", got[0].Category)
	assert.Equal(t, "/images/recipes/stirfry.jpg", got[0].ImageURL)
	assert.Equal(t, "味噌汁", got[0].SideDishes[0].Name)
	assert.Equal(t, "スープ", got[2].Category)
}

func TestGenerateSkipsDuplicateNames(t *testing.T) {
	ai := newScriptedAI().On(service.KindRecipe,
		recipeJSON("回鍋肉", 5),
		recipeJSON("回鍋肉", 5),
		recipeJSON("野菜炒め", 5),
		recipeJSON("回鍋肉", 5),
		recipeJSON("豚汁", 5),
	)
	gen := NewGenerator(ai, nil, DefaultGeneratorConfig())

	got, err := gen.Generate(context.Background(), GenerateRequest{UserText: "何か作って"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"回鍋肉", "野菜炒め", "豚汁"}, recipeNames(got))
	assert.Equal(t, 5, ai.Count(service.KindRecipe))

	// 已產生的名稱會放進之後的提示
	assert.Contains(t, ai.LastPrompt(service.KindRecipe).Instruction, "既に提案したレシピ: 回鍋肉、野菜炒め")
}

func TestGenerateAttemptBudget(t *testing.T) {
	tests := []struct {
		name      string
		ai        *aitest.Scripted
		wantCount int
	}{
		{"always duplicate", newScriptedAI().On(service.KindRecipe, recipeJSON("回鍋肉", 5)), 1},
		{"provider down", newScriptedAI().Fail(service.KindRecipe, errors.New("unavailable")), 0},
		{"malformed output", newScriptedAI().On(service.KindRecipe, "レシピはありません"), 0},
		{"too few steps", newScriptedAI().On(service.KindRecipe,
			recipeJSON("A", 4), recipeJSON("B", 5), recipeJSON("C", 9), recipeJSON("D", 6)), 2},
		{"zero cooking time", newScriptedAI().On(service.KindRecipe, numericRecipeJSON("A", 0, 420, 20, 18)), 0},
		{"negative cooking time", newScriptedAI().On(service.KindRecipe, numericRecipeJSON("A", -5, 420, 20, 18)), 0},
		{"zero calories", newScriptedAI().On(service.KindRecipe, numericRecipeJSON("A", 15, 0, 20, 18)), 0},
		{"negative protein", newScriptedAI().On(service.KindRecipe, numericRecipeJSON("A", 15, 420, -3, 18)), 0},
		{"negative fat", newScriptedAI().On(service.KindRecipe, numericRecipeJSON("A", 15, 420, 20, -1)), 0},
		{"bad numbers then valid", newScriptedAI().On(service.KindRecipe,
			numericRecipeJSON("A", 0, 420, 20, 18), numericRecipeJSON("B", 15, 420, -3, 18), recipeJSON("C", 5)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewGenerator(tt.ai, nil, DefaultGeneratorConfig())

			got, err := gen.Generate(context.Background(), GenerateRequest{UserText: "夕飯"}, nil)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
			assert.LessOrEqual(t, len(got), 3)
			assert.Equal(t, 6, tt.ai.Count(service.KindRecipe))
		})
	}
}

func TestGenerateQuickClamp(t *testing.T) {
	ai := newScriptedAI().On(service.KindRecipe, recipeJSON("A", 5), recipeJSON("B", 5), recipeJSON("C", 5))
	retriever := &stubRetriever{rows: []model.KnowledgeRecipe{{Name: "野菜炒め", CookingTime: 15}}}
	gen := NewGenerator(ai, retriever, DefaultGeneratorConfig())

	_, err := gen.Generate(context.Background(), GenerateRequest{UserText: "簡単に作れるものがいい"}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, retriever.params)
	assert.Equal(t, 20, retriever.params[0].MaxCookingTime)
	assert.Equal(t, []string{"簡単", "時短"}, retriever.params[0].Tags)

	instruction := ai.LastPrompt(service.KindRecipe).Instruction
	assert.Contains(t, instruction, "調理時間制限: 20分以内")
	assert.Contains(t, instruction, "【参考レシピ1】")
}

func TestEffectiveMaxCookingTime(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  int
	}{
		{"簡単に", 0, 20},
		{"quick dinner", 0, 20},
		{"簡単に", 45, 20},
		{"時短で", 10, 10},
		{"ゆっくり煮込みたい", 0, 0},
		{"ゆっくり煮込みたい", 60, 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EffectiveMaxCookingTime(tt.text, tt.limit, 20), tt.text)
	}
}

func TestGenerateStopsWhenEmitFails(t *testing.T) {
	ai := newScriptedAI().On(service.KindRecipe, recipeJSON("A", 5), recipeJSON("B", 5))
	gen := NewGenerator(ai, nil, DefaultGeneratorConfig())

	gone := errors.New("client gone")
	got, err := gen.Generate(context.Background(), GenerateRequest{UserText: "夕飯"}, func(common.Recipe) error {
		return gone
	})
	assert.ErrorIs(t, err, gone)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, ai.Count(service.KindRecipe))
}

func TestGenerateCancelled(t *testing.T) {
	ai := newScriptedAI().On(service.KindRecipe, recipeJSON("A", 5))
	gen := NewGenerator(ai, nil, DefaultGeneratorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, GenerateRequest{UserText: "夕飯"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ai.Count(service.KindRecipe))
}

func TestParseRecipe(t *testing.T) {
	t.Run("bare object with loose numbers", func(t *testing.T) {
		r, err := ParseRecipe("```json\n" + `{"name":"鮭のムニエル","ingredients":[{"name":"鮭","amount":2},{"name":"","amount":"x"}],"steps":["1. 鮭に塩をふる","2) 粉をまぶす"],"cookingTime":"約15分","calories":"350kcal","nutrition":{"protein":"25g","fat":12.5,"carbs":"10"}}` + "\n```")
		require.NoError(t, err)

		assert.Equal(t, "鮭のムニエル", r.Name)
		assert.Equal(t, []common.Ingredient{{Name: "鮭", Amount: "2"}}, r.Ingredients)
		assert.Equal(t, []string{"鮭に塩をふる", "粉をまぶす"}, r.Steps)
		assert.Equal(t, 15, r.CookingTime)
		assert.Equal(t, 350, r.Calories)
		assert.Equal(t, common.Nutrition{Protein: 25, Fat: 12.5, Carbs: 10}, r.Nutrition)
	})

	t.Run("wrapped", func(t *testing.T) {
		r, err := ParseRecipe(recipeJSON("回鍋肉", 5))
		require.NoError(t, err)
		assert.Equal(t, "回鍋肉", r.Name)
		assert.Len(t, r.Steps, 5)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseRecipe("no json here")
		assert.Error(t, err)

		_, err = ParseRecipe(`{"recipe":{"name":"  "}}`)
		assert.Error(t, err)
	})
}

func recipeNames(recipes []common.Recipe) []string {
	out := make([]string, len(recipes))
	for i, r := range recipes {
		out[i] = r.Name
	}
	return out
}

func numericRecipeJSON(name string, cookingTime, calories int, protein, fat float64) string {
	return fmt.Sprintf(`{"recipe":{"name":%q,"ingredients":[{"name":"鶏肉","amount":"200g"}],`+
		`"steps":["切る","焼く","煮る","盛る","添える"],"cookingTime":%d,"calories":%d,`+
		`"nutrition":{"protein":%g,"fat":%g,"carbs":30}}}`, name, cookingTime, calories, protein, fat)
}
