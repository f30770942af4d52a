package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"todays-meal/internal/core/ai/aitest"
	"todays-meal/internal/core/ai/service"
	"todays-meal/internal/core/knowledge"
	"todays-meal/internal/core/preference"
	"todays-meal/internal/core/recipe"
	"todays-meal/internal/infrastructure/config"
	"todays-meal/internal/infrastructure/database"
	"todays-meal/internal/pkg/common"
	"todays-meal/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	ai      *aitest.Scripted
	db      *gorm.DB
	repo    *repository.ConversationRepository
	prefs   *preference.Store
	service *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	kb := knowledge.NewStore(db)
	_, err = kb.Seed(context.Background(), "")
	require.NoError(t, err)

	ai := aitest.New()
	prefs := preference.NewStore(db)
	pipeline := NewPipeline(
		recipe.NewClassifier(ai),
		recipe.NewGenerator(ai, kb, recipe.DefaultGeneratorConfig()),
		recipe.NewResponder(ai),
		prefs,
		kb,
	)
	repo := repository.NewConversationRepository(db)

	return &harness{
		ai:      ai,
		db:      db,
		repo:    repo,
		prefs:   prefs,
		service: NewService(repo, pipeline, 10),
	}
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for e := range events {
		out = append(out, e)
	}
	return out
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestStreamIngredientsToThreeRecipes(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent, `{"isValidInput": true, "ingredients": ["豚肉", "キャベツ"], "requestType": "ingredients"}`).
		On(service.KindRecipe,
			aitest.RecipeJSON("回鍋肉", 5),
			aitest.RecipeJSON("豚肉とキャベツの味噌炒め", 6),
			aitest.RecipeJSON("豚肉とキャベツのスープ", 5),
		).
		On(service.KindSummary, "3つのレシピをご提案します😊")

	ctx := context.Background()
	stream, err := h.service.Stream(ctx, Request{UserID: "u1", Message: "豚肉とキャベツがあります"})
	require.NoError(t, err)
	events := drain(t, stream)

	assert.Equal(t, []EventType{
		EventConversationID, EventStatus,
		EventRecipe, EventRecipe, EventRecipe,
		EventResponse, EventDone,
	}, eventTypes(events))
	assert.Equal(t, "「豚肉、キャベツ」を使ったレシピを考えています...", events[1].Data)
	assert.Equal(t, "3つのレシピをご提案します😊", events[5].Data)

	names := map[string]bool{}
	var ids []string
	for _, e := range events[2:5] {
		r := e.Data.(common.Recipe)
		assert.False(t, names[r.Name])
		names[r.Name] = true
		ids = append(ids, r.ID)
	}

	// 生成提示帶入新食材
	assert.Contains(t, h.ai.LastPrompt(service.KindRecipe).Instruction, "豚肉, キャベツ")

	convID := events[0].Data.(string)
	history, err := h.repo.History(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "豚肉とキャベツがあります", history[0].Content)
	assert.Equal(t, "3つのレシピをご提案します😊", history[1].Content)
	assert.Equal(t, ids, history[1].RecipeIDs)

	ingredients, err := h.repo.Ingredients(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, []string{"豚肉", "キャベツ"}, ingredients)

	saved, total, err := h.repo.ListRecipeHistory(ctx, "u1", repository.RecipeHistoryQuery{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, saved, 3)

	prefs, err := h.prefs.List(ctx, "u1")
	require.NoError(t, err)
	var liked []string
	for _, p := range prefs {
		if p.Type == preference.TypeFavoriteIngredient {
			liked = append(liked, p.Key)
		}
	}
	assert.ElementsMatch(t, []string{"豚肉", "キャベツ"}, liked)
}

func TestStreamSubstituteSingleResponse(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent, `{"isValidInput": true, "ingredients": [], "requestType": "substitute", "missingIngredient": "味噌"}`).
		On(service.KindSubstitute, "味噌の代わりには醤油と砂糖を合わせるのがおすすめです。")

	stream, err := h.service.Stream(context.Background(), Request{UserID: "u1", Message: "味噌がないです、代わりは？"})
	require.NoError(t, err)
	events := drain(t, stream)

	assert.Equal(t, []EventType{EventConversationID, EventResponse, EventDone}, eventTypes(events))
	assert.Zero(t, h.ai.Count(service.KindRecipe))
	assert.Contains(t, h.ai.LastPrompt(service.KindSubstitute).Instruction, "足りない食材: 味噌")
}

func TestStreamAccumulatesIngredients(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent,
			`{"isValidInput": true, "ingredients": ["ネギ", "豚バラ"], "requestType": "ingredients"}`,
			`{"isValidInput": true, "ingredients": ["ナス", "ネギ"], "requestType": "ingredients"}`,
		).
		On(service.KindRecipe,
			aitest.RecipeJSON("A", 5), aitest.RecipeJSON("B", 5), aitest.RecipeJSON("C", 5),
			aitest.RecipeJSON("D", 5), aitest.RecipeJSON("E", 5), aitest.RecipeJSON("F", 5),
		).
		On(service.KindSummary, "どうぞ")
	ctx := context.Background()

	first := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "ネギと豚バラがある"}))
	convID := first[0].Data.(string)

	second := drain(t, mustStream(t, h, Request{UserID: "u1", ConversationID: convID, Message: "ナスを買ってきた"}))
	assert.Equal(t, "「ネギ、豚バラ、ナス」を使ったレシピを考えています...", second[1].Data)

	// 第二次分類時帶入已知食材
	assert.Contains(t, h.ai.LastPrompt(service.KindIntent).Instruction, "ネギ, 豚バラ")

	ingredients, err := h.repo.Ingredients(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ネギ", "豚バラ", "ナス"}, ingredients)

	history, err := h.repo.History(ctx, convID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Len(t, h.ai.LastPrompt(service.KindSummary).History, 3)
}

func TestStreamInvalidInput(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent, `{"isValidInput": false, "ingredients": [], "requestType": "other"}`).
		On(service.KindInvalid, "申し訳ございません、よく理解できませんでした。")

	events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "明日の天気は？"}))
	assert.Equal(t, []EventType{EventConversationID, EventResponse, EventDone}, eventTypes(events))
	assert.Zero(t, h.ai.Count(service.KindRecipe))
}

func TestStreamDishLookup(t *testing.T) {
	t.Run("missing ingredients", func(t *testing.T) {
		h := newHarness(t)
		h.ai.On(service.KindIntent, `{"isValidInput": true, "ingredients": ["豆腐"], "requestType": "specific_dish", "specificDish": "麻婆豆腐"}`)

		events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "豆腐で麻婆豆腐を作りたい"}))
		require.Equal(t, []EventType{EventConversationID, EventResponse, EventDone}, eventTypes(events))

		text := events[1].Data.(string)
		assert.Contains(t, text, "「麻婆豆腐」を作るには")
		assert.Contains(t, text, "・豆板醤（大さじ1）")
		assert.NotContains(t, text, "絹ごし豆腐")
		assert.NotContains(t, text, "ごま油")
		assert.Zero(t, h.ai.Count(service.KindRecipe))
	})

	t.Run("unknown dish generates", func(t *testing.T) {
		h := newHarness(t)
		h.ai.
			On(service.KindIntent, `{"isValidInput": true, "ingredients": [], "requestType": "specific_dish", "specificDish": "ビーフストロガノフ"}`).
			On(service.KindRecipe, aitest.RecipeJSON("ビーフストロガノフ", 6), aitest.RecipeJSON("簡単ストロガノフ", 6), aitest.RecipeJSON("きのこストロガノフ", 6)).
			On(service.KindSummary, "どうぞ")

		events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "ビーフストロガノフが食べたい"}))
		assert.Equal(t, EventStatus, events[1].Type)
		assert.Equal(t, "「ビーフストロガノフ」のレシピを考えています...", events[1].Data)
		assert.Contains(t, h.ai.LastPrompt(service.KindRecipe).Instruction, "作りたい料理: ビーフストロガノフ")
	})
}

func TestStreamFailures(t *testing.T) {
	t.Run("classifier outage ends with error", func(t *testing.T) {
		h := newHarness(t)
		h.ai.Fail(service.KindIntent, errors.New("provider down"))

		events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "豚肉"}))
		assert.Equal(t, []EventType{EventConversationID, EventError}, eventTypes(events))
		assert.Equal(t, StreamErrorMessage, events[1].Data)
	})

	t.Run("summary outage after recipes", func(t *testing.T) {
		h := newHarness(t)
		h.ai.
			On(service.KindIntent, `{"isValidInput": true, "ingredients": ["豚肉"], "requestType": "ingredients"}`).
			On(service.KindRecipe, aitest.RecipeJSON("A", 5), aitest.RecipeJSON("B", 5), aitest.RecipeJSON("C", 5)).
			Fail(service.KindSummary, errors.New("provider down"))

		events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "豚肉"}))
		assert.Equal(t, []EventType{
			EventConversationID, EventStatus,
			EventRecipe, EventRecipe, EventRecipe,
			EventError,
		}, eventTypes(events))
	})

	t.Run("recipe attempts all fail", func(t *testing.T) {
		h := newHarness(t)
		h.ai.
			On(service.KindIntent, `{"isValidInput": true, "ingredients": ["豚肉"], "requestType": "ingredients"}`).
			Fail(service.KindRecipe, errors.New("provider down")).
			On(service.KindSummary, "もう少し詳しく教えていただけますか？")

		events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "豚肉"}))
		assert.Equal(t, []EventType{EventConversationID, EventStatus, EventResponse, EventDone}, eventTypes(events))
		assert.Equal(t, 6, h.ai.Count(service.KindRecipe))
		assert.Contains(t, h.ai.LastPrompt(service.KindSummary).Instruction, "レシピを提案できませんでした")
	})

	t.Run("malformed intent fails open", func(t *testing.T) {
		h := newHarness(t)
		h.ai.
			On(service.KindIntent, "よくわかりません").
			On(service.KindRecipe, aitest.RecipeJSON("A", 5), aitest.RecipeJSON("B", 5), aitest.RecipeJSON("C", 5)).
			On(service.KindSummary, "どうぞ")

		events := drain(t, mustStream(t, h, Request{UserID: "u1", Message: "お腹すいた"}))
		assert.Equal(t, "レシピを考えています...", events[1].Data)
		assert.Equal(t, EventDone, events[len(events)-1].Type)
	})
}

func TestStreamSetupErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Stream(ctx, Request{UserID: "u1", Message: "  "})
	assert.ErrorIs(t, err, common.ErrEmptyMessage)

	conv, err := h.repo.CreateConversation(ctx, "u2", "他人")
	require.NoError(t, err)
	_, err = h.service.Stream(ctx, Request{UserID: "u1", ConversationID: conv.ID, Message: "豚肉"})
	assert.ErrorIs(t, err, common.ErrConversationNotFound)
}

func TestStreamStopsWhenClientLeaves(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent, `{"isValidInput": true, "ingredients": ["豚肉"], "requestType": "ingredients"}`).
		On(service.KindRecipe, aitest.RecipeJSON("A", 5), aitest.RecipeJSON("B", 5), aitest.RecipeJSON("C", 5)).
		On(service.KindSummary, "どうぞ")

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := h.service.Stream(ctx, Request{UserID: "u1", Message: "豚肉"})
	require.NoError(t, err)

	first := <-stream
	assert.Equal(t, EventConversationID, first.Type)
	cancel()

	// 取消後 channel 仍會關閉
	for range stream {
	}
	assert.Less(t, h.ai.Count(service.KindRecipe), 6)
}

func TestStart(t *testing.T) {
	h := newHarness(t)
	h.ai.On(service.KindGreeting, "こんにちは！今日のご飯、何にしますか？")
	ctx := context.Background()

	reply, err := h.service.Start(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "こんにちは！今日のご飯、何にしますか？", reply.Message)
	assert.NotNil(t, reply.Recipes)
	assert.Empty(t, reply.Recipes)

	detail, err := h.repo.GetConversationDetail(ctx, "u1", reply.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "新しい会話", detail.Conversation.Title)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "assistant", detail.Messages[0].Role)
}

func TestStartPrunesToMax(t *testing.T) {
	h := newHarness(t)
	h.ai.On(service.KindGreeting, "こんにちは")
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := h.service.Start(ctx, "u1")
		require.NoError(t, err)
	}

	_, total, err := h.repo.ListConversations(ctx, "u1", 20, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
}

func TestChatNonStreaming(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent, `{"isValidInput": true, "ingredients": ["鶏肉"], "requestType": "ingredients"}`).
		On(service.KindRecipe, aitest.RecipeJSON("鶏の照り焼き", 5), aitest.RecipeJSON("親子丼", 5), aitest.RecipeJSON("鶏大根煮", 5)).
		On(service.KindSummary, "3品ご提案します")

	reply, err := h.service.Chat(context.Background(), Request{UserID: "u1", Message: "鶏肉があります", MaxCookingTime: 30})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.ConversationID)
	assert.Equal(t, "3品ご提案します", reply.Message)
	require.Len(t, reply.Recipes, 3)
	assert.Equal(t, "丼・ご飯もの", reply.Recipes[1].Category)
	assert.Contains(t, h.ai.LastPrompt(service.KindRecipe).Instruction, "調理時間制限: 30分以内")
}

func TestPipelinePath(t *testing.T) {
	h := newHarness(t)
	h.ai.
		On(service.KindIntent, `{"isValidInput": false, "ingredients": [], "requestType": "other"}`).
		On(service.KindInvalid, "もう一度教えてください")

	out, err := h.service.pipeline.Run(context.Background(), Input{UserID: "u1", Message: "?"}, func(Event) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []State{StateStart, StateClassify, StateInvalidResponse, StateDone}, out.Path)
	assert.Equal(t, "INVALID_RESPONSE", StateInvalidResponse.String())
}

func TestRecipeEventRoundTrip(t *testing.T) {
	r := common.Recipe{
		ID:          "r1",
		Name:        "回鍋肉",
		Ingredients: []common.Ingredient{{Name: "豚肉", Amount: "200g"}, {Name: "キャベツ", Amount: "1/4個"}},
		Steps:       []string{"a", "b", "c", "d", "e"},
		CookingTime: 15,
		Calories:    450,
		Nutrition:   common.Nutrition{Protein: 20.5, Fat: 18, Carbs: 12},
		Category:    "炒め物",
	}

	data, err := json.Marshal(recipeEvent(r))
	require.NoError(t, err)

	var decoded struct {
		Type EventType     `json:"type"`
		Data common.Recipe `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventRecipe, decoded.Type)
	assert.Equal(t, r.Name, decoded.Data.Name)
	assert.Equal(t, r.Ingredients, decoded.Data.Ingredients)
	assert.Equal(t, r.Steps, decoded.Data.Steps)
	assert.Equal(t, r.CookingTime, decoded.Data.CookingTime)
	assert.Equal(t, r.Calories, decoded.Data.Calories)
	assert.Equal(t, r.Nutrition, decoded.Data.Nutrition)

	done, err := json.Marshal(doneEvent())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done"}`, string(done))
}

func mustStream(t *testing.T, h *harness, req Request) <-chan Event {
	t.Helper()
	stream, err := h.service.Stream(context.Background(), req)
	require.NoError(t, err)
	return stream
}
