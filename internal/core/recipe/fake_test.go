package recipe

import (
	"context"
	"sync"

	"todays-meal/internal/core/ai/aitest"
	"todays-meal/internal/core/knowledge"
	"todays-meal/internal/model"
)

var (
	newScriptedAI = aitest.New
	recipeJSON    = aitest.RecipeJSON
)

type stubRetriever struct {
	mu     sync.Mutex
	params []knowledge.SearchParams
	rows   []model.KnowledgeRecipe
	err    error
}

func (r *stubRetriever) Search(_ context.Context, p knowledge.SearchParams) ([]model.KnowledgeRecipe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = append(r.params, p)
	return r.rows, r.err
}
