// Package aitest 提供測試用的腳本化補全替身
package aitest

import (
	"context"
	"fmt"
	"sync"

	"todays-meal/internal/core/ai/service"
)

// Scripted 依提示類型依序回傳預先排好的內容，用完後重複最後一個
type Scripted struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	calls     map[string]int
	prompts   []*service.Prompt
}

// New 創建腳本化補全
func New() *Scripted {
	return &Scripted{
		responses: make(map[string][]string),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// On 為指定類型加入回應
func (s *Scripted) On(kind string, responses ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[kind] = append(s.responses[kind], responses...)
	return s
}

// Fail 讓指定類型的呼叫一律失敗
func (s *Scripted) Fail(kind string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[kind] = err
	return s
}

// Complete 實作 service.Completer
func (s *Scripted) Complete(ctx context.Context, p *service.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, p)
	n := s.calls[p.Kind]
	s.calls[p.Kind]++

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.errs[p.Kind]; err != nil {
		return "", err
	}
	list := s.responses[p.Kind]
	if len(list) == 0 {
		return "", fmt.Errorf("no scripted response for %s", p.Kind)
	}
	if n >= len(list) {
		n = len(list) - 1
	}
	return list[n], nil
}

// Count 指定類型被呼叫的次數
func (s *Scripted) Count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

// LastPrompt 指定類型最後一次收到的提示
func (s *Scripted) LastPrompt(kind string) *service.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.prompts) - 1; i >= 0; i-- {
		if s.prompts[i].Kind == kind {
			return s.prompts[i]
		}
	}
	return nil
}

// RecipeJSON 產生一道含 steps 個步驟、前後夾雜說明文字的食譜回應
func RecipeJSON(name string, steps int) string {
	list := ""
	for i := 1; i <= steps; i++ {
		if i > 1 {
			list += ","
		}
		list += fmt.Sprintf(`"手順%d: 工程%dを行う"`, i, i)
	}
	return fmt.Sprintf(`はい、こちらです。
{"recipe":{"name":%q,"ingredients":[{"name":"豚肉","amount":"200g"},{"name":"キャベツ","amount":"1/4個"}],"steps":[%s],"cookingTime":15,"calories":420,"nutrition":{"protein":20,"fat":18,"carbs":30}}}`,
		name, list)
}
