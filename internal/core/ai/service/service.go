package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todays-meal/internal/core/ai/cache"
	"todays-meal/internal/core/ai/provider"
	"todays-meal/internal/core/ai/queue"
	"todays-meal/internal/pkg/common"
)

// 提示類型，用於日誌、快取鍵與測試替身路由
const (
	KindIntent     = "intent"
	KindRecipe     = "recipe"
	KindInvalid    = "invalid"
	KindSubstitute = "substitute"
	KindSummary    = "summary"
	KindGreeting   = "greeting"
)

// Prompt 一次 LLM 呼叫的內容：系統提示、歷史訊息與最後一則指示
type Prompt struct {
	Kind        string
	System      string
	History     []common.Turn
	Instruction string
	Temperature float64
	Cacheable   bool
}

// Completer 文字補全介面，業務層只依賴此介面
type Completer interface {
	Complete(ctx context.Context, p *Prompt) (string, error)
}

// Service AI 服務，每個模型一個實例
type Service struct {
	provider provider.Provider
	cache    *cache.Manager
	queue    *queue.Manager
	timeout  time.Duration
}

// NewService 創建 AI 服務；cacheManager 與 queueManager 可為 nil
func NewService(p provider.Provider, cacheManager *cache.Manager, queueManager *queue.Manager) *Service {
	return &Service{
		provider: p,
		cache:    cacheManager,
		queue:    queueManager,
		timeout:  p.GetTimeout(),
	}
}

// Model 回傳使用中的模型名稱
func (s *Service) Model() string {
	return s.provider.GetModel()
}

// Complete 發送提示並回傳模型輸出的文字
func (s *Service) Complete(ctx context.Context, p *Prompt) (string, error) {
	req := buildRequest(p)

	var key string
	if p.Cacheable && s.cache != nil {
		key = cache.Key(p.Kind, s.provider.GetModel(), req)
		if val, ok := s.cache.Get(ctx, key); ok {
			return val, nil
		}
	}

	if s.queue != nil {
		if err := s.queue.Acquire(ctx); err != nil {
			return "", common.Wrap(common.ErrAIServiceError, err)
		}
		defer s.queue.Release()
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.Generate(callCtx, req)
	common.LogAICall(p.Kind, s.provider.GetModel(), time.Since(start), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", common.Wrap(common.ErrGatewayTimeout, fmt.Errorf("%s call exceeded %s: %w", p.Kind, s.timeout, err))
		}
		return "", common.Wrap(common.ErrAIServiceError, err)
	}

	if key != "" {
		s.cache.Set(ctx, key, resp.Content)
	}
	return resp.Content, nil
}

// buildRequest 將歷史訊息與最後指示轉為供應商請求
func buildRequest(p *Prompt) *provider.Request {
	messages := make([]provider.Message, 0, len(p.History)+1)
	for _, t := range p.History {
		role := provider.RoleUser
		if t.Role == common.RoleAssistant {
			role = provider.RoleAssistant
		}
		messages = append(messages, provider.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: p.Instruction})

	return &provider.Request{
		System:      p.System,
		Messages:    messages,
		Temperature: p.Temperature,
	}
}
