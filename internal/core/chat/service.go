package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"todays-meal/internal/model"
	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	newConversationTitle = "新しい会話"
	titleMaxRunes        = 50
)

// ConversationStore 對話持久化所需的操作
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error)
	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	PruneConversations(ctx context.Context, userID string, max int) (int64, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	History(ctx context.Context, conversationID string) ([]model.Message, error)
	Ingredients(ctx context.Context, conversationID string) ([]string, error)
	AddIngredients(ctx context.Context, conversationID string, names []string) error
	SaveRecipes(ctx context.Context, recipes []common.Recipe) error
	Touch(ctx context.Context, conversationID, title string) error
}

// Request 對話請求
type Request struct {
	UserID         string
	ConversationID string
	Message        string
	MaxCookingTime int
}

// Reply 非串流模式的回應
type Reply struct {
	ConversationID string          `json:"conversationId"`
	Message        string          `json:"message"`
	Recipes        []common.Recipe `json:"recipes"`
}

// Service 對話服務，負責會話持久化並驅動對話流程
type Service struct {
	store            ConversationStore
	pipeline         *Pipeline
	maxConversations int
}

// NewService 創建對話服務
func NewService(store ConversationStore, pipeline *Pipeline, maxConversations int) *Service {
	if maxConversations <= 0 {
		maxConversations = 10
	}
	return &Service{
		store:            store,
		pipeline:         pipeline,
		maxConversations: maxConversations,
	}
}

// Start 建立新會話並儲存開場問候
func (s *Service) Start(ctx context.Context, userID string) (*Reply, error) {
	greeting, err := s.pipeline.Responder().Greeting(ctx)
	if err != nil {
		return nil, serviceError(ctx, err)
	}

	conv, err := s.store.CreateConversation(ctx, userID, newConversationTitle)
	if err != nil {
		return nil, err
	}
	s.prune(ctx, userID)

	if err := s.store.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		Role:           string(common.RoleAssistant),
		Content:        greeting,
	}); err != nil {
		return nil, err
	}

	return &Reply{ConversationID: conv.ID, Message: greeting, Recipes: []common.Recipe{}}, nil
}

// session 一次請求準備好的會話狀態
type session struct {
	conv  *model.Conversation
	input Input
}

// prepare 取得或建立會話、讀取歷史與累積食材，並寫入使用者訊息
func (s *Service) prepare(ctx context.Context, req Request) (*session, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, common.ErrEmptyMessage
	}

	var (
		conv *model.Conversation
		err  error
	)
	if req.ConversationID == "" {
		conv, err = s.store.CreateConversation(ctx, req.UserID, common.TruncateRunes(req.Message, titleMaxRunes))
		if err != nil {
			return nil, err
		}
		s.prune(ctx, req.UserID)
	} else {
		conv, err = s.store.GetConversation(ctx, req.UserID, req.ConversationID)
		if err != nil {
			return nil, err
		}
	}

	messages, err := s.store.History(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	history := make([]common.Turn, 0, len(messages))
	for _, m := range messages {
		history = append(history, common.Turn{Role: common.Role(m.Role), Content: m.Content})
	}

	known, err := s.store.Ingredients(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendMessage(ctx, &model.Message{
		ConversationID: conv.ID,
		Role:           string(common.RoleUser),
		Content:        req.Message,
	}); err != nil {
		return nil, err
	}

	return &session{
		conv: conv,
		input: Input{
			UserID:           req.UserID,
			Message:          req.Message,
			History:          history,
			KnownIngredients: known,
			MaxCookingTime:   req.MaxCookingTime,
		},
	}, nil
}

// Stream 以事件串流執行對話。準備階段的錯誤直接回傳，之後的失敗以 error 事件結束
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	sess, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go func() {
		defer close(events)

		send := func(e Event) error {
			select {
			case events <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := send(conversationIDEvent(sess.conv.ID)); err != nil {
			return
		}

		out, err := s.pipeline.Run(ctx, sess.input, send)
		if err == nil {
			err = s.persist(ctx, sess, out)
		}
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				common.LogError("對話串流失敗",
					zap.String("conversation_id", sess.conv.ID),
					zap.Error(err),
				)
			}
			_ = send(errorEvent())
			return
		}

		_ = send(doneEvent())
	}()

	return events, nil
}

// Chat 非串流模式，執行同一流程後一次回傳
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	sess, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := s.pipeline.Run(ctx, sess.input, func(Event) error { return nil })
	if err != nil {
		return nil, serviceError(ctx, err)
	}
	if err := s.persist(ctx, sess, out); err != nil {
		return nil, err
	}

	return &Reply{ConversationID: sess.conv.ID, Message: out.Response, Recipes: out.Recipes}, nil
}

// persist 儲存助理回覆、食譜、新食材並更新會話標題
func (s *Service) persist(ctx context.Context, sess *session, out *Outcome) error {
	recipeIDs := make([]string, 0, len(out.Recipes))
	for _, r := range out.Recipes {
		recipeIDs = append(recipeIDs, r.ID)
	}

	if err := s.store.SaveRecipes(ctx, out.Recipes); err != nil {
		return fmt.Errorf("save recipes: %w", err)
	}
	if err := s.store.AppendMessage(ctx, &model.Message{
		ConversationID: sess.conv.ID,
		Role:           string(common.RoleAssistant),
		Content:        out.Response,
		RecipeIDs:      recipeIDs,
	}); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	if err := s.store.AddIngredients(ctx, sess.conv.ID, out.Intent.NewIngredients); err != nil {
		return fmt.Errorf("save ingredients: %w", err)
	}
	if err := s.store.Touch(ctx, sess.conv.ID, common.TruncateRunes(sess.input.Message, titleMaxRunes)); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// serviceError 已分類的錯誤原樣回傳，其餘視為 LLM 服務錯誤
func serviceError(ctx context.Context, err error) error {
	var ce *common.CustomError
	if errors.As(err, &ce) {
		return err
	}
	if ctx.Err() != nil {
		return common.Wrap(common.ErrRequestTimeout, err)
	}
	return common.Wrap(common.ErrAIServiceError, err)
}

// prune 只保留最新的會話，失敗不影響本次請求
func (s *Service) prune(ctx context.Context, userID string) {
	removed, err := s.store.PruneConversations(ctx, userID, s.maxConversations)
	if err != nil {
		common.LogWarn("舊會話清理失敗", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if removed > 0 {
		common.LogInfo("已清理舊會話", zap.String("user_id", userID), zap.Int64("removed", removed))
	}
}
