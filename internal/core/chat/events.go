package chat

import "todays-meal/internal/pkg/common"

// EventType 串流事件類型
type EventType string

const (
	EventStatus         EventType = "status"
	EventRecipe         EventType = "recipe"
	EventResponse       EventType = "response"
	EventConversationID EventType = "conversationId"
	EventError          EventType = "error"
	EventDone           EventType = "done"
)

// StreamErrorMessage 串流中途失敗時送給客戶端的訊息
const StreamErrorMessage = "エラーが発生しました"

// Event 串流中的一個事件，序列化為 {"type": ..., "data": ...}
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// EmitFunc 送出事件，回傳錯誤代表接收端已離開
type EmitFunc func(Event) error

func statusEvent(text string) Event {
	return Event{Type: EventStatus, Data: text}
}

func responseEvent(text string) Event {
	return Event{Type: EventResponse, Data: text}
}

func recipeEvent(r common.Recipe) Event {
	return Event{Type: EventRecipe, Data: r}
}

func conversationIDEvent(id string) Event {
	return Event{Type: EventConversationID, Data: id}
}

func errorEvent() Event {
	return Event{Type: EventError, Data: StreamErrorMessage}
}

func doneEvent() Event {
	return Event{Type: EventDone}
}
