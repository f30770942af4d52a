package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Error   string `json:"error"`             // 錯誤信息
	Code    string `json:"code"`              // 錯誤代碼
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 回傳原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，讓 Wrap 出來的副本仍能與預定義錯誤相等
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap 複製預定義錯誤並附上原因
func Wrap(base *CustomError, err error) *CustomError {
	return NewError(base.Code, base.Message, base.Status, err)
}

// AsCustomError 將任意錯誤轉為 CustomError，無法辨識時視為內部錯誤
func AsCustomError(err error) *CustomError {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return Wrap(ErrInternalError, err)
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeUnauthorized    = "UNAUTHORIZED"      // 401
	ErrCodeForbidden       = "FORBIDDEN"         // 403
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeRequestTimeout  = "REQUEST_TIMEOUT"   // 408
	ErrCodeConflict        = "CONFLICT"          // 409
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"     // 504
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "無効なリクエストです", http.StatusBadRequest, nil)
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "認証が必要です", http.StatusUnauthorized, nil)
	ErrForbidden       = NewError(ErrCodeForbidden, "アクセスが拒否されました", http.StatusForbidden, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "リソースが見つかりません", http.StatusNotFound, nil)
	ErrRequestTimeout  = NewError(ErrCodeRequestTimeout, "リクエストがタイムアウトしました", http.StatusRequestTimeout, nil)
	ErrConflict        = NewError(ErrCodeConflict, "リソースが競合しています", http.StatusConflict, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "リクエストが多すぎます", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError      = NewError(ErrCodeInternalError, "サーバー内部エラー", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "サービスが一時的に利用できません", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "ゲートウェイタイムアウト", http.StatusGatewayTimeout, nil)

	// 業務錯誤
	ErrEmptyMessage         = NewError("EMPTY_MESSAGE", "メッセージは必須です", http.StatusBadRequest, nil)
	ErrMissingRecipeID      = NewError("MISSING_RECIPE_ID", "レシピIDは必須です", http.StatusBadRequest, nil)
	ErrConversationNotFound = NewError("CONVERSATION_NOT_FOUND", "会話が見つかりません", http.StatusNotFound, nil)
	ErrRecipeNotFound       = NewError("RECIPE_NOT_FOUND", "レシピが見つかりません", http.StatusNotFound, nil)
	ErrFavoriteNotFound     = NewError("FAVORITE_NOT_FOUND", "お気に入りが見つかりません", http.StatusNotFound, nil)
	ErrFavoriteExists       = NewError("FAVORITE_EXISTS", "既にお気に入りに追加されています", http.StatusConflict, nil)
	ErrAIServiceError       = NewError("AI_SERVICE_ERROR", "AI サービスエラー", http.StatusServiceUnavailable, nil)
	ErrCacheDisabled        = NewError("CACHE_DISABLED", "キャッシュは無効です", http.StatusServiceUnavailable, nil)
)
