package common

import (
	"errors"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// TruncateRunes 依字元數截斷字串
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// WriteError 將錯誤寫成統一的 JSON 錯誤響應
func WriteError(c *gin.Context, err error) {
	ce := AsCustomError(err)
	if ce.Status >= 500 {
		LogError("請求處理失敗",
			zap.String("code", ce.Code),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}

	resp := ErrorResponse{Error: ce.Message, Code: ce.Code}
	var inner *CustomError
	if gin.Mode() == gin.DebugMode && ce.Err != nil && !errors.As(ce.Err, &inner) {
		resp.Details = ce.Err.Error()
	}
	c.AbortWithStatusJSON(ce.Status, resp)
}
