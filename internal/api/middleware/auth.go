package middleware

import (
	"errors"
	"fmt"
	"strings"

	"todays-meal/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// userIDKey gin context 中保存使用者 ID 的鍵
const userIDKey = "user_id"

// Auth 驗證 Bearer JWT（HS256），並把使用者 ID 放入 context
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			common.WriteError(c, common.ErrUnauthorized)
			return
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			common.LogDebug("JWT 驗證失敗",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			common.WriteError(c, common.Wrap(common.ErrUnauthorized, err))
			return
		}

		userID, err := userIDFromClaims(claims)
		if err != nil {
			common.WriteError(c, common.Wrap(common.ErrUnauthorized, err))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// userIDFromClaims 依序讀取 userId 與 user_id，數字 ID 轉為字串
func userIDFromClaims(claims jwt.MapClaims) (string, error) {
	for _, name := range []string{"userId", "user_id"} {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", errors.New("token has no user id")
}

// UserID 取得已驗證的使用者 ID
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
