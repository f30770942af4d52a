package api

import (
	"context"
	"errors"
	"time"

	"todays-meal/internal/api/handlers/chat"
	"todays-meal/internal/api/handlers/favorite"
	"todays-meal/internal/api/handlers/health"
	"todays-meal/internal/api/handlers/history"
	"todays-meal/internal/api/middleware"
	"todays-meal/internal/infrastructure/config"
	"todays-meal/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 路由使用的處理器
type Handlers struct {
	Chat     *chat.Handler
	History  *history.Handler
	Favorite *favorite.Handler
	Health   *health.Handler
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	// 健康檢查路由
	router.GET("/health", h.Health.HealthCheck)
	router.GET("/ready", h.Health.ReadinessCheck)
	router.GET("/live", h.Health.LivenessCheck)

	// API 路由組，使用者 ID 來自 JWT，限流與去重都以使用者為單位
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.Auth.JWTSecret))
	if cfg.RateLimit.Enabled {
		v1.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	v1.Use(middleware.Deduplication(cfg.DedupWindow))
	v1.Use(requestTimeout(cfg.Server.RequestTimeout))

	chatGroup := v1.Group("/chat")
	{
		chatGroup.POST("/start", h.Chat.HandleStart)
		chatGroup.POST("", h.Chat.HandleMessage)
		chatGroup.GET("/conversations", h.Chat.HandleListConversations)
		chatGroup.GET("/conversations/:id", h.Chat.HandleGetConversation)
	}

	historyGroup := v1.Group("/history")
	{
		historyGroup.GET("", h.History.HandleListConversations)
		historyGroup.GET("/recipes", h.History.HandleListRecipes)
		historyGroup.DELETE("/conversations/:id", h.History.HandleDeleteConversation)
	}

	favoriteGroup := v1.Group("/favorites")
	{
		favoriteGroup.GET("", h.Favorite.HandleList)
		favoriteGroup.POST("", h.Favorite.HandleAdd)
		favoriteGroup.DELETE("/:recipeId", h.Favorite.HandleRemove)
		favoriteGroup.GET("/check/:recipeId", h.Favorite.HandleCheck)
	}

	common.LogInfo("Router setup completed",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router
}

// requestTimeout 為請求 context 設定期限；尚未寫出響應時回 504
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			common.WriteError(c, common.ErrGatewayTimeout)
		}
	}
}
