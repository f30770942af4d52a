package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todays-meal/internal/api"
	chathandler "todays-meal/internal/api/handlers/chat"
	"todays-meal/internal/api/handlers/favorite"
	"todays-meal/internal/api/handlers/health"
	"todays-meal/internal/api/handlers/history"
	"todays-meal/internal/core/ai/cache"
	"todays-meal/internal/core/ai/gemini"
	"todays-meal/internal/core/ai/openrouter"
	"todays-meal/internal/core/ai/provider"
	"todays-meal/internal/core/ai/queue"
	"todays-meal/internal/core/ai/service"
	"todays-meal/internal/core/chat"
	"todays-meal/internal/core/knowledge"
	"todays-meal/internal/core/preference"
	"todays-meal/internal/core/recipe"
	"todays-meal/internal/infrastructure/config"
	"todays-meal/internal/infrastructure/database"
	"todays-meal/internal/pkg/common"
	"todays-meal/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 載入設定（內含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.Log.Level, common.LogFileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_api_key", config.MaskAPIKey(cfg.LLM.APIKey)),
		zap.String("conversation_model", cfg.LLM.ConversationModel),
		zap.String("recipe_model", cfg.LLM.RecipeModel),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		common.LogError("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	common.LogInfo("Server exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 資料庫與參考食譜
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	defer sqlDB.Close()

	kb := knowledge.NewStore(db)
	added, err := kb.Seed(ctx, cfg.Database.SeedFile)
	if err != nil {
		return err
	}
	common.LogInfo("參考食譜已載入", zap.Int("added", added))

	// 快取
	cacheManager, err := newCacheManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer cacheManager.Close()

	// 所有模型共用一個併發閘門
	queueManager := queue.NewManager(cfg.LLM.MaxConcurrent)

	conversationProvider, err := newProvider(ctx, cfg.LLM, cfg.LLM.ConversationModel)
	if err != nil {
		return err
	}
	defer conversationProvider.Close()

	recipeProvider, err := newProvider(ctx, cfg.LLM, cfg.LLM.RecipeModel)
	if err != nil {
		return err
	}
	defer recipeProvider.Close()

	conversationAI := service.NewService(conversationProvider, cacheManager, queueManager)
	recipeAI := service.NewService(recipeProvider, cacheManager, queueManager)

	// 對話流程
	conversations := repository.NewConversationRepository(db)
	pipeline := chat.NewPipeline(
		recipe.NewClassifier(conversationAI),
		recipe.NewGenerator(recipeAI, kb, recipe.GeneratorConfig{
			MaxAttempts:     cfg.Generation.MaxAttempts,
			TargetCount:     cfg.Generation.TargetCount,
			QuickMaxMinutes: cfg.Generation.QuickMaxMinutes,
			RetrievalLimit:  cfg.Generation.RetrievalLimit,
			ImageBaseURL:    cfg.Image.BaseURL,
		}),
		recipe.NewResponder(conversationAI),
		preference.NewStore(db),
		kb,
	)
	chatService := chat.NewService(conversations, pipeline, cfg.Conversation.MaxPerUser)

	router := api.SetupRouter(cfg, api.Handlers{
		Chat:     chathandler.NewHandler(chatService, conversations),
		History:  history.NewHandler(conversations),
		Favorite: favorite.NewHandler(repository.NewFavoriteRepository(db)),
		Health:   health.NewHandler(cfg.App.Version, sqlDB, queueManager, cacheManager),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		common.LogInfo("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newProvider 依設定建立指定模型的 LLM 客戶端
func newProvider(ctx context.Context, llm config.LLMConfig, model string) (provider.Provider, error) {
	pc := provider.Config{
		APIKey:      llm.APIKey,
		Model:       model,
		BaseURL:     llm.BaseURL,
		Timeout:     llm.Timeout,
		MaxTokens:   llm.MaxTokens,
		Temperature: llm.Temperature,
	}

	switch llm.Provider {
	case "openrouter":
		return openrouter.NewClient(pc), nil
	case "gemini":
		// base_url 的預設值指向 OpenRouter，Gemini 使用 SDK 自己的端點
		pc.BaseURL = ""
		client, err := gemini.NewClient(ctx, pc)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", llm.Provider)
	}
}

// newCacheManager 快取關閉時回傳 nil；Redis 後端在啟動時重試連線
func newCacheManager(ctx context.Context, cfg *config.Config) (*cache.Manager, error) {
	if !cfg.Cache.Enabled {
		common.LogInfo("LLM 快取已停用")
		return nil, nil
	}

	if cfg.Cache.Backend != "redis" {
		return cache.NewManager(cache.NewMemoryStore(cfg.Cache.TTL, cfg.Cache.CleanupInterval), "memory", cfg.Cache.TTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	_, err := backoff.Retry(ctx, func() (string, error) {
		pong, err := client.Ping(ctx).Result()
		if err != nil {
			common.LogWarn("Redis 連線失敗，稍後重試", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return pong, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(max(cfg.Redis.ConnectRetries, 1)),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	return cache.NewManager(cache.NewRedisStore(client), "redis", cfg.Cache.TTL), nil
}
