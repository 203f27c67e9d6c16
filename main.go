package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudechat/internal/api"
	"fraudechat/internal/auth"
	"fraudechat/internal/config"
	"fraudechat/internal/logger"
	"fraudechat/internal/persona"
	"fraudechat/internal/redis"
	"fraudechat/internal/service/ai"
	"fraudechat/internal/service/assistant"
	"fraudechat/internal/service/chat"
	"fraudechat/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("FRAUDECHAT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog, err := logger.New(cfg.BasicConfig.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer appLog.Sync()

	dbType := cfg.BasicConfig.DatabaseType
	appLog.Info("opening database", zap.String("driver", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		appLog.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		appLog.Fatal("migrate database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			appLog.Warn("redis unavailable; logout cannot revoke tokens", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	} else {
		appLog.Warn("redis not configured; logout cannot revoke tokens")
	}

	ctx := context.Background()
	service := assistant.NewService(db, appLog)
	if err := service.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		appLog.Fatal("ensure admin", zap.Error(err))
	}
	if _, err := service.PurgeOrphanSessions(ctx); err != nil {
		appLog.Warn("purge orphan sessions", zap.Error(err))
	}

	tools, err := ai.NewToolbox(ctx, ai.NewMathTool())
	if err != nil {
		appLog.Fatal("init tools", zap.Error(err))
	}
	provider := newProvider(ctx, cfg, tools, appLog)

	orchestrator := chat.NewOrchestrator(provider, tools, persona.NewRegistry(), appLog, chat.Options{
		Timeout: cfg.ProviderTimeout(),
	})
	titles := assistant.NewTitleGenerator(provider, cfg.ProviderTimeout(), appLog)
	authService := auth.NewService(cfg.Auth.JWTSecret, rdb, cfg.TokenTTL(), appLog)
	handler := api.NewHandler(service, authService, orchestrator, titles, db, appLog)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:    cfg.BasicConfig.AllowedOrigins,
		RateLimitRequests: cfg.BasicConfig.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow(),
	})

	// a reply may wait on two provider calls plus the title call
	server := &http.Server{
		Addr:         cfg.BasicConfig.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*cfg.ProviderTimeout() + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server forced to shutdown", zap.Error(err))
	}
	appLog.Info("server stopped")
}

// newProvider builds the configured model client, or an offline provider that
// answers every call with an unavailable error.
func newProvider(ctx context.Context, cfg *config.Config, tools *ai.Toolbox, appLog *logger.Logger) ai.Provider {
	name, provCfg := cfg.ActiveProvider()
	chatModel, err := ai.NewChatModel(ctx, name, provCfg)
	if err != nil {
		appLog.Warn("model provider unavailable, replies will use fallbacks", zap.String("provider", name), zap.Error(err))
		return ai.Offline{Reason: err.Error()}
	}
	client, err := ai.NewClient(name, chatModel, tools, appLog)
	if err != nil {
		appLog.Warn("model provider unavailable, replies will use fallbacks", zap.String("provider", name), zap.Error(err))
		return ai.Offline{Reason: err.Error()}
	}
	appLog.Info("model provider ready", zap.String("provider", name), zap.String("model", provCfg.Model))
	return client
}
