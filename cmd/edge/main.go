package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/config"
	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/gate"
	"github.com/zenbilling/zenbilling-edge-go/internal/handler"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/cache"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/client"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/devauth"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/resilience"
	"github.com/zenbilling/zenbilling-edge-go/internal/port"
	"github.com/zenbilling/zenbilling-edge-go/internal/route"
	"github.com/zenbilling/zenbilling-edge-go/internal/service"
	"github.com/zenbilling/zenbilling-edge-go/internal/session"
	"github.com/zenbilling/zenbilling-edge-go/internal/statestore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("auth_base_url", cfg.AuthBaseURL),
		zap.Bool("dev_auth", cfg.DevAuth),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("edge_token_ttl", cfg.EdgeTokenTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "zenbilling-edge")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	userCache := cache.New[*domain.User](cfg.CacheTTL)
	defer userCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var sessions port.SessionSource
	var backend port.AuthBackend

	if cfg.DevAuth {
		logger.Warn("DEV_AUTH: running against the in-memory auth backend")
		store := devauth.New(logger)
		sessions = store
		backend = store
	} else {
		logger.Info("using ZenBilling auth backend",
			zap.String("auth_base_url", cfg.AuthBaseURL),
		)
		sessionCB := resilience.NewCircuitBreaker("auth-session")
		backendCB := resilience.NewCircuitBreaker("auth-backend")
		sessions = session.NewResolver(httpClient, cfg.AuthBaseURL, sessionCB, metrics, logger)
		backend = client.NewAuthClient(httpClient, cfg.AuthBaseURL, backendCB, resilienceCfg, logger)
	}

	var renderer port.PageRenderer
	if cfg.RendererURL != "" {
		bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)
		renderer = client.NewRendererClient(httpClient, cfg.RendererURL, bulkhead, resilienceCfg, logger)
		logger.Info("page renderer enabled", zap.String("renderer_url", cfg.RendererURL))
	} else {
		logger.Warn("page renderer not configured, serving local shell")
	}

	// --- State store ---
	var states port.StateStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		states = statestore.NewRedis(redisClient, cfg.StateTTL, logger)
		logger.Info("auth state store: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		memory := statestore.NewMemory(cfg.StateTTL)
		defer memory.Close()
		states = memory
		logger.Warn("auth state store: in-memory, state does not survive restarts")
	}

	// --- Route classifier ---
	extraRules := route.ParseRules(cfg.RouteRules)
	classifier := route.NewClassifier(extraRules)
	if len(extraRules) > 0 {
		logger.Info("route rules loaded", zap.Int("extra_rules", len(extraRules)))
	}

	// --- Services ---
	authSvc := service.NewAuthService(backend, states, cfg.JWTSecret, cfg.EdgeTokenTTL, logger)
	bootSvc := service.NewBootstrapService(sessions, backend, userCache, metrics, logger)
	g := gate.New(classifier, sessions, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Gate:      g,
		Auth:      authSvc,
		Bootstrap: bootSvc,
		Sessions:  sessions,
		Renderer:  renderer,
		Metrics:   metrics,
		Logger:    logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
