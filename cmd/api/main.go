package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"talkify/api/internal/cache"
	"talkify/api/internal/chat"
	"talkify/api/internal/config"
	"talkify/api/internal/database"
	"talkify/api/internal/handlers"
	"talkify/api/internal/jobs"
	"talkify/api/internal/log"
	"talkify/api/internal/middleware"
	"talkify/api/internal/repository"
	"talkify/api/internal/security"
	"talkify/api/internal/server"
	"talkify/api/internal/service"
	"talkify/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	var chatProvider chat.Provider
	streamProvider, err := chat.NewStreamProvider(cfg.Stream)
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		logger.Warn().Msg("stream credentials missing, chat features disabled")
		chatProvider = chat.Unconfigured{}
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to init chat provider")
	default:
		chatProvider = streamProvider
	}

	tokens := security.NewTokenIssuer(cfg.Security)
	if !tokens.Configured() {
		logger.Warn().Msg("jwt secrets missing, authentication will fail")
	}

	users := repository.NewUserRepository(dbPool)
	requests := repository.NewFriendRequestRepository(dbPool)
	txManager := database.NewTxManager(dbPool)
	denylist := cache.NewTokenDenylist(redisClient)

	chatService := service.NewChatService(users, chatProvider, logger)
	services := handlers.Services{
		Auth:       service.NewAuthService(users, txManager, tokens, chatProvider, denylist, logger),
		Onboarding: service.NewOnboardingService(users, chatProvider, logger),
		Friends:    service.NewFriendService(users, requests, txManager, logger),
		Chat:       chatService,
		Avatars:    service.NewAvatarService(users, objectStore, cfg.Storage.MaxAvatarBytes, logger),
	}

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 10*time.Minute)
	checks := map[string]handlers.Pinger{
		"database": dbPool,
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
		"storage": objectStore,
	}

	handlerSet := handlers.NewHandlerSet(
		logger,
		cfg,
		services,
		middleware.Auth(tokens, users, denylist, logger),
		limiter,
		checks,
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(chatService, cache.NewJobLock(redisClient), cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler did not stop in time")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
