package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"trip-booking-backend/internal/bot"
	"trip-booking-backend/internal/common/config"
	"trip-booking-backend/internal/common/logger"
	groupjoin "trip-booking-backend/internal/features/groupjoin/service"
	"trip-booking-backend/internal/features/registration/repository"
	"trip-booking-backend/internal/features/registration/repository/memory"
	redisrepo "trip-booking-backend/internal/features/registration/repository/redis"
	registration "trip-booking-backend/internal/features/registration/service"
	"trip-booking-backend/internal/http"
	"trip-booking-backend/internal/platform/backend"
	"trip-booking-backend/internal/platform/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("trip-booking-backend", false)
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init("trip-booking-backend", cfg.Debug)

	backendClient := backend.New(cfg.Backend.BaseURL, cfg.Backend.BotToken, cfg.Backend.Timeout)
	telegramClient := telegram.New(cfg.Telegram.BotToken)

	var redisClient *goredis.Client
	var sessions repository.SessionRepository
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sessions = redisrepo.New(redisClient, cfg.Redis.SessionTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis session store")
	} else {
		sessions = memory.New()
		logger.Info().Msg("Using in-memory session store")
	}

	pending := groupjoin.NewPendingJoins()
	coordinator := groupjoin.NewCoordinator(backendClient, telegramClient, pending)
	reconciler := groupjoin.NewReconciler(backendClient, telegramClient, pending)
	poller := groupjoin.NewPoller(backendClient, coordinator, cfg.GroupJoin.PollInterval)

	dialog := registration.New(backendClient, telegramClient, sessions)

	tripBot := bot.New(telegramClient, backendClient, dialog, coordinator, reconciler, bot.Config{
		PollTimeout:      cfg.Telegram.PollTimeout,
		TripStatusFilter: cfg.GroupJoin.TripStatusFilter,
	})

	checks := map[string]http.ReadinessCheck{
		"backend": backendClient.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	server := http.NewServer(http.Options{
		Port:   cfg.Server.Port,
		Origin: cfg.Server.Origin,
		Debug:  cfg.Debug,
		Checks: checks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start()
	go tripBot.Run(ctx)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting ops server")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Ops server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down")

	cancel()
	poller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Ops server shutdown failed")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn().Err(err).Msg("Redis close failed")
		}
	}
	logger.Info().Msg("Shutdown complete")
}
