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

	"go-consign/internal/ai"
	"go-consign/internal/cache"
	"go-consign/internal/config"
	"go-consign/internal/consignment"
	"go-consign/internal/database"
	"go-consign/internal/router"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// dev: pretty console, prod: JSON lines
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// bag locks go through redis when several instances share the database
	var (
		rdb    *redis.Client
		locker cache.Locker
	)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = cache.NewRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		locker = cache.NewRedisLocker(rdb, cfg.LockTTL)
		log.Info().Msg("using redis bag locks")
	} else {
		locker = cache.NewLocalLocker()
		log.Warn().Msg("REDIS_URL not set, bag locks are local to this process")
	}

	if cfg.AllowRegistration {
		log.Warn().Msg("registration route is OPEN until the first user exists")
	}

	svc := consignment.New(db, locker, log.Logger, cfg.DefaultCommission())
	agent := ai.NewAgent(cfg.GeminiAPIKey, cfg.GeminiModel, db)
	if !agent.Enabled() {
		log.Info().Msg("GEMINI_API_KEY not set, assistant disabled")
	}

	r := router.New(router.Deps{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Service: svc,
		Agent:   agent,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // the assistant can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server starting on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}
