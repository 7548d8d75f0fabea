package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"imgforge"
	"imgforge/pkg/logger"
)

func main() {
	// A .env file is optional; real deployments set IMGFORGE_* directly.
	_ = godotenv.Load()

	forge, err := imgforge.FromEnv()
	if err != nil {
		logger.Init("info")
		log.Fatal().Err(err).Msg("startup failed")
	}
	cfg := forge.Config()

	server := &http.Server{
		Addr:    cfg.Bind,
		Handler: forge.Handler(),
		// The per-request processing budget is enforced by handler
		// contexts; these bound slow clients at the socket level.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Timeout+10) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	printBanner(cfg)
	log.Info().
		Str("bind", cfg.Bind).
		Int("workers", cfg.Workers).
		Str("cache", cfg.Cache.Type).
		Msg("imgforge listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
