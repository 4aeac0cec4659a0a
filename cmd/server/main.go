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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/curriculum-relay/internal/adapters/http"
	"github.com/dkeye/curriculum-relay/internal/app"
	"github.com/dkeye/curriculum-relay/internal/auth"
	"github.com/dkeye/curriculum-relay/internal/config"
	"github.com/dkeye/curriculum-relay/internal/metrics"
	"github.com/dkeye/curriculum-relay/internal/users"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	mode, err := app.ParseMode(cfg.PresenceMode)
	if err != nil {
		log.Fatal().Err(err).Msg("bad presence mode")
	}

	m := metrics.New()
	dir := users.NewDirectory(cfg.Users)
	authn, err := auth.New(cfg.Secret, dir, auth.WithLeeway(cfg.TokenLeeway), auth.WithMetrics(m))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build authenticator")
	}

	reg := app.NewRegistry(mode)
	orch := app.NewOrchestrator(reg, app.NewRelay(reg, m), authn, app.PolicyFor(cfg.Backpressure))
	orch.Metrics = m
	orch.Limiter = app.NewJoinRateLimiter(cfg.JoinRateLimit, cfg.JoinRateInterval)

	r := router.SetupRouter(ctx, cfg, orch, authn, m)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("presence_mode", mode.String()).Int("users", dir.Len()).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
