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

	"github.com/rs/zerolog/log"

	"qrstudio/internal/api"
	"qrstudio/internal/api/handlers"
	"qrstudio/internal/api/middleware"
	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/sessions"
	"qrstudio/internal/engine/studio"
	"qrstudio/internal/pkg/logger"
	"qrstudio/internal/platform/auth"
	"qrstudio/internal/platform/config"
	"qrstudio/internal/platform/metrics"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sessions and their render backends
	var manager *sessions.Manager
	m := metrics.New(func() float64 { return float64(manager.Len()) })
	manager = sessions.NewManager(cfg.Sessions.TTL, cfg.Sessions.MaxSessions, func() studio.Backend {
		return m.Instrument(render.NewCanvas())
	})
	go manager.Run(ctx, cfg.Sessions.SweepInterval)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	limiter := middleware.NewRateLimiter(map[string]int{
		"export":         cfg.RateLimit.ExportPerMinute,
		"api_write":      cfg.RateLimit.APIWritePerMinute,
		"session_create": cfg.RateLimit.SessionCreatePerMinute,
	})
	go limiter.Run(ctx)

	// Router
	deps := &api.Dependencies{
		StudioHandler:     handlers.NewStudioHandler(manager, tokenSvc, m, cfg.Sessions),
		WSHandler:         handlers.NewWSHandler(cfg.WebSocket, manager, m),
		HealthHandler:     handlers.NewHealthHandler(manager, cfg.Sessions.MaxSessions),
		MetricsHandler:    handlers.NewMetricsHandler(m),
		SessionMiddleware: middleware.NewSessionMiddleware(tokenSvc, manager, cfg.Sessions.CookieName),
		RateLimiter:       limiter,
		Logger:            log.Logger,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
