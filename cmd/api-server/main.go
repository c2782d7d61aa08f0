package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("api-server", "dev", "info")
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("api-server", cfg.Env, cfg.LogLevel)

	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("timezone", cfg.ClinicLocation.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(rootCtx, cfg, "api-server")
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	if rt.Memory != nil && os.Getenv("SEED_DEMO") != "false" {
		sum, err := seed.New(rt.Providers, rt.Service).Run(rootCtx, seed.Options{
			Providers:      5,
			Days:           14,
			BookingsPerDay: 6,
			From:           time.Now().In(cfg.ClinicLocation),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("seed demo data")
		}
		log.Info().Int("providers", sum.Providers).Int("bookings", sum.Bookings).Msg("demo data loaded")
	}

	router := api.NewRouter(api.RouterConfig{
		Service:         rt.Service,
		PgPool:          rt.PgPool,
		Redis:           rt.Redis,
		SlotGranularity: cfg.SlotGranularity,
		Env:             cfg.Env,
		Version:         version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}
