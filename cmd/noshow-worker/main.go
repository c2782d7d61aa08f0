package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("noshow-worker", "dev", "info")
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("noshow-worker", cfg.Env, cfg.LogLevel)

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("grace", cfg.NoShowGrace).
		Msg("noshow-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(rootCtx, cfg, "noshow-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	// Run once at startup
	runOnce(rootCtx, rt.Service)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping noshow worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, rt.Service)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkOverdueNoShows(runCtx, start)
	if err != nil {
		log.Error().Err(err).Int("marked", marked).Msg("noshow run error")
		return
	}
	log.Info().Int("marked", marked).Dur("took", time.Since(start)).Msg("noshow run complete")
}
