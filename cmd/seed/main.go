package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/seed"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("seed", "dev", "info")
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("seed", cfg.Env, cfg.LogLevel)

	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatal().Str("store", cfg.StoreBackend).Msg("seed writes to Postgres, set STORE_BACKEND=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rt, err := app.Build(ctx, cfg, "seed")
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	from := time.Now().In(cfg.ClinicLocation)
	if v := os.Getenv("SEED_FROM"); v != "" {
		if from, err = timeutil.ParseDate(v); err != nil {
			log.Fatal().Err(err).Msg("invalid SEED_FROM")
		}
	}

	opts := seed.Options{
		Providers:      getInt("SEED_PROVIDERS", 100),
		Days:           getInt("SEED_DAYS", 14),
		BookingsPerDay: getInt("SEED_BOOKINGS_PER_DAY", 8),
		From:           from,
		Seed:           int64(getInt("SEED_RANDOM", 0)),
	}

	if _, err := seed.New(rt.Providers, rt.Service).Run(ctx, opts); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
