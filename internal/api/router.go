package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service         *scheduling.Service
	PgPool          *pgxpool.Pool
	Redis           *redis.Client
	SlotGranularity int
	Env             string
	Version         string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	r.Route("/providers/{provider_id}", func(r chi.Router) {
		r.Post("/bookings", createBookingHandler(svc))
		r.Get("/slots", listSlotsHandler(svc, cfg.SlotGranularity))
		r.Get("/conflicts", conflictsHandler(svc))
		r.Get("/windows", dayWindowsHandler(svc))

		r.Get("/weekly-schedule", getWeeklyScheduleHandler(svc))
		r.Put("/weekly-schedule", putWeeklyScheduleHandler(svc))
		r.Post("/weekly-schedule/entries", addWeeklyEntryHandler(svc))
		r.Delete("/weekly-schedule/entries/{entry_id}", removeWeeklyEntryHandler(svc))

		r.Get("/overrides", listOverridesHandler(svc))
		r.Post("/overrides", addOverrideHandler(svc))
		r.Delete("/overrides/{override_id}", removeOverrideHandler(svc))
	})

	r.Route("/bookings/{id}", func(r chi.Router) {
		r.Get("/", getBookingHandler(svc))
		r.Post("/transition", transitionBookingHandler(svc))
		r.Post("/reschedule", rescheduleBookingHandler(svc))
		r.Post("/payment-status", paymentStatusHandler(svc))
	})

	return r
}
