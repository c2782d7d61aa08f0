package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CancelRatio   float64
	ConfirmRatio  float64
	ReadRatio     float64
	ProviderLimit int
	Days          int
	PostgresDSN   string
	DBMaxConns    int32
	Location      *time.Location
}

type DataPool struct {
	Providers []uuid.UUID
	Dates     []string
	Clinic    uuid.UUID

	mu       sync.RWMutex
	bookings []uuid.UUID
}

func (dp *DataPool) AddBooking(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, id)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return uuid.Nil, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]
	return avg, min, max, p50, p95
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type Metrics struct {
	Booking OperationMetrics
	Cancel  OperationMetrics
	Confirm OperationMetrics
	Slots   OperationMetrics
	Read    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	logging.Init("simulate", "dev", getEnv("LOG_LEVEL", "info"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()
	store := scheduling.NewPgStore(pgPool)

	dataPool, err := loadDataPool(ctx, store, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("providers", len(dataPool.Providers)).Int("days", len(dataPool.Dates)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.PrintReport()

	verifyCtx, verifyCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer verifyCancel()
	overlaps, err := store.CountOverlaps(verifyCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("verify overlaps")
	}
	if overlaps > 0 {
		log.Error().Int64("pairs", overlaps).Msg("overlapping occupying bookings found")
		os.Exit(2)
	}
	fmt.Println("No overlapping occupying bookings.")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		ConfirmRatio:  getFloat("SIM_CONFIRM_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		ProviderLimit: getInt("SIM_PROVIDER_LIMIT", 20),
		Days:          getInt("SIM_DAYS", 5),
		PostgresDSN:   baseCfg.PostgresDSN,
		DBMaxConns:    baseCfg.DBMaxConns,
		Location:      baseCfg.ClinicLocation,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, store *scheduling.PgStore, cfg SimConfig) (*DataPool, error) {
	ids, err := store.ListProviderIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no providers loaded, run cmd/seed first")
	}
	if len(ids) > cfg.ProviderLimit {
		ids = ids[:cfg.ProviderLimit]
	}

	dp := &DataPool{Providers: ids, Clinic: uuid.New()}
	today := timeutil.DateOf(time.Now().In(cfg.Location))
	for d := 0; len(dp.Dates) < cfg.Days; d++ {
		date := today.AddDate(0, 0, d)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dp.Dates = append(dp.Dates, timeutil.FormatDate(date))
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < c.BookingRatio:
				s.doBooking(ctx, rng)
			case r < c.BookingRatio+c.CancelRatio:
				s.doTransition(ctx, rng, "cancelled", &s.metrics.Cancel)
			case r < c.BookingRatio+c.CancelRatio+c.ConfirmRatio:
				s.doTransition(ctx, rng, "confirmed", &s.metrics.Confirm)
			default:
				if rng.Intn(2) == 0 {
					s.doSlots(ctx, rng)
				} else {
					s.doRead(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomProviderDate(rng *rand.Rand) (uuid.UUID, string) {
	return s.pool.Providers[rng.Intn(len(s.pool.Providers))], s.pool.Dates[rng.Intn(len(s.pool.Dates))]
}

func (s *Simulator) send(ctx context.Context, method, url string, body any) (*http.Response, time.Duration, error) {
	var buf io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	return resp, time.Since(start), err
}

// doBooking aims at a 15 minute grid inside typical opening hours so that
// workers compete for the same intervals.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	provider, date := s.randomProviderDate(rng)
	start := timeutil.NewTimeOfDay(8, 0).Add(15 * rng.Intn(40))

	resp, latency, err := s.send(ctx, http.MethodPost,
		fmt.Sprintf("%s/providers/%s/bookings", s.config.APIBaseURL, provider), map[string]any{
			"clinic_id":        s.pool.Clinic.String(),
			"date":             date,
			"start_time":       start.String(),
			"duration_minutes": []int{15, 30, 45, 60}[rng.Intn(4)],
			"patient":          map[string]string{"name": "Load Test Patient"},
		})

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
				s.pool.AddBooking(created.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, status string, om *OperationMetrics) {
	id, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	resp, latency, err := s.send(ctx, http.MethodPost,
		fmt.Sprintf("%s/bookings/%s/transition", s.config.APIBaseURL, id), map[string]string{"status": status})

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	provider, date := s.randomProviderDate(rng)

	resp, latency, err := s.send(ctx, http.MethodGet,
		fmt.Sprintf("%s/providers/%s/slots?date=%s", s.config.APIBaseURL, provider, date), nil)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Slots.Record(latency, success, false)
}

func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	resp, latency, err := s.send(ctx, http.MethodGet, fmt.Sprintf("%s/bookings/%s", s.config.APIBaseURL, id), nil)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Read.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("List slots", &s.metrics.Slots)
	printOperationReport("Read booking", &s.metrics.Read)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
