// Package seed fills a store with fake providers, weekly templates and
// bookings for demos and load tests.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

type Options struct {
	Providers      int
	Days           int       // how many days of bookings, starting at From
	BookingsPerDay int       // attempted per provider and day
	From           time.Time // first booked date
	Seed           int64     // zero seeds from the clock
}

type Summary struct {
	Providers int
	Overrides int
	Bookings  int
	Conflicts int
}

// shift is a template block applied on weekdays.
type shift struct {
	start, end string
}

var shiftPlans = [][]shift{
	{{"08:00", "12:00"}, {"13:00", "16:00"}},
	{{"09:00", "12:00"}, {"13:00", "17:00"}},
	{{"10:00", "14:00"}, {"15:00", "19:00"}},
	{{"07:30", "15:30"}},
}

var (
	durations = []int{15, 20, 30, 45, 60}
	reasons   = []string{"conference", "vacation", "training", "sick leave", "clinic maintenance"}
)

type Seeder struct {
	providers app.ProviderRegistry
	svc       *scheduling.Service
}

func New(providers app.ProviderRegistry, svc *scheduling.Service) *Seeder {
	return &Seeder{providers: providers, svc: svc}
}

func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if err := gofakeit.Seed(opts.Seed); err != nil {
		return sum, fmt.Errorf("seed faker: %w", err)
	}
	from := timeutil.DateOf(opts.From)

	log.Info().Int("providers", opts.Providers).Int("days", opts.Days).Msg("seeding providers")

	clinicID := uuid.New()
	for i := 0; i < opts.Providers; i++ {
		p := scheduling.Provider{
			ID:       uuid.New(),
			ClinicID: clinicID,
			Name:     "Dr. " + gofakeit.Name(),
			Active:   true,
		}
		if err := s.providers.UpsertProvider(ctx, p); err != nil {
			return sum, err
		}
		sum.Providers++

		if _, err := s.svc.SetWeeklyTemplate(ctx, p.ID, weekdayTemplate()); err != nil {
			return sum, fmt.Errorf("weekly template for %s: %w", p.ID, err)
		}

		for d := 0; d < opts.Days; d++ {
			date := from.AddDate(0, 0, d)

			// Roughly one provider-day in twenty is taken off.
			if gofakeit.Number(1, 20) == 1 {
				if _, err := s.svc.AddOverride(ctx, scheduling.AvailabilityOverride{
					ProviderID: p.ID,
					Date:       date,
					Available:  false,
					Reason:     gofakeit.RandomString(reasons),
				}); err != nil {
					return sum, fmt.Errorf("override for %s: %w", p.ID, err)
				}
				sum.Overrides++
				continue
			}

			booked, conflicts, err := s.bookDay(ctx, p, date, opts.BookingsPerDay)
			if err != nil {
				return sum, err
			}
			sum.Bookings += booked
			sum.Conflicts += conflicts
		}

		if (i+1)%10 == 0 {
			log.Info().Int("done", i+1).Int("total", opts.Providers).Msg("providers seeded")
		}
	}

	log.Info().
		Int("providers", sum.Providers).
		Int("overrides", sum.Overrides).
		Int("bookings", sum.Bookings).
		Int("conflicts", sum.Conflicts).
		Msg("seed complete")
	return sum, nil
}

func weekdayTemplate() []scheduling.WeeklyScheduleEntry {
	plan := shiftPlans[gofakeit.Number(0, len(shiftPlans)-1)]
	var entries []scheduling.WeeklyScheduleEntry
	for day := time.Monday; day <= time.Friday; day++ {
		for _, sh := range plan {
			start, _ := timeutil.ParseTimeOfDay(sh.start)
			end, _ := timeutil.ParseTimeOfDay(sh.end)
			entries = append(entries, scheduling.WeeklyScheduleEntry{
				DayOfWeek: day,
				StartTime: start,
				EndTime:   end,
				Available: true,
			})
		}
	}
	return entries
}

// bookDay books random free slots. Conflicts are expected when a longer
// duration does not fit after the chosen slot start.
func (s *Seeder) bookDay(ctx context.Context, p scheduling.Provider, date time.Time, attempts int) (booked, conflicts int, err error) {
	for range attempts {
		seq, err := s.svc.ListFreeSlots(ctx, p.ID, date, 15)
		if err != nil {
			return booked, conflicts, err
		}
		var free []timeutil.TimeOfDay
		for t := range seq {
			free = append(free, t)
		}
		if len(free) == 0 {
			return booked, conflicts, nil
		}

		b, err := s.svc.CheckAndCreateBooking(ctx, scheduling.BookingRequest{
			ProviderID:      p.ID,
			ClinicID:        p.ClinicID,
			Date:            date,
			StartTime:       free[gofakeit.Number(0, len(free)-1)],
			DurationMinutes: durations[gofakeit.Number(0, len(durations)-1)],
			Patient: scheduling.PatientFields{
				Name:  gofakeit.Name(),
				Email: gofakeit.Email(),
				Phone: "+1" + gofakeit.Phone(),
			},
			Amount: decimal.NewFromFloat(gofakeit.Price(40, 250)).Round(2),
		})
		var conflict *scheduling.ConflictError
		switch {
		case errors.As(err, &conflict):
			conflicts++
			continue
		case err != nil:
			return booked, conflicts, fmt.Errorf("book %s on %s: %w", p.ID, timeutil.FormatDate(date), err)
		}
		booked++

		if gofakeit.Bool() {
			if _, err := s.svc.Confirm(ctx, b.ID); err != nil {
				return booked, conflicts, err
			}
		}
	}
	return booked, conflicts, nil
}
