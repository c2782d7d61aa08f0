package scheduling

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/events"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// 2025-03-10 is a Monday.
var (
	monday  = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)

func at(s string) timeutil.TimeOfDay {
	t, err := timeutil.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func span(start string, minutes int) timeutil.Interval {
	return timeutil.Span(at(start), minutes)
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	ctx      context.Context
	svc      *Service
	store    *MemoryStore
	provider uuid.UUID
	clinic   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, redisclient.NewLocalLocker(5*time.Second), nil)
}

func newFixtureWith(t *testing.T, locker redisclient.Locker, publisher events.Publisher) *fixture {
	t.Helper()

	store := NewMemoryStore()
	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		provider: uuid.New(),
		clinic:   uuid.New(),
	}
	store.PutProvider(Provider{ID: f.provider, ClinicID: f.clinic, Name: "Dr. Amara Okafor", Active: true})
	f.svc = NewService(store.Stores(), locker, publisher, config.Defaults())
	return f
}

func (f *fixture) weekly(t *testing.T, day time.Weekday, start, end string) *WeeklyScheduleEntry {
	t.Helper()
	e, err := f.svc.AddWeeklyEntry(f.ctx, WeeklyScheduleEntry{
		ProviderID: f.provider,
		DayOfWeek:  day,
		StartTime:  at(start),
		EndTime:    at(end),
		Available:  true,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) request(date time.Time, start string, minutes int) BookingRequest {
	return BookingRequest{
		ProviderID:      f.provider,
		ClinicID:        f.clinic,
		Date:            date,
		StartTime:       at(start),
		DurationMinutes: minutes,
		Patient:         PatientFields{Name: "Jonah Reyes", Email: "jonah@example.com", Phone: "+14155550100"},
	}
}

func (f *fixture) book(date time.Time, start string, minutes int) (*Booking, error) {
	return f.svc.CheckAndCreateBooking(f.ctx, f.request(date, start, minutes))
}

func (f *fixture) mustBook(t *testing.T, date time.Time, start string, minutes int) *Booking {
	t.Helper()
	b, err := f.book(date, start, minutes)
	require.NoError(t, err)
	return b
}

func (f *fixture) slots(t *testing.T, date time.Time, granularity int) []timeutil.TimeOfDay {
	t.Helper()
	seq, err := f.svc.ListFreeSlots(f.ctx, f.provider, date, granularity)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func times(ss ...string) []timeutil.TimeOfDay {
	out := make([]timeutil.TimeOfDay, 0, len(ss))
	for _, s := range ss {
		out = append(out, at(s))
	}
	return out
}

// passthroughLocker takes no lock at all, leaving atomicity to the ledger.
type passthroughLocker struct{}

func (passthroughLocker) WithProviderLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
