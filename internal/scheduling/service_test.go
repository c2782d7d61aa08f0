package scheduling

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func TestListFreeSlots_MorningShift(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")

	got := f.slots(t, monday, 30)
	assert.Equal(t, times("09:00", "09:30", "10:00", "10:30", "11:00", "11:30"), got)
}

func TestCheckAndCreateBooking_Scenarios(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")

	first := f.mustBook(t, monday, "10:00", 30)
	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, PaymentPending, first.PaymentStatus)
	_, err := f.svc.Confirm(f.ctx, first.ID)
	require.NoError(t, err)

	t.Run("partial overlap is a time conflict", func(t *testing.T) {
		_, err := f.book(monday, "10:15", 30)
		require.ErrorIs(t, err, ErrTimeConflict)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, ConflictTime, conflict.Kind)
		assert.Equal(t, first.ID, *conflict.BookingID)
	})

	t.Run("hour ending at the existing start succeeds", func(t *testing.T) {
		b, err := f.book(monday, "09:00", 60)
		require.NoError(t, err)
		assert.Equal(t, at("09:00"), b.StartTime)
	})

	t.Run("cancelling releases the interval", func(t *testing.T) {
		_, err := f.svc.Cancel(f.ctx, first.ID)
		require.NoError(t, err)

		req := f.request(monday, "10:00", 30)
		req.Patient = PatientFields{Name: "Lena Fischer"}
		b, err := f.svc.CheckAndCreateBooking(f.ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "Lena Fischer", b.Patient.Name)
	})
}

func TestListFreeSlots_OverrideOnClosedWeekday(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")

	_, err := f.svc.AddOverride(f.ctx, AvailabilityOverride{
		ProviderID: f.provider,
		Date:       tuesday,
		StartTime:  ptr(at("13:00")),
		EndTime:    ptr(at("14:00")),
		Available:  true,
		Reason:     "covering afternoon clinic",
	})
	require.NoError(t, err)

	assert.Equal(t, times("13:00", "13:30"), f.slots(t, tuesday, 30))
}

func TestTransition_NoShowIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")
	b := f.mustBook(t, monday, "09:00", 30)

	_, err := f.svc.MarkNoShow(f.ctx, b.ID)
	require.NoError(t, err)

	_, err = f.svc.Transition(f.ctx, b.ID, StatusConfirmed)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "no_show", te.From)
	assert.Equal(t, "confirmed", te.To)

	got, err := f.svc.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
}

func TestTransition_TerminalStatesAreImmutable(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "08:00", "18:00")

	reach := map[BookingStatus][]BookingStatus{
		StatusCompleted: {StatusConfirmed, StatusCompleted},
		StatusCancelled: {StatusCancelled},
		StatusNoShow:    {StatusConfirmed, StatusNoShow},
	}

	start := at("08:00")
	for terminal, path := range reach {
		b := f.mustBook(t, monday, start.String(), 30)
		start = start.Add(30)
		for _, st := range path {
			_, err := f.svc.Transition(f.ctx, b.ID, st)
			require.NoError(t, err)
		}

		for target := range bookingTransitions {
			_, err := f.svc.Transition(f.ctx, b.ID, target)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", terminal, target)
		}

		got, err := f.svc.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, terminal, got.Status)
	}
}

func TestTransition_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(f.ctx, uuid.New(), BookingStatus("expired"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Transition(f.ctx, uuid.New(), StatusConfirmed)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	f.weekly(t, time.Monday, "09:00", "12:00")
	b := f.mustBook(t, monday, "09:00", 30)
	_, err = f.svc.Complete(f.ctx, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "pending cannot complete directly")
}

func TestListFreeSlots_OverridePrecedence(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "17:00")
	require.Len(t, f.slots(t, monday, 30), 16)

	_, err := f.svc.AddOverride(f.ctx, AvailabilityOverride{
		ProviderID: f.provider,
		Date:       monday,
		Available:  false,
		Reason:     "annual leave",
	})
	require.NoError(t, err)

	assert.Empty(t, f.slots(t, monday, 30))
	assert.Len(t, f.slots(t, monday.AddDate(0, 0, 7), 30), 16, "next monday keeps the template")

	_, err = f.book(monday, "09:00", 30)
	assert.ErrorIs(t, err, ErrOutsideAvailability)
}

func TestListFreeSlots_Properties(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "08:00", "12:00")
	f.weekly(t, time.Monday, "13:00", "17:30")

	f.mustBook(t, monday, "08:20", 25)
	f.mustBook(t, monday, "10:00", 60)
	f.mustBook(t, monday, "13:00", 15)
	c := f.mustBook(t, monday, "15:00", 90)
	_, err := f.svc.Cancel(f.ctx, c.ID)
	require.NoError(t, err)

	windows, err := f.svc.DayWindows(f.ctx, f.provider, monday)
	require.NoError(t, err)
	occupying, err := f.store.ListOccupying(f.ctx, f.provider, monday)
	require.NoError(t, err)

	for _, g := range []int{10, 15, 20, 30, 45} {
		seq, err := f.svc.ListFreeSlots(f.ctx, f.provider, monday, g)
		require.NoError(t, err)

		slots := slices.Collect(seq)
		require.NotEmpty(t, slots)
		assert.True(t, slices.IsSorted(slots))
		assert.Equal(t, slots, slices.Collect(seq), "sequence is restartable")

		again := f.slots(t, monday, g)
		assert.Equal(t, slots, again, "reads are idempotent")

		for _, s := range slots {
			slot := timeutil.Span(s, g)
			assert.True(t, timeutil.AnyContains(windows, slot), "slot %s outside windows", slot)
			for _, b := range occupying {
				assert.False(t, b.Interval().Overlaps(slot), "slot %s overlaps booking %s", slot, b.Interval())
			}
		}
	}
}

func TestListFreeSlots_Edges(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "10:00")

	t.Run("default granularity", func(t *testing.T) {
		assert.Equal(t, times("09:00", "09:30"), f.slots(t, monday, 0))
	})

	t.Run("closed day", func(t *testing.T) {
		assert.Empty(t, f.slots(t, tuesday, 30))
	})

	t.Run("invalid granularity", func(t *testing.T) {
		_, err := f.svc.ListFreeSlots(f.ctx, f.provider, monday, -5)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = f.svc.ListFreeSlots(f.ctx, f.provider, monday, 1441)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := f.svc.ListFreeSlots(f.ctx, uuid.New(), monday, 30)
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("inactive provider", func(t *testing.T) {
		inactive := uuid.New()
		f.store.PutProvider(Provider{ID: inactive, ClinicID: f.clinic, Active: false})

		seq, err := f.svc.ListFreeSlots(f.ctx, inactive, monday, 30)
		require.NoError(t, err)
		assert.Empty(t, slices.Collect(seq))

		req := f.request(monday, "09:00", 30)
		req.ProviderID = inactive
		_, err = f.svc.CheckAndCreateBooking(f.ctx, req)
		assert.ErrorIs(t, err, ErrProviderInactive)
	})
}

func TestCheckAndCreateBooking_Availability(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")
	f.weekly(t, time.Monday, "12:00", "15:00")

	b, err := f.book(monday, "11:30", 60)
	require.NoError(t, err, "adjacent shifts form one window")
	assert.Equal(t, span("11:30", 60), b.Interval())

	_, err = f.book(monday, "14:45", 30)
	assert.ErrorIs(t, err, ErrOutsideAvailability)

	_, err = f.book(tuesday, "10:00", 30)
	assert.ErrorIs(t, err, ErrOutsideAvailability)

	var conflict *ConflictError
	_, err = f.book(monday, "08:00", 30)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ConflictOutsideAvailability, conflict.Kind)
}

func TestCheckAndCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")

	cases := map[string]struct {
		mutate func(r *BookingRequest)
		field  string
	}{
		"zero duration":   {func(r *BookingRequest) { r.DurationMinutes = 0 }, "duration_minutes"},
		"missing patient": {func(r *BookingRequest) { r.Patient.Name = "" }, "patient.name"},
		"bad email":       {func(r *BookingRequest) { r.Patient.Email = "not-an-email" }, "patient.email"},
		"bad phone":       {func(r *BookingRequest) { r.Patient.Phone = "555-0100" }, "patient.phone"},
		"missing date":    {func(r *BookingRequest) { r.Date = time.Time{} }, "date"},
		"missing clinic":  {func(r *BookingRequest) { r.ClinicID = uuid.Nil }, "clinic_id"},
		"past midnight": {func(r *BookingRequest) {
			r.StartTime = at("23:30")
			r.DurationMinutes = 60
		}, "duration_minutes"},
		"negative amount": {func(r *BookingRequest) { r.Amount = decimal.NewFromInt(-10) }, "amount"},
		"sub-cent amount": {func(r *BookingRequest) { r.Amount = decimal.RequireFromString("10.005") }, "amount"},
		"amount too large": {func(r *BookingRequest) { r.Amount = decimal.RequireFromString("99999999999") }, "amount"},
		"amount at limit":  {func(r *BookingRequest) { r.Amount = decimal.RequireFromString("10000000000.00") }, "amount"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := f.request(monday, "09:00", 30)
			tc.mutate(&req)

			_, err := f.svc.CheckAndCreateBooking(f.ctx, req)
			require.ErrorIs(t, err, ErrValidation)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			fields := make([]string, 0, len(verrs))
			for _, v := range verrs {
				fields = append(fields, v.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	_, err := f.book(monday, "09:00", 30)
	assert.NoError(t, err, "nothing was stored by rejected requests")

	req := f.request(monday, "10:00", 30)
	req.Amount = decimal.RequireFromString("9999999999.99")
	b, err := f.svc.CheckAndCreateBooking(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "9999999999.99", b.Amount.StringFixed(2))
}

func TestCheckAndCreateBooking_UnknownProvider(t *testing.T) {
	f := newFixture(t)
	req := f.request(monday, "09:00", 30)
	req.ProviderID = uuid.New()

	_, err := f.svc.CheckAndCreateBooking(f.ctx, req)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func assertNoOverlaps(t *testing.T, bookings []Booking) {
	t.Helper()
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			a, b := bookings[i], bookings[j]
			if !a.Status.Occupies() || !b.Status.Occupies() || !sameDate(a.Date, b.Date) {
				continue
			}
			assert.False(t, a.Interval().Overlaps(b.Interval()),
				"bookings %s %s and %s %s overlap", a.ID, a.Interval(), b.ID, b.Interval())
		}
	}
}

func TestCheckAndCreateBooking_ConcurrentRequests(t *testing.T) {
	lockers := map[string]func() *fixture{
		"provider lock": func() *fixture { return newFixture(t) },
		"ledger only":   func() *fixture { return newFixtureWith(t, passthroughLocker{}, nil) },
	}

	for name, mk := range lockers {
		t.Run(name, func(t *testing.T) {
			f := mk()
			f.weekly(t, time.Monday, "09:00", "13:00")

			var wg sync.WaitGroup
			var mu sync.Mutex
			var created, conflicts int

			for i := range 40 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					start := at("09:00").Add((i % 16) * 15)
					minutes := []int{15, 30, 45, 60}[i%4]

					_, err := f.book(monday, start.String(), minutes)

					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						created++
					case errors.Is(err, ErrTimeConflict), errors.Is(err, ErrOutsideAvailability):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			all, err := f.store.ListBookings(f.ctx, f.provider)
			require.NoError(t, err)
			assert.Len(t, all, created)
			assert.Equal(t, 40, created+conflicts)
			assertNoOverlaps(t, all)
		})
	}
}

func TestCheckAndCreateBooking_ConcurrentCancelAndRebook(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "10:00")
	held := f.mustBook(t, monday, "09:00", 60)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.svc.Cancel(f.ctx, held.ID)
		assert.NoError(t, err)
	}()

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.book(monday, "09:00", 30)
		}()
	}
	wg.Wait()

	all, err := f.store.ListBookings(f.ctx, f.provider)
	require.NoError(t, err)
	assertNoOverlaps(t, all)
}

func TestWouldConflict(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")
	b := f.mustBook(t, monday, "10:00", 30)

	d, err := f.svc.WouldConflict(f.ctx, f.provider, monday, at("10:15"), 30, nil)
	require.NoError(t, err)
	assert.Equal(t, ConflictTime, d.Kind)
	assert.Equal(t, b.ID, *d.BookingID)

	d, err = f.svc.WouldConflict(f.ctx, f.provider, monday, at("10:15"), 30, &b.ID)
	require.NoError(t, err)
	assert.False(t, d.Conflicts())

	d, err = f.svc.WouldConflict(f.ctx, f.provider, monday, at("12:00"), 30, nil)
	require.NoError(t, err)
	assert.Equal(t, ConflictOutsideAvailability, d.Kind)

	_, err = f.svc.WouldConflict(f.ctx, f.provider, monday, at("10:00"), 0, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")
	f.weekly(t, time.Tuesday, "14:00", "16:00")

	b := f.mustBook(t, monday, "10:00", 30)
	other := f.mustBook(t, monday, "11:00", 30)

	t.Run("overlapping its own old slot", func(t *testing.T) {
		moved, err := f.svc.Reschedule(f.ctx, b.ID, monday, at("10:15"), 30)
		require.NoError(t, err)
		assert.Equal(t, at("10:15"), moved.StartTime)
		assert.Equal(t, b.CreatedAt, moved.CreatedAt)
	})

	t.Run("into another booking", func(t *testing.T) {
		_, err := f.svc.Reschedule(f.ctx, b.ID, monday, at("10:45"), 30)
		assert.ErrorIs(t, err, ErrTimeConflict)

		got, err := f.svc.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, at("10:15"), got.StartTime, "unchanged after rejection")
	})

	t.Run("to another day", func(t *testing.T) {
		moved, err := f.svc.Reschedule(f.ctx, b.ID, tuesday, at("14:00"), 60)
		require.NoError(t, err)
		assert.True(t, sameDate(tuesday, moved.Date))

		assert.Equal(t, times("09:00", "09:30", "10:00", "10:30", "11:30"), f.slots(t, monday, 30))
		assert.Equal(t, times("15:00", "15:30"), f.slots(t, tuesday, 30))
	})

	t.Run("outside availability", func(t *testing.T) {
		_, err := f.svc.Reschedule(f.ctx, other.ID, tuesday, at("09:00"), 30)
		assert.ErrorIs(t, err, ErrOutsideAvailability)
	})

	t.Run("cancelled booking", func(t *testing.T) {
		_, err := f.svc.Cancel(f.ctx, other.ID)
		require.NoError(t, err)
		_, err = f.svc.Reschedule(f.ctx, other.ID, monday, at("09:00"), 30)
		assert.ErrorIs(t, err, ErrBookingNotActive)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.svc.Reschedule(f.ctx, uuid.New(), monday, at("09:00"), 30)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestOnPaymentStatusChanged(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")
	b := f.mustBook(t, monday, "09:00", 30)

	got, err := f.svc.OnPaymentStatusChanged(f.ctx, b.ID, PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Equal(t, StatusPending, got.Status, "payment never moves booking status")

	before := len(f.store.Events())
	got, err = f.svc.OnPaymentStatusChanged(f.ctx, b.ID, PaymentPaid)
	require.NoError(t, err, "redelivery is a no-op")
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Len(t, f.store.Events(), before)

	_, err = f.svc.Confirm(f.ctx, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(f.ctx, b.ID)
	require.NoError(t, err)

	got, err = f.svc.OnPaymentStatusChanged(f.ctx, b.ID, PaymentRefunded)
	require.NoError(t, err)
	assert.Equal(t, PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, StatusCompleted, got.Status, "a refunded visit stays completed")

	_, err = f.svc.OnPaymentStatusChanged(f.ctx, b.ID, PaymentPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.OnPaymentStatusChanged(f.ctx, b.ID, PaymentStatus("chargeback"))
	assert.ErrorIs(t, err, ErrValidation)

	failed := f.mustBook(t, monday, "10:00", 30)
	_, err = f.svc.OnPaymentStatusChanged(f.ctx, failed.ID, PaymentFailed)
	require.NoError(t, err)
	_, err = f.svc.OnPaymentStatusChanged(f.ctx, failed.ID, PaymentPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkOverdueNoShows(t *testing.T) {
	f := newFixture(t)
	f.weekly(t, time.Monday, "09:00", "12:00")

	early := f.mustBook(t, monday, "09:00", 30)
	later := f.mustBook(t, monday, "10:00", 30)
	done := f.mustBook(t, monday, "09:30", 30)
	_, err := f.svc.Confirm(f.ctx, done.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(f.ctx, done.ID)
	require.NoError(t, err)

	now := monday.Add(10*time.Hour + 15*time.Minute)
	n, err := f.svc.MarkOverdueNoShows(f.ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetBooking(f.ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)

	got, err = f.svc.GetBooking(f.ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status, "still inside the grace period")

	got, err = f.svc.GetBooking(f.ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	n, err = f.svc.MarkOverdueNoShows(f.ctx, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkOverdueNoShows_ClinicTimezone(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.ClinicLocation = time.FixedZone("clinic", -5*60*60)
	f.weekly(t, time.Monday, "20:00", "23:00")
	b := f.mustBook(t, monday, "21:00", 30)

	// 21:30 clinic time is 02:30 UTC on tuesday
	n, err := f.svc.MarkOverdueNoShows(f.ctx, time.Date(2025, 3, 11, 2, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.svc.MarkOverdueNoShows(f.ctx, time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
}

func TestMarkOverdueNoShows_DaylightSavingDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	f := newFixture(t)
	f.svc.cfg.ClinicLocation = ny
	f.weekly(t, time.Sunday, "09:00", "12:00")

	// Clocks fell back at 02:00 that morning.
	fallBack := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	b := f.mustBook(t, fallBack, "09:30", 30)

	n, err := f.svc.MarkOverdueNoShows(f.ctx, time.Date(2025, 11, 2, 9, 35, 0, 0, ny))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "booking still in progress")

	n, err = f.svc.MarkOverdueNoShows(f.ctx, time.Date(2025, 11, 2, 10, 25, 0, 0, ny))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "inside the grace period")

	n, err = f.svc.MarkOverdueNoShows(f.ctx, time.Date(2025, 11, 2, 10, 31, 0, 0, ny))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetBooking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev events.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func TestEvents(t *testing.T) {
	pub := new(mockPublisher)
	f := newFixtureWith(t, passthroughLocker{}, pub)
	f.weekly(t, time.Monday, "09:00", "12:00")

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Type == events.TypeBookingCreated && ev.ProviderID == f.provider
	})).Return(errors.New("broker unavailable")).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Type == events.TypeBookingStatusChanged && ev.Data["to"] == StatusConfirmed
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Type == events.TypeBookingRescheduled && ev.Data["start_time"] == "11:00"
	})).Return(nil).Once()

	b, err := f.book(monday, "09:00", 30)
	require.NoError(t, err, "publish failures do not fail the booking")
	_, err = f.svc.Confirm(f.ctx, b.ID)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(f.ctx, b.ID, monday, at("11:00"), 30)
	require.NoError(t, err)

	pub.AssertExpectations(t)

	logged := f.store.Events()
	require.Len(t, logged, 3)
	types := []string{logged[0].EventType, logged[1].EventType, logged[2].EventType}
	assert.Equal(t, []string{events.TypeBookingCreated, events.TypeBookingStatusChanged, events.TypeBookingRescheduled}, types)
	for _, ev := range logged {
		assert.Equal(t, b.ID, *ev.BookingID)
		assert.NotEmpty(t, ev.Payload)
	}
}

// cancelAfterLocker runs fn and then cancels the caller's context, as when a
// client disconnects right after the write commits.
type cancelAfterLocker struct {
	cancel context.CancelFunc
}

func (l cancelAfterLocker) WithProviderLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	l.cancel()
	return err
}

func TestEvents_SurviveCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := new(mockPublisher)
	f := newFixtureWith(t, cancelAfterLocker{cancel: cancel}, pub)
	f.weekly(t, time.Monday, "09:00", "12:00")

	live := mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil })
	pub.On("Publish", live, mock.MatchedBy(func(ev events.Event) bool {
		return ev.Type == events.TypeBookingCreated
	})).Return(nil).Once()

	b, err := f.svc.CheckAndCreateBooking(ctx, f.request(monday, "09:00", 30))
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	pub.AssertExpectations(t)
	logged := f.store.Events()
	require.Len(t, logged, 1)
	assert.Equal(t, b.ID, *logged[0].BookingID)
}

func TestScheduleManagement(t *testing.T) {
	f := newFixture(t)

	t.Run("set weekly template", func(t *testing.T) {
		entries, err := f.svc.SetWeeklyTemplate(f.ctx, f.provider, []WeeklyScheduleEntry{
			{DayOfWeek: time.Wednesday, StartTime: at("13:00"), EndTime: at("17:00"), Available: true},
			{DayOfWeek: time.Monday, StartTime: at("09:00"), EndTime: at("12:00"), Available: true},
			{DayOfWeek: time.Monday, StartTime: at("12:00"), EndTime: at("13:00"), Available: false},
		})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, time.Monday, entries[0].DayOfWeek)
		assert.Equal(t, time.Wednesday, entries[2].DayOfWeek)

		got, err := f.svc.GetWeeklyTemplate(f.ctx, f.provider)
		require.NoError(t, err)
		assert.Equal(t, entries, got)
	})

	t.Run("set rejects overlapping entries", func(t *testing.T) {
		_, err := f.svc.SetWeeklyTemplate(f.ctx, f.provider, []WeeklyScheduleEntry{
			{DayOfWeek: time.Friday, StartTime: at("09:00"), EndTime: at("12:00"), Available: true},
			{DayOfWeek: time.Friday, StartTime: at("11:00"), EndTime: at("14:00"), Available: true},
		})
		assert.ErrorIs(t, err, ErrOverlap)

		got, err := f.svc.GetWeeklyTemplate(f.ctx, f.provider)
		require.NoError(t, err)
		assert.Len(t, got, 3, "template unchanged")
	})

	t.Run("set rejects inverted range", func(t *testing.T) {
		_, err := f.svc.SetWeeklyTemplate(f.ctx, f.provider, []WeeklyScheduleEntry{
			{DayOfWeek: time.Friday, StartTime: at("12:00"), EndTime: at("12:00"), Available: true},
		})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "entries[0].end_time", verrs[0].Field)
	})

	t.Run("add overlapping an unavailable entry", func(t *testing.T) {
		_, err := f.svc.AddWeeklyEntry(f.ctx, WeeklyScheduleEntry{
			ProviderID: f.provider,
			DayOfWeek:  time.Monday,
			StartTime:  at("12:30"),
			EndTime:    at("14:00"),
			Available:  true,
		})
		var overlap *OverlapError
		require.ErrorAs(t, err, &overlap)
		assert.Equal(t, span("12:00", 60), overlap.Existing)
	})

	t.Run("add and remove", func(t *testing.T) {
		e := f.weekly(t, time.Monday, "13:00", "14:00")
		require.NoError(t, f.svc.RemoveWeeklyEntry(f.ctx, f.provider, e.ID))
		assert.ErrorIs(t, f.svc.RemoveWeeklyEntry(f.ctx, f.provider, e.ID), ErrScheduleEntryNotFound)
	})

	t.Run("invalid day", func(t *testing.T) {
		_, err := f.svc.AddWeeklyEntry(f.ctx, WeeklyScheduleEntry{
			ProviderID: f.provider,
			DayOfWeek:  time.Weekday(7),
			StartTime:  at("09:00"),
			EndTime:    at("10:00"),
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("writes need an active provider", func(t *testing.T) {
		inactive := uuid.New()
		f.store.PutProvider(Provider{ID: inactive, Active: false})

		_, err := f.svc.SetWeeklyTemplate(f.ctx, inactive, nil)
		assert.ErrorIs(t, err, ErrProviderInactive)

		_, err = f.svc.AddWeeklyEntry(f.ctx, WeeklyScheduleEntry{
			ProviderID: uuid.New(),
			DayOfWeek:  time.Monday,
			StartTime:  at("09:00"),
			EndTime:    at("10:00"),
		})
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})
}

func TestOverrideManagement(t *testing.T) {
	f := newFixture(t)

	add := func(start, end *timeutil.TimeOfDay, available bool) (*AvailabilityOverride, error) {
		return f.svc.AddOverride(f.ctx, AvailabilityOverride{
			ProviderID: f.provider,
			Date:       monday.Add(15 * time.Hour),
			StartTime:  start,
			EndTime:    end,
			Available:  available,
		})
	}

	morning, err := add(ptr(at("08:00")), ptr(at("10:00")), true)
	require.NoError(t, err)
	assert.Equal(t, monday, morning.Date, "date is normalised")

	_, err = add(ptr(at("09:30")), ptr(at("11:00")), true)
	assert.ErrorIs(t, err, ErrOverlap)

	evening, err := add(ptr(at("18:00")), ptr(at("20:00")), true)
	require.NoError(t, err)

	_, err = add(nil, nil, false)
	assert.ErrorIs(t, err, ErrOverlap, "all-day override collides with any other")

	_, err = add(nil, nil, true)
	assert.ErrorIs(t, err, ErrValidation, "available override needs a range")

	_, err = add(ptr(at("12:00")), nil, true)
	assert.ErrorIs(t, err, ErrValidation)

	got, err := f.svc.GetOverrides(f.ctx, f.provider, monday)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, morning.ID, got[0].ID)
	assert.Equal(t, evening.ID, got[1].ID)

	assert.Equal(t, times("08:00", "09:00", "18:00", "19:00"), f.slots(t, monday, 60))

	require.NoError(t, f.svc.RemoveOverride(f.ctx, f.provider, morning.ID))
	assert.ErrorIs(t, f.svc.RemoveOverride(f.ctx, f.provider, morning.ID), ErrOverrideNotFound)
	assert.Equal(t, times("18:00", "19:00"), f.slots(t, monday, 60))
}

func TestErrorsRender(t *testing.T) {
	id := uuid.MustParse("0b7ad3f4-5c1e-4a0b-8f8e-9d5b3f2a1c00")
	assert.Equal(t, fmt.Sprintf("%s (booking %s)", ErrTimeConflict, id), (&ConflictError{Kind: ConflictTime, BookingID: &id}).Error())
	assert.Equal(t, ErrOutsideAvailability.Error(), (&ConflictError{Kind: ConflictOutsideAvailability}).Error())
	assert.Equal(t, `invalid status transition from "cancelled" to "confirmed"`,
		(&TransitionError{Field: "status", From: "cancelled", To: "confirmed"}).Error())
	assert.Equal(t, "validation failed: date: is required", invalid("date", "is required").Error())
}
