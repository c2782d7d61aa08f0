package scheduling

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// MemoryStore keeps providers, schedules and the booking ledger in process.
// A single mutex makes every verify-and-write atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]Provider
	weekly    map[uuid.UUID][]WeeklyScheduleEntry
	overrides map[uuid.UUID][]AvailabilityOverride
	bookings  map[uuid.UUID]Booking
	events    []EventLog
	now       func() time.Time
}

var (
	_ ProviderDirectory = (*MemoryStore)(nil)
	_ ScheduleStore     = (*MemoryStore)(nil)
	_ OverrideStore     = (*MemoryStore)(nil)
	_ BookingLedger     = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: make(map[uuid.UUID]Provider),
		weekly:    make(map[uuid.UUID][]WeeklyScheduleEntry),
		overrides: make(map[uuid.UUID][]AvailabilityOverride),
		bookings:  make(map[uuid.UUID]Booking),
		now:       time.Now,
	}
}

// Stores exposes the memory store as every collaborator the service needs.
func (m *MemoryStore) Stores() Stores {
	return Stores{Providers: m, Schedules: m, Overrides: m, Bookings: m}
}

func (m *MemoryStore) PutProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

func (m *MemoryStore) UpsertProvider(ctx context.Context, p Provider) error {
	m.PutProvider(p)
	return nil
}

// ListProviderIDs returns every active provider id in a stable order.
func (m *MemoryStore) ListProviderIDs(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for id, p := range m.providers {
		if p.Active {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return ids, nil
}

func (m *MemoryStore) ProviderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.providers[id]
	return ok, nil
}

func (m *MemoryStore) ProviderIsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[id].Active, nil
}

// Weekly templates

func (m *MemoryStore) ListWeeklyEntries(ctx context.Context, providerID uuid.UUID) ([]WeeklyScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.weekly[providerID])
	sortEntries(out)
	return out, nil
}

func (m *MemoryStore) ListWeeklyEntriesForDay(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]WeeklyScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesForDayLocked(providerID, day), nil
}

func (m *MemoryStore) entriesForDayLocked(providerID uuid.UUID, day time.Weekday) []WeeklyScheduleEntry {
	var out []WeeklyScheduleEntry
	for _, e := range m.weekly[providerID] {
		if e.DayOfWeek == day {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

func (m *MemoryStore) ReplaceWeeklyEntries(ctx context.Context, providerID uuid.UUID, entries []WeeklyScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekly[providerID] = slices.Clone(entries)
	return nil
}

func (m *MemoryStore) InsertWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry, verify func(existing []WeeklyScheduleEntry) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := verify(m.entriesForDayLocked(e.ProviderID, e.DayOfWeek)); err != nil {
		return err
	}
	m.weekly[e.ProviderID] = append(m.weekly[e.ProviderID], *e)
	return nil
}

func (m *MemoryStore) DeleteWeeklyEntry(ctx context.Context, providerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.weekly[providerID]
	i := slices.IndexFunc(entries, func(e WeeklyScheduleEntry) bool { return e.ID == id })
	if i < 0 {
		return ErrScheduleEntryNotFound
	}
	m.weekly[providerID] = slices.Delete(slices.Clone(entries), i, i+1)
	return nil
}

// Overrides

func sortOverrides(overrides []AvailabilityOverride) {
	slices.SortFunc(overrides, func(a, b AvailabilityOverride) int {
		return int(a.Interval().Start - b.Interval().Start)
	})
}

func (m *MemoryStore) overridesLocked(providerID uuid.UUID, date time.Time) []AvailabilityOverride {
	var out []AvailabilityOverride
	for _, o := range m.overrides[providerID] {
		if sameDate(o.Date, date) {
			out = append(out, o)
		}
	}
	sortOverrides(out)
	return out
}

func (m *MemoryStore) ListOverrides(ctx context.Context, providerID uuid.UUID, date time.Time) ([]AvailabilityOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overridesLocked(providerID, date), nil
}

func (m *MemoryStore) InsertOverride(ctx context.Context, o *AvailabilityOverride, verify func(existing []AvailabilityOverride) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := verify(m.overridesLocked(o.ProviderID, o.Date)); err != nil {
		return err
	}
	m.overrides[o.ProviderID] = append(m.overrides[o.ProviderID], *o)
	return nil
}

func (m *MemoryStore) DeleteOverride(ctx context.Context, providerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	overrides := m.overrides[providerID]
	i := slices.IndexFunc(overrides, func(o AvailabilityOverride) bool { return o.ID == id })
	if i < 0 {
		return ErrOverrideNotFound
	}
	m.overrides[providerID] = slices.Delete(slices.Clone(overrides), i, i+1)
	return nil
}

// Bookings

func (m *MemoryStore) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *MemoryStore) occupyingLocked(providerID uuid.UUID, date time.Time) []Booking {
	var out []Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID && sameDate(b.Date, date) && b.Status.Occupies() {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Booking) int { return int(a.StartTime - b.StartTime) })
	return out
}

func (m *MemoryStore) ListOccupying(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.occupyingLocked(providerID, date), nil
}

func (m *MemoryStore) Reserve(ctx context.Context, b *Booking, verify func(occupying []Booking) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := verify(m.occupyingLocked(b.ProviderID, b.Date)); err != nil {
		return err
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) Move(ctx context.Context, id uuid.UUID, date time.Time, start timeutil.TimeOfDay, durationMinutes int,
	verify func(current Booking, occupying []Booking) error) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if err := verify(cur, m.occupyingLocked(cur.ProviderID, date)); err != nil {
		return nil, err
	}

	cur.Date = date
	cur.StartTime = start
	cur.DurationMinutes = durationMinutes
	cur.UpdatedAt = m.now().UTC()
	m.bookings[id] = cur
	return &cur, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status != from {
		return nil, errStatusChanged
	}
	b.Status = to
	b.UpdatedAt = m.now().UTC()
	m.bookings[id] = b
	return &b, nil
}

func (m *MemoryStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.PaymentStatus != from {
		return nil, errStatusChanged
	}
	b.PaymentStatus = to
	b.UpdatedAt = m.now().UTC()
	m.bookings[id] = b
	return &b, nil
}

func (m *MemoryStore) ListActiveUntil(ctx context.Context, date time.Time) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Booking
	for _, b := range m.bookings {
		if b.Status.Active() && !timeutil.DateOf(b.Date).After(timeutil.DateOf(date)) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Booking) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return int(a.StartTime - b.StartTime)
	})
	return out, nil
}

// ListBookings returns every booking of a provider, for reporting and tests.
func (m *MemoryStore) ListBookings(ctx context.Context, providerID uuid.UUID) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Booking) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return int(a.StartTime - b.StartTime)
	})
	return out, nil
}

func (m *MemoryStore) InsertEvent(ctx context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now().UTC()
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryStore) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
