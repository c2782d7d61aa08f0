package scheduling

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func validateEntry(prefix string, e WeeklyScheduleEntry) ValidationErrors {
	var errs ValidationErrors
	if e.DayOfWeek < time.Sunday || e.DayOfWeek > time.Saturday {
		errs = append(errs, invalid(prefix+"day_of_week", "must be between 0 and 6")...)
	}
	for _, ve := range validateRange(e.StartTime, e.EndTime) {
		errs = append(errs, ValidationError{Field: prefix + ve.Field, Message: ve.Message})
	}
	return errs
}

// checkEntryOverlap compares against every stored entry of the same day,
// available or not.
func checkEntryOverlap(existing []WeeklyScheduleEntry, e WeeklyScheduleEntry) error {
	for _, x := range existing {
		if x.ID == e.ID || x.DayOfWeek != e.DayOfWeek {
			continue
		}
		if x.Interval().Overlaps(e.Interval()) {
			return &OverlapError{ExistingID: x.ID, Existing: x.Interval()}
		}
	}
	return nil
}

func sortEntries(entries []WeeklyScheduleEntry) {
	slices.SortFunc(entries, func(a, b WeeklyScheduleEntry) int {
		if a.DayOfWeek != b.DayOfWeek {
			return int(a.DayOfWeek - b.DayOfWeek)
		}
		return int(a.StartTime - b.StartTime)
	})
}

// SetWeeklyTemplate replaces the provider's whole weekly template.
func (s *Service) SetWeeklyTemplate(ctx context.Context, providerID uuid.UUID, entries []WeeklyScheduleEntry) ([]WeeklyScheduleEntry, error) {
	var errs ValidationErrors
	for i, e := range entries {
		errs = append(errs, validateEntry(fmt.Sprintf("entries[%d].", i), e)...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if err := s.requireProvider(ctx, providerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]WeeklyScheduleEntry, len(entries))
	for i, e := range entries {
		e.ID = uuid.New()
		e.ProviderID = providerID
		e.CreatedAt = now
		e.UpdatedAt = now
		out[i] = e
	}
	sortEntries(out)

	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if prev.DayOfWeek == cur.DayOfWeek && prev.Interval().Overlaps(cur.Interval()) {
			return nil, &OverlapError{ExistingID: prev.ID, Existing: prev.Interval()}
		}
	}

	if err := s.stores.Schedules.ReplaceWeeklyEntries(ctx, providerID, out); err != nil {
		return nil, fmt.Errorf("replace weekly template: %w", err)
	}

	logging.FromContext(ctx).Info().
		Str("provider_id", providerID.String()).
		Int("entries", len(out)).
		Msg("weekly template replaced")

	return out, nil
}

func (s *Service) AddWeeklyEntry(ctx context.Context, e WeeklyScheduleEntry) (*WeeklyScheduleEntry, error) {
	if errs := validateEntry("", e); len(errs) > 0 {
		return nil, errs
	}
	if err := s.requireProvider(ctx, e.ProviderID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e.ID = uuid.New()
	e.CreatedAt = now
	e.UpdatedAt = now

	err := s.stores.Schedules.InsertWeeklyEntry(ctx, &e, func(existing []WeeklyScheduleEntry) error {
		return checkEntryOverlap(existing, e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Service) RemoveWeeklyEntry(ctx context.Context, providerID, entryID uuid.UUID) error {
	if err := s.requireProvider(ctx, providerID); err != nil {
		return err
	}
	return s.stores.Schedules.DeleteWeeklyEntry(ctx, providerID, entryID)
}

func (s *Service) GetWeeklyTemplate(ctx context.Context, providerID uuid.UUID) ([]WeeklyScheduleEntry, error) {
	if err := s.providerExists(ctx, providerID); err != nil {
		return nil, err
	}
	entries, err := s.stores.Schedules.ListWeeklyEntries(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list weekly entries: %w", err)
	}
	return entries, nil
}

func validateOverride(o AvailabilityOverride) ValidationErrors {
	var errs ValidationErrors
	if o.Date.IsZero() {
		errs = append(errs, invalid("date", "is required")...)
	}
	if (o.StartTime == nil) != (o.EndTime == nil) {
		errs = append(errs, invalid("end_time", "start_time and end_time must be given together")...)
	} else if !o.AllDay() {
		errs = append(errs, validateRange(*o.StartTime, *o.EndTime)...)
	} else if o.Available {
		errs = append(errs, invalid("start_time", "an available override needs a time range")...)
	}
	if len(o.Reason) > 500 {
		errs = append(errs, invalid("reason", "must be at most 500 characters")...)
	}
	return errs
}

// AddOverride stores a date exception. An all-day override collides with
// every other override of that date.
func (s *Service) AddOverride(ctx context.Context, o AvailabilityOverride) (*AvailabilityOverride, error) {
	if errs := validateOverride(o); len(errs) > 0 {
		return nil, errs
	}
	if err := s.requireProvider(ctx, o.ProviderID); err != nil {
		return nil, err
	}

	o.ID = uuid.New()
	o.Date = timeutil.DateOf(o.Date)
	o.CreatedAt = s.now().UTC()

	err := s.stores.Overrides.InsertOverride(ctx, &o, func(existing []AvailabilityOverride) error {
		for _, x := range existing {
			if x.Interval().Overlaps(o.Interval()) {
				return &OverlapError{ExistingID: x.ID, Existing: x.Interval()}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Service) RemoveOverride(ctx context.Context, providerID, overrideID uuid.UUID) error {
	if err := s.requireProvider(ctx, providerID); err != nil {
		return err
	}
	return s.stores.Overrides.DeleteOverride(ctx, providerID, overrideID)
}

func (s *Service) GetOverrides(ctx context.Context, providerID uuid.UUID, date time.Time) ([]AvailabilityOverride, error) {
	if err := s.providerExists(ctx, providerID); err != nil {
		return nil, err
	}
	overrides, err := s.stores.Overrides.ListOverrides(ctx, providerID, timeutil.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}

// DayWindows returns the merged availability windows of a provider on date.
func (s *Service) DayWindows(ctx context.Context, providerID uuid.UUID, date time.Time) ([]timeutil.Interval, error) {
	if err := s.providerExists(ctx, providerID); err != nil {
		return nil, err
	}
	return s.dayWindows(ctx, providerID, timeutil.DateOf(date))
}

func (s *Service) dayWindows(ctx context.Context, providerID uuid.UUID, date time.Time) ([]timeutil.Interval, error) {
	overrides, err := s.stores.Overrides.ListOverrides(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	if len(overrides) > 0 {
		return resolveWindows(nil, overrides), nil
	}

	weekly, err := s.stores.Schedules.ListWeeklyEntriesForDay(ctx, providerID, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("list weekly entries: %w", err)
	}
	return resolveWindows(weekly, nil), nil
}
