package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

const weeklyColumns = `id, provider_id, day_of_week, start_time, end_time, available, created_at, updated_at`

func scanWeeklyEntry(row pgx.Row) (WeeklyScheduleEntry, error) {
	var e WeeklyScheduleEntry
	var day int16
	var start, end pgtype.Time

	err := row.Scan(
		&e.ID,
		&e.ProviderID,
		&day,
		&start,
		&end,
		&e.Available,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return WeeklyScheduleEntry{}, err
	}

	e.DayOfWeek = time.Weekday(day)
	e.StartTime = timeutil.FromMicroseconds(start.Microseconds)
	e.EndTime = timeutil.FromMicroseconds(end.Microseconds)
	return e, nil
}

func listWeekly(ctx context.Context, q querier, sql string, args ...any) ([]WeeklyScheduleEntry, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query weekly entries: %w", err)
	}
	defer rows.Close()

	var out []WeeklyScheduleEntry
	for rows.Next() {
		e, err := scanWeeklyEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weekly entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertWeekly(ctx context.Context, q querier, e WeeklyScheduleEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO weekly_schedule_entries (`+weeklyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.ProviderID, int16(e.DayOfWeek), pgTime(e.StartTime), pgTime(e.EndTime), e.Available, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert weekly entry: %w", err)
	}
	return nil
}

func (r *PgStore) ListWeeklyEntries(ctx context.Context, providerID uuid.UUID) ([]WeeklyScheduleEntry, error) {
	return listWeekly(ctx, r.pool, `
		SELECT `+weeklyColumns+`
		FROM weekly_schedule_entries
		WHERE provider_id = $1
		ORDER BY day_of_week, start_time
	`, providerID)
}

func (r *PgStore) ListWeeklyEntriesForDay(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]WeeklyScheduleEntry, error) {
	return listWeekly(ctx, r.pool, `
		SELECT `+weeklyColumns+`
		FROM weekly_schedule_entries
		WHERE provider_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`, providerID, int16(day))
}

func (r *PgStore) ReplaceWeeklyEntries(ctx context.Context, providerID uuid.UUID, entries []WeeklyScheduleEntry) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for day := time.Sunday; day <= time.Saturday; day++ {
			if err := advisoryLock(ctx, tx, dayKey("weekly", providerID, day.String())); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM weekly_schedule_entries WHERE provider_id = $1`, providerID); err != nil {
			return fmt.Errorf("delete weekly entries: %w", err)
		}
		for _, e := range entries {
			if err := insertWeekly(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PgStore) InsertWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry, verify func(existing []WeeklyScheduleEntry) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := advisoryLock(ctx, tx, dayKey("weekly", e.ProviderID, e.DayOfWeek.String())); err != nil {
			return err
		}
		existing, err := listWeekly(ctx, tx, `
			SELECT `+weeklyColumns+`
			FROM weekly_schedule_entries
			WHERE provider_id = $1 AND day_of_week = $2
			ORDER BY start_time
		`, e.ProviderID, int16(e.DayOfWeek))
		if err != nil {
			return err
		}
		if err := verify(existing); err != nil {
			return err
		}
		return insertWeekly(ctx, tx, *e)
	})
}

func (r *PgStore) DeleteWeeklyEntry(ctx context.Context, providerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM weekly_schedule_entries
		WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return fmt.Errorf("delete weekly entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleEntryNotFound
	}
	return nil
}

// Overrides

const overrideColumns = `id, provider_id, date, start_time, end_time, available, reason, created_at`

func scanOverride(row pgx.Row) (AvailabilityOverride, error) {
	var o AvailabilityOverride
	var start, end pgtype.Time

	err := row.Scan(
		&o.ID,
		&o.ProviderID,
		&o.Date,
		&start,
		&end,
		&o.Available,
		&o.Reason,
		&o.CreatedAt,
	)
	if err != nil {
		return AvailabilityOverride{}, err
	}

	o.Date = timeutil.DateOf(o.Date)
	o.StartTime = fromPgTime(start)
	o.EndTime = fromPgTime(end)
	return o, nil
}

func listOverrides(ctx context.Context, q querier, providerID uuid.UUID, date time.Time) ([]AvailabilityOverride, error) {
	rows, err := q.Query(ctx, `
		SELECT `+overrideColumns+`
		FROM availability_overrides
		WHERE provider_id = $1 AND date = $2
		ORDER BY start_time NULLS FIRST
	`, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var out []AvailabilityOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PgStore) ListOverrides(ctx context.Context, providerID uuid.UUID, date time.Time) ([]AvailabilityOverride, error) {
	return listOverrides(ctx, r.pool, providerID, date)
}

func (r *PgStore) InsertOverride(ctx context.Context, o *AvailabilityOverride, verify func(existing []AvailabilityOverride) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := advisoryLock(ctx, tx, dayKey("override", o.ProviderID, timeutil.FormatDate(o.Date))); err != nil {
			return err
		}
		existing, err := listOverrides(ctx, tx, o.ProviderID, o.Date)
		if err != nil {
			return err
		}
		if err := verify(existing); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO availability_overrides (`+overrideColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, o.ID, o.ProviderID, o.Date, pgTimePtr(o.StartTime), pgTimePtr(o.EndTime), o.Available, o.Reason, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert override: %w", err)
		}
		return nil
	})
}

func (r *PgStore) DeleteOverride(ctx context.Context, providerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_overrides
		WHERE id = $1 AND provider_id = $2
	`, id, providerID)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	return nil
}
