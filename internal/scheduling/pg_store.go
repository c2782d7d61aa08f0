package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// SQLSTATE exclusion_violation, raised by bookings_no_overlap.
const pgExclusionViolation = "23P01"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore implements every store on Postgres. Verify-and-write operations run
// in one transaction holding a transaction-scoped advisory lock on the
// (provider, day) key they verify against.
type PgStore struct {
	pool *pgxpool.Pool
}

var (
	_ ProviderDirectory = (*PgStore)(nil)
	_ ScheduleStore     = (*PgStore)(nil)
	_ OverrideStore     = (*PgStore)(nil)
	_ BookingLedger     = (*PgStore)(nil)
)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (r *PgStore) Stores() Stores {
	return Stores{Providers: r, Schedules: r, Overrides: r, Bookings: r}
}

// Helpers

func pgTime(t timeutil.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Microseconds(), Valid: true}
}

func pgTimePtr(t *timeutil.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgTime(*t)
}

func fromPgTime(t pgtype.Time) *timeutil.TimeOfDay {
	if !t.Valid {
		return nil
	}
	v := timeutil.FromMicroseconds(t.Microseconds)
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func advisoryLock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}

func dayKey(kind string, providerID uuid.UUID, day string) string {
	return fmt.Sprintf("%s:%s:%s", kind, providerID, day)
}

// Providers

func (r *PgStore) ProviderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query provider: %w", err)
	}
	return exists, nil
}

func (r *PgStore) ProviderIsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT active FROM providers WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query provider: %w", err)
	}
	return active, nil
}

// UpsertProvider mirrors a directory record locally.
func (r *PgStore) UpsertProvider(ctx context.Context, p Provider) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, clinic_id, name, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET clinic_id = EXCLUDED.clinic_id,
		    name = EXCLUDED.name,
		    active = EXCLUDED.active,
		    updated_at = now()
	`, p.ID, p.ClinicID, p.Name, p.Active)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

// ListProviderIDs returns every active provider id.
func (r *PgStore) ListProviderIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM providers WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan providers: %w", err)
	}
	return ids, nil
}

// Event logging

func (r *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload)
		VALUES ($1, $2, $3)
	`, ev.EventType, ev.BookingID, ev.Payload)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
