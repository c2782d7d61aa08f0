package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

const bookingColumns = `id, clinic_id, provider_id, service_id, patient_name, patient_email, patient_phone,
	date, start_time, duration_minutes, status, payment_status, amount::text, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var email, phone *string
	var start pgtype.Time
	var amount string

	err := row.Scan(
		&b.ID,
		&b.ClinicID,
		&b.ProviderID,
		&b.ServiceID,
		&b.Patient.Name,
		&email,
		&phone,
		&b.Date,
		&start,
		&b.DurationMinutes,
		&b.Status,
		&b.PaymentStatus,
		&amount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if email != nil {
		b.Patient.Email = *email
	}
	if phone != nil {
		b.Patient.Phone = *phone
	}
	b.Date = timeutil.DateOf(b.Date)
	b.StartTime = timeutil.FromMicroseconds(start.Microseconds)
	b.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func listOccupying(ctx context.Context, q querier, providerID uuid.UUID, date time.Time) ([]Booking, error) {
	rows, err := q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		  AND date = $2
		  AND status IN ('pending', 'confirmed', 'completed')
		ORDER BY start_time
	`, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("query occupying bookings: %w", err)
	}
	return collectBookings(rows)
}

// conflictFromPg turns a bookings_no_overlap violation into a time conflict.
// The constraint only fires when two writers bypassed the advisory lock.
func conflictFromPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return &ConflictError{Kind: ConflictTime}
	}
	return err
}

func lockBookingDay(ctx context.Context, tx pgx.Tx, providerID uuid.UUID, date time.Time) error {
	return advisoryLock(ctx, tx, dayKey("booking", providerID, timeutil.FormatDate(date)))
}

func (r *PgStore) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgStore) ListOccupying(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Booking, error) {
	return listOccupying(ctx, r.pool, providerID, date)
}

func (r *PgStore) Reserve(ctx context.Context, b *Booking, verify func(occupying []Booking) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBookingDay(ctx, tx, b.ProviderID, b.Date); err != nil {
			return err
		}
		occupying, err := listOccupying(ctx, tx, b.ProviderID, b.Date)
		if err != nil {
			return err
		}
		if err := verify(occupying); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO bookings (
				id, clinic_id, provider_id, service_id, patient_name, patient_email, patient_phone,
				date, start_time, duration_minutes, status, payment_status, amount, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14, $15)
			RETURNING `+bookingColumns,
			b.ID, b.ClinicID, b.ProviderID, b.ServiceID,
			b.Patient.Name, nullString(b.Patient.Email), nullString(b.Patient.Phone),
			b.Date, pgTime(b.StartTime), b.DurationMinutes,
			string(b.Status), string(b.PaymentStatus), b.Amount.String(),
			b.CreatedAt, b.UpdatedAt,
		)
		created, err := scanBooking(row)
		if err != nil {
			return fmt.Errorf("insert booking: %w", conflictFromPg(err))
		}
		*b = *created
		return nil
	})
}

func (r *PgStore) Move(ctx context.Context, id uuid.UUID, date time.Time, start timeutil.TimeOfDay, durationMinutes int,
	verify func(current Booking, occupying []Booking) error) (*Booking, error) {
	var moved *Booking

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanBooking(tx.QueryRow(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			return err
		}

		if err := lockBookingDay(ctx, tx, current.ProviderID, date); err != nil {
			return err
		}
		occupying, err := listOccupying(ctx, tx, current.ProviderID, date)
		if err != nil {
			return err
		}
		if err := verify(*current, occupying); err != nil {
			return err
		}

		moved, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings
			SET date = $2, start_time = $3, duration_minutes = $4, updated_at = now()
			WHERE id = $1
			RETURNING `+bookingColumns,
			id, date, pgTime(start), durationMinutes,
		))
		if err != nil {
			return fmt.Errorf("move booking: %w", conflictFromPg(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// casMiss tells a lost compare-and-set apart from a missing booking.
func (r *PgStore) casMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("query booking: %w", err)
	}
	if !exists {
		return ErrBookingNotFound
	}
	return errStatusChanged
}

func (r *PgStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+bookingColumns,
		id, string(to), string(from),
	)
	b, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, r.casMiss(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	return b, nil
}

func (r *PgStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET payment_status = $2, updated_at = now()
		WHERE id = $1 AND payment_status = $3
		RETURNING `+bookingColumns,
		id, string(to), string(from),
	)
	b, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, r.casMiss(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	return b, nil
}

func (r *PgStore) ListActiveUntil(ctx context.Context, date time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status IN ('pending', 'confirmed')
		  AND date <= $1
		ORDER BY date, start_time
	`, date)
	if err != nil {
		return nil, fmt.Errorf("query active bookings: %w", err)
	}
	return collectBookings(rows)
}

// CountOverlaps returns how many pairs of occupying bookings of the same
// provider overlap. Anything but zero means the ledger is corrupt.
func (r *PgStore) CountOverlaps(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings a
		JOIN bookings b
		  ON a.provider_id = b.provider_id
		 AND a.date = b.date
		 AND a.id < b.id
		WHERE a.status IN ('pending', 'confirmed', 'completed')
		  AND b.status IN ('pending', 'confirmed', 'completed')
		  AND tsrange(a.date + a.start_time, a.date + a.start_time + make_interval(mins => a.duration_minutes), '[)')
		   && tsrange(b.date + b.start_time, b.date + b.start_time + make_interval(mins => b.duration_minutes), '[)')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overlapping bookings: %w", err)
	}
	return n, nil
}
