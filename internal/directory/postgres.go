package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads customer context from the business database.
type PostgresDirectory struct {
	pool Querier
}

func NewPostgresDirectory(pool Querier) *PostgresDirectory {
	if pool == nil {
		return nil
	}
	return &PostgresDirectory{pool: pool}
}

var _ Directory = (*PostgresDirectory)(nil)

func (d *PostgresDirectory) Lookup(ctx context.Context, phone string) (*CustomerRecord, error) {
	query := `
		SELECT c.phone, c.name, COALESCE(c.assigned_cleaner, '')
		FROM customers c
		WHERE c.phone = $1
		LIMIT 1
	`
	var rec CustomerRecord
	if err := d.pool.QueryRow(ctx, query, phone).Scan(&rec.Phone, &rec.Name, &rec.AssignedCleaner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("directory: lookup customer: %w", err)
	}
	consent, err := d.ConsentState(ctx, phone)
	if err != nil {
		return nil, err
	}
	rec.Consent = consent
	return &rec, nil
}

func (d *PostgresDirectory) UpcomingBooking(ctx context.Context, phone string) (*BookingSummary, error) {
	query := `
		SELECT b.scheduled_at, b.service, COALESCE(b.cleaner, ''), b.price_cents
		FROM bookings b
		WHERE b.customer_phone = $1 AND b.status = 'scheduled' AND b.scheduled_at > now()
		ORDER BY b.scheduled_at ASC
		LIMIT 1
	`
	return d.scanBooking(ctx, query, phone)
}

func (d *PostgresDirectory) LastCompletedBooking(ctx context.Context, phone string) (*BookingSummary, error) {
	query := `
		SELECT b.scheduled_at, b.service, COALESCE(b.cleaner, ''), b.price_cents
		FROM bookings b
		WHERE b.customer_phone = $1 AND b.status = 'completed'
		ORDER BY b.scheduled_at DESC
		LIMIT 1
	`
	return d.scanBooking(ctx, query, phone)
}

func (d *PostgresDirectory) scanBooking(ctx context.Context, query, phone string) (*BookingSummary, error) {
	var b BookingSummary
	var scheduledAt time.Time
	if err := d.pool.QueryRow(ctx, query, phone).Scan(&scheduledAt, &b.Service, &b.Cleaner, &b.PriceCents); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("directory: lookup booking: %w", err)
	}
	b.Date = scheduledAt
	return &b, nil
}

func (d *PostgresDirectory) ConsentState(ctx context.Context, phone string) (bool, error) {
	query := `SELECT 1 FROM opt_outs WHERE phone = $1 LIMIT 1`
	var exists int
	if err := d.pool.QueryRow(ctx, query, phone).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("directory: check consent: %w", err)
	}
	return false, nil
}

// SetConsent records the regulatory flag for every record type sharing the
// number. Opt-outs live in a single phone-keyed table, so customers and staff
// with the same number are covered by one row.
func (d *PostgresDirectory) SetConsent(ctx context.Context, phone string, consented bool) error {
	if consented {
		if _, err := d.pool.Exec(ctx, `DELETE FROM opt_outs WHERE phone = $1`, phone); err != nil {
			return fmt.Errorf("directory: clear opt-out: %w", err)
		}
		return nil
	}
	query := `
		INSERT INTO opt_outs (phone, source)
		VALUES ($1, 'sms')
		ON CONFLICT (phone) DO UPDATE SET updated_at = now()
	`
	if _, err := d.pool.Exec(ctx, query, phone); err != nil {
		return fmt.Errorf("directory: record opt-out: %w", err)
	}
	return nil
}
