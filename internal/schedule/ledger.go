package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Ledger answers slot availability against committed appointments only.
// An appointment occupies its slot iff it is paid and still scheduled or
// in progress; cancelled and unpaid rows never count.
type Ledger struct {
	db querier
}

// NewLedger creates a ledger backed by a pgx pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &Ledger{db: pool}
}

func newLedgerWithQuerier(q querier) *Ledger {
	return &Ledger{db: q}
}

// IsFree reports whether [startMin, endMin) on the given date is open for the
// doctor. Overlap is half-open: back-to-back slots do not conflict.
func (l *Ledger) IsFree(ctx context.Context, doctorID uuid.UUID, date string, startMin, endMin int16) (bool, error) {
	query := `
		SELECT 1
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND payment_status = 'paid'
		  AND status IN ('scheduled', 'in_progress')
		  AND start_min < $4
		  AND end_min > $3
		LIMIT 1
	`
	var one int
	if err := l.db.QueryRow(ctx, query, doctorID, date, startMin, endMin).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("schedule: availability check: %w", err)
	}
	return false, nil
}

// BookedIntervals returns the doctor's occupied windows for a date, ordered by
// start time. Clients render availability from the complement.
func (l *Ledger) BookedIntervals(ctx context.Context, doctorID uuid.UUID, date string) ([]Interval, error) {
	query := `
		SELECT start_min, end_min
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND payment_status = 'paid'
		  AND status IN ('scheduled', 'in_progress')
		ORDER BY start_min
	`
	rows, err := l.db.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("schedule: list booked: %w", err)
	}
	defer rows.Close()

	var intervals []Interval
	for rows.Next() {
		var startMin, endMin int16
		if err := rows.Scan(&startMin, &endMin); err != nil {
			return nil, fmt.Errorf("schedule: scan booked: %w", err)
		}
		intervals = append(intervals, Interval{
			Start: FormatClock(startMin),
			End:   FormatClock(endMin),
		})
	}
	return intervals, rows.Err()
}
