package appointments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-platform/internal/schedule"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists committed appointments.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	return &Repository{db: q}
}

// CommitParams carries the reservation tuple recovered from gateway metadata
// into the atomic commit.
type CommitParams struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	Date            string
	StartTime       string
	EndTime         string
	Type            string
	FeeCents        int64
	Symptoms        string
	PaymentIntentID string
}

const selectColumns = `
	id, doctor_id, patient_id, appointment_date, start_min, end_min, type,
	fee_cents, symptoms, status, payment_status, payment_id,
	COALESCE(room_id, ''), COALESCE(call_status, ''), call_started_at,
	has_prescription, is_rated, created_at, updated_at
`

// CommitPaid turns a confirmed payment into a stored appointment. The insert
// is the authoritative race arbiter: the appointments table carries an
// exclusion constraint over (doctor, date, minute range) restricted to paid,
// active rows, so whichever commit reaches storage first wins and the loser
// surfaces as ErrSlotTaken. A replayed webhook finds its row via the unique
// payment_id and returns it with created=false.
func (r *Repository) CommitPaid(ctx context.Context, p CommitParams) (*Appointment, bool, error) {
	if existing, err := r.GetByPaymentID(ctx, p.PaymentIntentID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	startMin, err := schedule.ParseClock(p.StartTime)
	if err != nil {
		return nil, false, fmt.Errorf("appointments: commit start time: %w", err)
	}
	endMin, err := schedule.ParseClock(p.EndTime)
	if err != nil {
		return nil, false, fmt.Errorf("appointments: commit end time: %w", err)
	}

	appt := &Appointment{
		ID:            uuid.New(),
		DoctorID:      p.DoctorID,
		PatientID:     p.PatientID,
		Date:          p.Date,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		Type:          p.Type,
		FeeCents:      p.FeeCents,
		Symptoms:      p.Symptoms,
		Status:        StatusScheduled,
		PaymentStatus: PaymentPaid,
		PaymentID:     p.PaymentIntentID,
	}
	if IsRemote(p.Type) {
		appt.RoomID = newRoomID(appt.ID)
	}

	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, appointment_date, start_min, end_min,
			type, fee_cents, symptoms, status, payment_status, payment_id, room_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		appt.ID, appt.DoctorID, appt.PatientID, appt.Date, startMin, endMin,
		appt.Type, appt.FeeCents, appt.Symptoms, appt.Status, appt.PaymentStatus,
		appt.PaymentID, appt.RoomID,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23P01": // exclusion constraint: another paid appointment holds the slot
				return nil, false, ErrSlotTaken
			case "23505": // unique payment_id: a concurrent replay committed first
				existing, getErr := r.GetByPaymentID(ctx, p.PaymentIntentID)
				if getErr != nil {
					return nil, false, fmt.Errorf("appointments: commit replay lookup: %w", getErr)
				}
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("appointments: commit insert: %w", err)
	}
	return appt, true, nil
}

// GetByID fetches an appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByPaymentID fetches an appointment by its gateway intent reference.
func (r *Repository) GetByPaymentID(ctx context.Context, paymentID string) (*Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE payment_id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, paymentID))
}

// UpdateStatus writes a lifecycle transition together with the payment flag
// the transition implies.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status, paymentStatus string) error {
	query := `
		UPDATE appointments
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, status, paymentStatus)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCall persists the consultation handoff fields in one write.
func (r *Repository) UpdateCall(ctx context.Context, id uuid.UUID, status, roomID, callStatus string, callStartedAt time.Time) error {
	query := `
		UPDATE appointments
		SET status = $2, room_id = $3, call_status = $4, call_started_at = $5, updated_at = now()
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, id, status, roomID, callStatus, callStartedAt)
	if err != nil {
		return fmt.Errorf("appointments: update call: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var startMin, endMin int16
	if err := row.Scan(
		&a.ID, &a.DoctorID, &a.PatientID, &date, &startMin, &endMin, &a.Type,
		&a.FeeCents, &a.Symptoms, &a.Status, &a.PaymentStatus, &a.PaymentID,
		&a.RoomID, &a.CallStatus, &a.CallStartedAt,
		&a.HasPrescription, &a.IsRated, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: scan: %w", err)
	}
	a.Date = date.Format("2006-01-02")
	a.StartTime = schedule.FormatClock(startMin)
	a.EndTime = schedule.FormatClock(endMin)
	return &a, nil
}

// newRoomID builds an opaque room token from the appointment id and a
// timestamp. Uniqueness is the only hard requirement.
func newRoomID(apptID uuid.UUID) string {
	return apptID.String() + "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}
