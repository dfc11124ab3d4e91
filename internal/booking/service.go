package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/clinic-platform/internal/appointments"
	"github.com/clinicore/clinic-platform/internal/identity"
	"github.com/clinicore/clinic-platform/internal/observability/metrics"
	"github.com/clinicore/clinic-platform/internal/payments"
	"github.com/clinicore/clinic-platform/internal/schedule"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("clinicore.internal.booking")

// Validation failures, each a distinct user-correctable rule.
var (
	ErrInvalidDate     = errors.New("booking: date must be YYYY-MM-DD")
	ErrInvalidTime     = errors.New("booking: times must be 24-hour HH:MM")
	ErrInvalidInterval = errors.New("booking: start time must be before end time")
	ErrInvalidType     = errors.New("booking: type must be clinic, video or voice")
	ErrInvalidFee      = errors.New("booking: fee must be positive")
	ErrPastDate        = errors.New("booking: date is in the past")
	ErrPastTime        = errors.New("booking: start time has already passed")
	ErrDoctorNotFound  = errors.New("booking: doctor not found")
	ErrPatientNotFound = errors.New("booking: patient not found")
	ErrSlotUnavailable = errors.New("booking: slot is no longer available")
	ErrGateway         = errors.New("booking: payment gateway unavailable")
)

// userFinder resolves identities.
type userFinder interface {
	FindUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// slotLedger answers the optimistic availability check.
type slotLedger interface {
	IsFree(ctx context.Context, doctorID uuid.UUID, date string, startMin, endMin int16) (bool, error)
}

// intentCreator escrows the fee at the gateway.
type intentCreator interface {
	CreateIntent(ctx context.Context, params payments.IntentParams) (*payments.Intent, error)
}

// Request is a patient's booking submission.
type Request struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string
	StartTime string
	EndTime   string
	Type      string
	Fee       float64
	Symptoms  string
}

// Intent is what the caller needs to complete payment client-side. No
// appointment exists yet; commitment waits for the gateway webhook.
type Intent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
}

// Service validates booking requests and hands them to the payment gateway.
// It never creates durable state: an abandoned payment simply evaporates.
type Service struct {
	users    userFinder
	ledger   slotLedger
	gateway  intentCreator
	currency string
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewService constructs the booking service.
func NewService(users userFinder, ledger slotLedger, gateway intentCreator, currency string, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		users:    users,
		ledger:   ledger,
		gateway:  gateway,
		currency: currency,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock (for tests).
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateIntent runs the ordered precondition chain and, on success, creates a
// gateway payment intent carrying the full reservation tuple as metadata.
func (s *Service) CreateIntent(ctx context.Context, req Request) (*Intent, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create_intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.doctor_id", req.DoctorID.String()),
		attribute.String("booking.date", req.Date),
	)

	startMin, endMin, err := s.validateShape(req)
	if err != nil {
		s.metrics.ObserveIntent("invalid")
		return nil, err
	}
	if err := s.validateNotPast(req.Date, startMin); err != nil {
		s.metrics.ObserveIntent("invalid")
		return nil, err
	}

	doctor, err := s.users.FindUser(ctx, req.DoctorID)
	if err != nil || doctor.Role != identity.RoleDoctor {
		if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
			return nil, fmt.Errorf("booking: doctor lookup: %w", err)
		}
		s.metrics.ObserveIntent("invalid")
		return nil, ErrDoctorNotFound
	}
	if _, err := s.users.FindUser(ctx, req.PatientID); err != nil {
		if !errors.Is(err, identity.ErrUserNotFound) {
			return nil, fmt.Errorf("booking: patient lookup: %w", err)
		}
		s.metrics.ObserveIntent("invalid")
		return nil, ErrPatientNotFound
	}

	// Optimistic check: fail fast with a clear error. The authoritative check
	// happens again inside the webhook commit, because this answer can go
	// stale while the patient completes payment.
	free, err := s.ledger.IsFree(ctx, req.DoctorID, req.Date, startMin, endMin)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: availability check: %w", err)
	}
	if !free {
		s.metrics.ObserveIntent("conflict")
		return nil, ErrSlotUnavailable
	}

	reservation := payments.ReservationIntent{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Type:      req.Type,
		FeeCents:  int64(math.Round(req.Fee * 100)),
		Symptoms:  req.Symptoms,
	}
	intent, err := s.gateway.CreateIntent(ctx, payments.IntentParams{
		AmountCents: reservation.FeeCents,
		Currency:    s.currency,
		Description: fmt.Sprintf("%s consultation on %s %s", req.Type, req.Date, req.StartTime),
		Metadata:    reservation.Metadata(),
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveIntent("gateway_error")
		s.logger.Error("payment intent creation failed", "error", err,
			"doctor_id", req.DoctorID, "patient_id", req.PatientID)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	s.metrics.ObserveIntent("created")
	s.logger.Info("booking intent created",
		"intent_id", intent.ID, "doctor_id", req.DoctorID, "patient_id", req.PatientID,
		"date", req.Date, "start", req.StartTime, "end", req.EndTime,
		"amount_cents", reservation.FeeCents)
	return &Intent{IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (s *Service) validateShape(req Request) (int16, int16, error) {
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return 0, 0, ErrInvalidDate
	}
	startMin, err := schedule.ParseClock(req.StartTime)
	if err != nil {
		return 0, 0, ErrInvalidTime
	}
	endMin, err := schedule.ParseClock(req.EndTime)
	if err != nil {
		return 0, 0, ErrInvalidTime
	}
	if startMin >= endMin {
		return 0, 0, ErrInvalidInterval
	}
	if !appointments.ValidType(req.Type) {
		return 0, 0, ErrInvalidType
	}
	if req.Fee <= 0 {
		return 0, 0, ErrInvalidFee
	}
	return startMin, endMin, nil
}

// validateNotPast rejects dates strictly before today and, for today, any
// start time at or before the current wall-clock minute: a slot "now" is
// already past, not bookable.
func (s *Service) validateNotPast(date string, startMin int16) error {
	now := s.now()
	today := now.Format("2006-01-02")
	if date < today {
		return ErrPastDate
	}
	if date == today {
		nowMin := int16(now.Hour()*60 + now.Minute())
		if startMin <= nowMin {
			return ErrPastTime
		}
	}
	return nil
}
