package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

var apptTracer = otel.Tracer("clinicore.internal.appointments")

// Refunder reverses a charge at the payment gateway.
type Refunder interface {
	Refund(ctx context.Context, intentID string) error
}

// RoomTokenSigner issues a short-lived access token scoped to a consultation
// room for one identity.
type RoomTokenSigner interface {
	Sign(appointmentID, userID uuid.UUID, roomID string) (string, error)
}

// Notifier fans out state-change notifications. Implementations are
// best-effort: they never fail the mutation that triggered them.
type Notifier interface {
	StatusChanged(ctx context.Context, appt *Appointment, newStatus string)
	IncomingCall(ctx context.Context, recipientID uuid.UUID, appt *Appointment)
}

// Service governs the appointment lifecycle after commit.
type Service struct {
	repo    *Repository
	gateway Refunder
	signer  RoomTokenSigner
	fanout  Notifier
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs the lifecycle service.
func NewService(repo *Repository, gateway Refunder, signer RoomTokenSigner, fanout Notifier, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		signer:  signer,
		fanout:  fanout,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock (for tests).
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// SetStatus applies a lifecycle transition requested by the doctor on the
// appointment. Cancellation runs refund-then-flag: the gateway refund is
// attempted first, and a gateway failure downgrades the payment state to
// refund_pending instead of blocking the cancellation.
func (s *Service) SetStatus(ctx context.Context, doctorID, apptID uuid.UUID, newStatus string) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointments.set_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointments.id", apptID.String()),
		attribute.String("appointments.new_status", newStatus),
	)

	if !ValidStatus(newStatus) {
		return nil, ErrInvalidStatus
	}

	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	if s.isStale(appt.Date) {
		return nil, ErrStale
	}
	if !CanTransition(appt.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, newStatus)
	}

	paymentStatus := appt.PaymentStatus
	if newStatus == StatusCancelled && appt.PaymentStatus == PaymentPaid {
		paymentStatus = PaymentRefunded
		if s.gateway == nil {
			paymentStatus = PaymentRefundPending
		} else if err := s.gateway.Refund(ctx, appt.PaymentID); err != nil {
			// Cancellation proceeds; the refund is retried out of band.
			s.logger.Error("refund failed during cancellation", "error", err,
				"appointment_id", apptID, "payment_id", appt.PaymentID)
			paymentStatus = PaymentRefundPending
		}
	}

	if err := s.repo.UpdateStatus(ctx, apptID, newStatus, paymentStatus); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = newStatus
	appt.PaymentStatus = paymentStatus

	if s.fanout != nil {
		s.fanout.StatusChanged(ctx, appt, newStatus)
	}
	s.logger.Info("appointment status updated",
		"appointment_id", apptID, "status", newStatus, "payment_status", paymentStatus)
	return appt, nil
}

// ConsultationSession is returned from a successful handoff.
type ConsultationSession struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// StartConsultation begins the live video/voice handoff. Either party may
// trigger it. The room token is signed before any field is persisted, so a
// signing failure leaves the appointment untouched.
func (s *Service) StartConsultation(ctx context.Context, userID, apptID uuid.UUID, callType string) (*ConsultationSession, error) {
	ctx, span := apptTracer.Start(ctx, "appointments.start_consultation")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointments.id", apptID.String()),
		attribute.String("appointments.call_type", callType),
	)

	if !IsRemote(callType) {
		return nil, ErrNotRemote
	}

	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if userID != appt.DoctorID && userID != appt.PatientID {
		return nil, ErrForbidden
	}
	if appt.Type != callType {
		return nil, ErrTypeMismatch
	}
	if appt.Status != StatusScheduled && appt.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: consultation from %s", ErrInvalidTransition, appt.Status)
	}

	roomID := appt.RoomID
	if roomID == "" {
		roomID = newRoomID(appt.ID)
	}

	if s.signer == nil {
		return nil, ErrSigningUnavailable
	}
	token, err := s.signer.Sign(apptID, userID, roomID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}

	status := appt.Status
	if status == StatusScheduled {
		status = StatusInProgress
	}
	startedAt := s.now()
	if err := s.repo.UpdateCall(ctx, apptID, status, roomID, CallRinging, startedAt); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = status
	appt.RoomID = roomID
	appt.CallStatus = CallRinging
	appt.CallStartedAt = &startedAt

	if s.fanout != nil {
		recipient := appt.PatientID
		if userID == appt.PatientID {
			recipient = appt.DoctorID
		}
		s.fanout.IncomingCall(ctx, recipient, appt)
	}
	s.logger.Info("consultation started",
		"appointment_id", apptID, "room_id", roomID, "type", callType, "by", userID)

	return &ConsultationSession{
		RoomID: roomID,
		Token:  token,
		Type:   appt.Type,
		Status: status,
	}, nil
}

// GetForParty loads an appointment and authorizes the requester as one of its
// parties. Used by the payment-status polling endpoint.
func (s *Service) GetForParty(ctx context.Context, userID, apptID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if userID != appt.DoctorID && userID != appt.PatientID {
		return nil, ErrForbidden
	}
	return appt, nil
}

// isStale reports whether the appointment date is more than one calendar day
// before today, after which the record is immutable.
func (s *Service) isStale(date string) bool {
	apptDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return true
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return apptDate.Before(today.AddDate(0, 0, -1))
}
