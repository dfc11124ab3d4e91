package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-platform/internal/appointments"
	"github.com/clinicore/clinic-platform/internal/identity"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

// Events pushed on a recipient's realtime channel.
const (
	EventNewNotification = "new-notification"
	EventIncomingCall    = "incoming-call"
)

// Publisher pushes an event onto a user's realtime channel.
type Publisher interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload any) error
}

// UserFinder resolves recipient identities for email delivery.
type UserFinder interface {
	FindUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// Fanout persists one Notification per affected recipient and pushes it on
// the recipient's realtime channel. Persistence is durable; the push and the
// email are best-effort and never fail the mutation that triggered them.
type Fanout struct {
	repo   *Repository
	rt     Publisher
	email  EmailSender
	users  UserFinder
	logger *logging.Logger
}

// NewFanout constructs the fanout service. Realtime, email and user lookup
// are all optional.
func NewFanout(repo *Repository, rt Publisher, email EmailSender, users UserFinder, logger *logging.Logger) *Fanout {
	if repo == nil {
		panic("notifications: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Fanout{repo: repo, rt: rt, email: email, users: users, logger: logger}
}

// AppointmentBooked announces a committed appointment to both parties and
// emails the patient a confirmation.
func (f *Fanout) AppointmentBooked(ctx context.Context, appt *appointments.Appointment) {
	when := fmt.Sprintf("%s %s-%s", appt.Date, appt.StartTime, appt.EndTime)
	related := Related{Type: TypeAppointment, ID: appt.ID}

	f.deliver(ctx, &Notification{
		UserID:  appt.DoctorID,
		Title:   "New appointment booked",
		Message: fmt.Sprintf("A %s appointment was booked for %s.", appt.Type, when),
		Type:    TypeAppointment,
		Related: related,
	})
	f.deliver(ctx, &Notification{
		UserID:  appt.PatientID,
		Title:   "Appointment confirmed",
		Message: fmt.Sprintf("Your %s appointment on %s is confirmed.", appt.Type, when),
		Type:    TypeAppointment,
		Related: related,
	})

	f.emailPatient(ctx, appt, "Appointment confirmed",
		fmt.Sprintf("Your %s appointment on %s is confirmed. Payment received.", appt.Type, when))
}

// StatusChanged notifies the patient about a lifecycle transition.
func (f *Fanout) StatusChanged(ctx context.Context, appt *appointments.Appointment, newStatus string) {
	n := &Notification{
		UserID:  appt.PatientID,
		Title:   "Appointment updated",
		Message: fmt.Sprintf("Your appointment on %s is now %s.", appt.Date, newStatus),
		Type:    TypeAppointment,
		Related: Related{Type: TypeAppointment, ID: appt.ID},
	}
	if newStatus == appointments.StatusCancelled {
		n.Title = "Appointment cancelled"
		n.Message = fmt.Sprintf("Your appointment on %s was cancelled and your payment will be refunded.", appt.Date)
		n.Type = TypePayment
		n.Related = Related{Type: TypePayment, ID: appt.ID}
	}
	f.deliver(ctx, n)
}

type callPayload struct {
	AppointmentID string `json:"appointment_id"`
	RoomID        string `json:"room_id"`
	Type          string `json:"type"`
}

// IncomingCall persists a call notification for the other party and pushes
// the incoming-call event on their channel.
func (f *Fanout) IncomingCall(ctx context.Context, recipientID uuid.UUID, appt *appointments.Appointment) {
	n := &Notification{
		UserID:  recipientID,
		Title:   "Incoming call",
		Message: fmt.Sprintf("Your %s consultation is starting.", appt.Type),
		Type:    TypeAppointment,
		Related: Related{Type: TypeAppointment, ID: appt.ID},
	}
	if err := f.repo.Create(ctx, n); err != nil {
		f.logger.Error("failed to persist call notification", "error", err, "user_id", recipientID)
	}
	if f.rt == nil {
		return
	}
	if err := f.rt.PublishToUser(ctx, recipientID, EventIncomingCall, callPayload{
		AppointmentID: appt.ID.String(),
		RoomID:        appt.RoomID,
		Type:          appt.Type,
	}); err != nil {
		f.logger.Warn("incoming-call push failed", "error", err, "user_id", recipientID)
	}
}

// deliver saves the record, then pushes it. A push failure is logged only;
// the saved record is the durable source of truth.
func (f *Fanout) deliver(ctx context.Context, n *Notification) {
	if err := f.repo.Create(ctx, n); err != nil {
		f.logger.Error("failed to persist notification", "error", err, "user_id", n.UserID, "title", n.Title)
		return
	}
	if f.rt == nil {
		return
	}
	if err := f.rt.PublishToUser(ctx, n.UserID, EventNewNotification, n); err != nil {
		f.logger.Warn("notification push failed", "error", err, "user_id", n.UserID)
	}
}

func (f *Fanout) emailPatient(ctx context.Context, appt *appointments.Appointment, subject, body string) {
	if f.email == nil || f.users == nil {
		return
	}
	patient, err := f.users.FindUser(ctx, appt.PatientID)
	if err != nil || patient.Email == "" {
		return
	}
	if err := f.email.Send(ctx, EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: subject,
		Body:    body,
	}); err != nil {
		f.logger.Warn("confirmation email failed", "error", err, "user_id", appt.PatientID)
	}
}
