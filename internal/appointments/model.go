package appointments

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle states. Completed and Cancelled are terminal.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Payment states. Rows only exist once payment reached paid; refund_pending
// marks a cancellation whose gateway refund has not succeeded yet.
const (
	PaymentPending       = "pending"
	PaymentPaid          = "paid"
	PaymentRefunded      = "refunded"
	PaymentRefundPending = "refund_pending"
)

// Consultation types.
const (
	TypeClinic = "clinic"
	TypeVideo  = "video"
	TypeVoice  = "voice"
)

// CallRinging is the call status set when a consultation handoff starts.
const CallRinging = "ringing"

var (
	ErrNotFound           = errors.New("appointments: not found")
	ErrForbidden          = errors.New("appointments: requester is not a party on this appointment")
	ErrSlotTaken          = errors.New("appointments: slot already committed")
	ErrInvalidStatus      = errors.New("appointments: unknown status")
	ErrInvalidTransition  = errors.New("appointments: transition not permitted")
	ErrStale              = errors.New("appointments: appointment date too far in the past to modify")
	ErrTypeMismatch       = errors.New("appointments: consultation type does not match appointment")
	ErrNotRemote          = errors.New("appointments: consultation handoff requires a video or voice appointment")
	ErrSigningUnavailable = errors.New("appointments: room token signing unavailable")
)

// Appointment is a committed, paid booking. No pending appointments exist in
// storage; commitment happens atomically in the webhook reconciler.
type Appointment struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Date          string     `json:"appointment_date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	Type          string     `json:"type"`
	FeeCents      int64      `json:"fee_cents"`
	Symptoms      string     `json:"symptoms,omitempty"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	PaymentID     string     `json:"payment_id,omitempty"`
	RoomID        string     `json:"room_id,omitempty"`
	CallStatus    string     `json:"call_status,omitempty"`
	CallStartedAt *time.Time `json:"call_started_at,omitempty"`

	// Written by the prescription and rating services, read-only here.
	HasPrescription bool `json:"has_prescription"`
	IsRated         bool `json:"is_rated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidType reports whether t is a known consultation type.
func ValidType(t string) bool {
	switch t {
	case TypeClinic, TypeVideo, TypeVoice:
		return true
	}
	return false
}

// IsRemote reports whether the type supports a live consultation handoff.
func IsRemote(t string) bool {
	return t == TypeVideo || t == TypeVoice
}

var transitions = map[string][]string{
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from → to is a legal lifecycle move.
// Terminal states have no outgoing transitions, so replaying a terminal
// transition is an explicit error rather than a silent success.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
