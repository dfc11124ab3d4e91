package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification categories. The category also keys the Related reference.
const (
	TypeAppointment  = "appointment"
	TypeRating       = "rating"
	TypePrescription = "prescription"
	TypePayment      = "payment"
	TypeSystem       = "system"
)

// Related is a tagged reference to the record a notification is about. The
// type discriminates which collection the id points into.
type Related struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// Notification is a persisted message for one recipient. This core only
// creates notifications; the read/unread endpoints live elsewhere and nothing
// ever deletes them.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Related   Related   `json:"related"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
