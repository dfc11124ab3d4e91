package rooms

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSecret indicates the signing secret is not configured. Callers treat
// this as fatal: no consultation may start without a signable token.
var ErrNoSecret = errors.New("rooms: signing secret not configured")

// Signer issues short-lived HMAC-signed access tokens scoped to one
// consultation room for one identity.
type Signer struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. TTL defaults to one hour.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// WithNow overrides the clock (for tests).
func (s *Signer) WithNow(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// Sign produces a room access token for the given identity.
func (s *Signer) Sign(appointmentID, userID uuid.UUID, roomID string) (string, error) {
	if s.secret == "" {
		return "", ErrNoSecret
	}
	issued := s.now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"room": roomID,
		"appt": appointmentID.String(),
		"iat":  issued.Unix(),
		"exp":  issued.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("rooms: sign token: %w", err)
	}
	return token, nil
}
