package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Roles recognized by the booking core. Registration and profile management
// live outside this service; users are read-only here.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// ErrUserNotFound indicates the referenced identity does not exist.
var ErrUserNotFound = errors.New("identity: user not found")

// User is the slice of the identity record this core needs.
type User struct {
	ID    uuid.UUID
	Role  string
	Name  string
	Email string
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads user identities.
type Store struct {
	db rowQuerier
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithQuerier(q rowQuerier) *Store {
	return &Store{db: q}
}

// FindUser fetches a user by id.
func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, role, name, email FROM users WHERE id = $1`
	var u User
	if err := s.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Role, &u.Name, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("identity: select user: %w", err)
	}
	return &u, nil
}
