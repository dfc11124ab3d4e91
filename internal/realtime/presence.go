package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Presence tracks which users currently hold a realtime connection. State
// lives in redis under TTL keys, so it is bounded, shared across instances
// and survives process restarts; a crashed instance's sessions expire on
// their own.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresence creates a presence registry with the given session TTL.
func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if rdb == nil {
		panic("realtime: redis client required")
	}
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string {
	return "presence:" + userID.String()
}

// Connect marks the user online.
func (p *Presence) Connect(ctx context.Context, userID uuid.UUID) error {
	if err := p.rdb.Set(ctx, presenceKey(userID), time.Now().UTC().Format(time.RFC3339), p.ttl).Err(); err != nil {
		return fmt.Errorf("realtime: presence connect: %w", err)
	}
	return nil
}

// Heartbeat extends the user's session.
func (p *Presence) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := p.rdb.Expire(ctx, presenceKey(userID), p.ttl).Err(); err != nil {
		return fmt.Errorf("realtime: presence heartbeat: %w", err)
	}
	return nil
}

// Disconnect removes the user's session immediately.
func (p *Presence) Disconnect(ctx context.Context, userID uuid.UUID) error {
	if err := p.rdb.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("realtime: presence disconnect: %w", err)
	}
	return nil
}

// IsOnline reports whether the user holds a live session.
func (p *Presence) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := p.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("realtime: presence check: %w", err)
	}
	return n > 0, nil
}
