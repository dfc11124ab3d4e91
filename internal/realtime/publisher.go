package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

// UserChannel is the pub/sub channel carrying a user's realtime events.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Envelope is the wire format on a user channel.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher pushes events onto per-user redis channels. Delivery is
// best-effort; subscribers that are offline simply miss the push and read the
// persisted notification instead.
type Publisher struct {
	rdb    *redis.Client
	logger *logging.Logger
}

// NewPublisher creates a redis-backed publisher.
func NewPublisher(rdb *redis.Client, logger *logging.Logger) *Publisher {
	if rdb == nil {
		panic("realtime: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{rdb: rdb, logger: logger}
}

// PublishToUser sends one event envelope to the user's channel.
func (p *Publisher) PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("realtime: marshal payload: %w", err)
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: body})
	if err != nil {
		return fmt.Errorf("realtime: marshal envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		return fmt.Errorf("realtime: publish: %w", err)
	}
	return nil
}
