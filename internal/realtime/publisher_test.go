package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPublishToUserEnvelope(t *testing.T) {
	rdb := newTestRedis(t)
	defer rdb.Close()

	userID := uuid.New()
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, UserChannel(userID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	p := NewPublisher(rdb, logging.Default())
	payload := map[string]string{"appointment_id": "abc", "room_id": "room-1"}
	if err := p.PublishToUser(ctx, userID, "incoming-call", payload); err != nil {
		t.Fatalf("PublishToUser returned error: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			t.Fatalf("failed to decode envelope: %v", err)
		}
		if env.Event != "incoming-call" {
			t.Fatalf("unexpected event: %s", env.Event)
		}
		var got map[string]string
		if err := json.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if got["room_id"] != "room-1" {
			t.Fatalf("unexpected payload: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestPublishToUserRejectsUnmarshalablePayload(t *testing.T) {
	rdb := newTestRedis(t)
	defer rdb.Close()

	p := NewPublisher(rdb, logging.Default())
	if err := p.PublishToUser(context.Background(), uuid.New(), "event", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestUserChannelNaming(t *testing.T) {
	id := uuid.New()
	if got, want := UserChannel(id), "user:"+id.String(); got != want {
		t.Fatalf("UserChannel = %q, want %q", got, want)
	}
}
