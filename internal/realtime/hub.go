package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	httpmiddleware "github.com/clinicore/clinic-platform/internal/http/middleware"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Hub bridges per-user redis channels onto websocket connections. It is a
// thin transport shim: everything it forwards is also persisted as a
// Notification, so a dropped socket loses nothing durable.
type Hub struct {
	rdb      *redis.Client
	presence *Presence
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHub creates the websocket gateway.
func NewHub(rdb *redis.Client, presence *Presence, logger *logging.Logger) *Hub {
	if rdb == nil {
		panic("realtime: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		rdb:      rdb,
		presence: presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ServeWS handles GET /ws for an authenticated user: registers presence,
// subscribes the user's channel and streams envelopes until the socket
// closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	user, ok := httpmiddleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "user_id", user.UserID)
		return
	}

	ctx := r.Context()
	if h.presence != nil {
		if err := h.presence.Connect(ctx, user.UserID); err != nil {
			h.logger.Warn("presence register failed", "error", err, "user_id", user.UserID)
		}
	}
	sub := h.rdb.Subscribe(ctx, UserChannel(user.UserID))

	defer func() {
		sub.Close()
		conn.Close()
		if h.presence != nil {
			if err := h.presence.Disconnect(ctx, user.UserID); err != nil {
				h.logger.Warn("presence cleanup failed", "error", err, "user_id", user.UserID)
			}
		}
	}()

	done := make(chan struct{})
	go h.writePump(conn, sub, user, done)

	// Reader: the client sends nothing meaningful, but reads drive pong
	// handling and presence refresh.
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if h.presence != nil {
			if err := h.presence.Heartbeat(ctx, user.UserID); err != nil {
				h.logger.Warn("presence heartbeat failed", "error", err, "user_id", user.UserID)
			}
		}
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
}

func (h *Hub) writePump(conn *websocket.Conn, sub *redis.PubSub, user httpmiddleware.UserClaims, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Debug("websocket write failed", "error", err, "user_id", user.UserID)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
