package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dinehall-order-engine/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

// Hub pushes kitchen events to connected display terminals, keyed by
// location. A display subscribes to its own location only.
type Hub struct {
	Logger    *zap.Logger
	JWTSecret string
	Heartbeat time.Duration

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger, jwtSecret string, heartbeat time.Duration) *Hub {
	return &Hub{
		Logger:    logger,
		JWTSecret: jwtSecret,
		Heartbeat: heartbeat,
		subs:      make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) subscribe(locationID string, c *client) (unsubscribe func()) {
	key := strings.TrimSpace(locationID)
	if key == "" {
		return func() {}
	}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*client]struct{})
	}
	h.subs[key][c] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		clients := h.subs[key]
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
}

type displayMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Broadcast fans a raw event payload out to every display at the location.
// A write failure drops that one connection's message; the reader loop
// notices the dead socket and cleans up.
func (h *Hub) Broadcast(locationID, eventType string, payload []byte) {
	h.mu.RLock()
	clientsMap := h.subs[strings.TrimSpace(locationID)]
	clients := make([]*client, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	msg := displayMessage{Type: eventType, Payload: payload}
	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			h.Logger.Debug("display write failed", zap.Error(err))
		}
	}
}

// HandleDisplay upgrades a kitchen display connection. The display
// authenticates with a staff token (query param, since browsers cannot set
// headers on websocket dials) and is pinned to the token's location.
func (h *Hub) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.ParseBearerToken(r.Header.Get("Authorization"))
	}
	claims, err := auth.VerifyAccessToken(token, h.JWTSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	unsubscribe := h.subscribe(claims.LocationID, c)
	defer func() {
		unsubscribe()
		_ = conn.Close()
	}()

	h.Logger.Info("kitchen display connected",
		zap.String("locationId", claims.LocationID),
		zap.String("staffId", claims.StaffID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Emit lets the hub stand in as the engine's event sink when no broker is
// configured (dev mode): events go straight to the connected displays.
func (h *Hub) Emit(_ context.Context, routingKey string, payload any) {
	body, err := json.Marshal(map[string]any{"event": routingKey, "data": payload})
	if err != nil {
		return
	}
	_ = h.BridgeDeliveries()(context.Background(), body)
}

// envelope is the broker message shape forwarded to displays. Location is
// read from the payload's locationId when present.
type envelope struct {
	Event string `json:"event"`
	Data  struct {
		LocationID int64 `json:"locationId"`
		Order      *struct {
			LocationID int64 `json:"locationId"`
		} `json:"order"`
	} `json:"data"`
}

// BridgeDeliveries forwards broker deliveries to the hub. Runs inside the
// queue consumer; a returned error would requeue, so undecodable payloads
// are dropped instead.
func (h *Hub) BridgeDeliveries() func(ctx context.Context, body []byte) error {
	return func(_ context.Context, body []byte) error {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			h.Logger.Warn("undecodable display event", zap.Error(err))
			return nil
		}
		locationID := env.Data.LocationID
		if env.Data.Order != nil && env.Data.Order.LocationID != 0 {
			locationID = env.Data.Order.LocationID
		}
		h.Broadcast(strconv.FormatInt(locationID, 10), env.Event, body)
		return nil
	}
}
