package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/models"
)

// Constants for WebSocket timeouts
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 8
)

// Hub manages WebSocket connections from open dashboards and pushes reload
// notices to them.
type Hub struct {
	upgrader       websocket.Upgrader
	hello          models.HelloMessage
	logger         zerolog.Logger
	allowedOrigins []string
	clients        map[*Subscriber]struct{}
	mutex          sync.RWMutex
}

// Subscriber represents an open dashboard connection
type Subscriber struct {
	Remote      string
	ConnectedAt time.Time
	conn        *websocket.Conn
	send        chan []byte
	closeOnce   sync.Once
}

// SubscriberInfo describes a connected dashboard
type SubscriberInfo struct {
	Remote      string    `json:"remote"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewHub creates a new WebSocket hub. Each subscriber receives hello right
// after connecting.
func NewHub(hello models.HelloMessage, logger zerolog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		hello:          hello,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		clients:        make(map[*Subscriber]struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the incoming request's Origin against the configured
// allowlist. Same-origin pages are always accepted.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}
	if sameHost(origin, r.Host) {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

func sameHost(origin, host string) bool {
	for _, scheme := range []string{"http://", "https://"} {
		if strings.TrimPrefix(origin, scheme) == host && strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket connection requests
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sub := &Subscriber{
		Remote:      conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
	}

	if msg, err := encode(models.MessageTypeHello, h.hello); err == nil {
		sub.send <- msg
	}

	h.mutex.Lock()
	h.clients[sub] = struct{}{}
	h.mutex.Unlock()

	h.logger.Info().Str("remote", sub.Remote).Msg("Dashboard subscribed")

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// readLoop keeps the connection alive and notices when the page goes away.
// Dashboards never send anything the server acts on.
func (h *Hub) readLoop(sub *Subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// writeLoop is the only writer of the connection
func (h *Hub) writeLoop(sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn().Err(err).Str("remote", sub.Remote).Msg("Failed to send message")
				return
			}

		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues a message for every subscriber and returns how many got
// it. Subscribers whose queue is full are dropped.
func (h *Hub) Broadcast(msgType models.MessageType, payload interface{}) int {
	msg, err := encode(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to create message")
		return 0
	}

	h.mutex.RLock()
	var slow []*Subscriber
	sent := 0
	for sub := range h.clients {
		select {
		case sub.send <- msg:
			sent++
		default:
			slow = append(slow, sub)
		}
	}
	h.mutex.RUnlock()

	for _, sub := range slow {
		h.logger.Warn().Str("remote", sub.Remote).Msg("Dropping slow dashboard")
		h.remove(sub)
	}

	h.logger.Debug().Str("type", string(msgType)).Int("subscribers", sent).Msg("Broadcast sent")
	return sent
}

// Subscribers returns the currently connected dashboards
func (h *Hub) Subscribers() []SubscriberInfo {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	subs := make([]SubscriberInfo, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, SubscriberInfo{Remote: sub.Remote, ConnectedAt: sub.ConnectedAt})
	}
	return subs
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mutex.RLock()
	subs := make([]*Subscriber, 0, len(h.clients))
	for sub := range h.clients {
		subs = append(subs, sub)
	}
	h.mutex.RUnlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

// remove unregisters sub and closes its queue, which ends its write loop
func (h *Hub) remove(sub *Subscriber) {
	h.mutex.Lock()
	_, exists := h.clients[sub]
	delete(h.clients, sub)
	h.mutex.Unlock()

	sub.closeOnce.Do(func() { close(sub.send) })
	if exists {
		h.logger.Info().Str("remote", sub.Remote).Msg("Dashboard disconnected")
	}
}

func encode(msgType models.MessageType, payload interface{}) ([]byte, error) {
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
