package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/models"
)

// MockDashboard upgrades every request, sends hello, then whatever is pushed
type MockDashboard struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	connections []*websocket.Conn
	origins     []string
}

func NewMockDashboard() *MockDashboard {
	mock := &MockDashboard{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleWebSocket))
	return mock
}

func (m *MockDashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections = append(m.connections, conn)
	m.origins = append(m.origins, r.Header.Get("Origin"))
	m.mu.Unlock()

	hello, _ := models.NewMessage(models.MessageTypeHello, models.HelloMessage{Version: "v-test", Source: "csv:mock.csv"})
	conn.WriteJSON(hello)

	// Drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Push sends a message to every open connection
func (m *MockDashboard) Push(t *testing.T, msgType models.MessageType, payload interface{}) {
	t.Helper()
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.connections {
		conn.WriteJSON(msg)
	}
}

// DropAll closes every server side connection
func (m *MockDashboard) DropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.connections {
		conn.Close()
	}
	m.connections = nil
}

func (m *MockDashboard) URL() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

func (m *MockDashboard) Close() {
	m.DropAll()
	m.server.Close()
}

// recorder collects handled messages
type recorder struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (r *recorder) handle(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) types() []models.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MessageType, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func createTestConnection(url string, handler Handler) *Connection {
	config := ConnectionConfig{
		URL:                  url,
		Origin:               "http://localhost:8501",
		ReconnectInterval:    50 * time.Millisecond,
		MaxReconnectInterval: 200 * time.Millisecond,
		ReadTimeout:          5 * time.Second,
	}
	return NewConnection(config, handler, zerolog.Nop())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// runConnection starts Run and returns a func that stops it and returns its error
func runConnection(conn *Connection) func() error {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(3 * time.Second):
			return errors.New("Run did not return")
		}
	}
}

// Tests

func TestConnectionState_String(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{ConnectionState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewConnection_Defaults(t *testing.T) {
	c := NewConnection(ConnectionConfig{URL: "ws://localhost:8501/ws/updates"}, nil, zerolog.Nop())

	if c.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", c.State())
	}
	if c.reconnectInterval != time.Second {
		t.Errorf("reconnectInterval = %v, want 1s", c.reconnectInterval)
	}
	if c.maxReconnectInterval != 30*time.Second {
		t.Errorf("maxReconnectInterval = %v, want 30s", c.maxReconnectInterval)
	}
	if c.readTimeout != 90*time.Second {
		t.Errorf("readTimeout = %v, want 90s", c.readTimeout)
	}
}

func TestConnection_ReceivesHelloAndReload(t *testing.T) {
	mock := NewMockDashboard()
	defer mock.Close()

	rec := &recorder{}
	conn := createTestConnection(mock.URL(), rec.handle)
	stop := runConnection(conn)

	waitFor(t, "hello", func() bool { return len(rec.types()) == 1 })
	if !conn.IsConnected() {
		t.Error("IsConnected() = false after hello")
	}

	mock.Push(t, models.MessageTypeReload, models.ReloadMessage{Reason: "manual"})
	waitFor(t, "reload", func() bool { return len(rec.types()) == 2 })

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	got := rec.types()
	if got[0] != models.MessageTypeHello || got[1] != models.MessageTypeReload {
		t.Errorf("message types = %v, want [hello reload]", got)
	}

	stats := conn.Stats()
	if stats.ServerHello.Version != "v-test" {
		t.Errorf("ServerHello.Version = %q, want v-test", stats.ServerHello.Version)
	}
	if stats.Reloads != 1 || stats.LastReload != "manual" {
		t.Errorf("Reloads = %d (%q), want 1 (manual)", stats.Reloads, stats.LastReload)
	}
	if conn.State() != StateDisconnected {
		t.Errorf("State() = %v after stop, want disconnected", conn.State())
	}

	mock.mu.Lock()
	origin := mock.origins[0]
	mock.mu.Unlock()
	if origin != "http://localhost:8501" {
		t.Errorf("Origin = %q, want http://localhost:8501", origin)
	}
}

func TestConnection_Reconnects(t *testing.T) {
	mock := NewMockDashboard()
	defer mock.Close()

	rec := &recorder{}
	conn := createTestConnection(mock.URL(), rec.handle)
	stop := runConnection(conn)
	defer stop()

	waitFor(t, "first connect", func() bool { return conn.Stats().Connects == 1 })

	mock.DropAll()

	waitFor(t, "reconnect", func() bool { return conn.Stats().Connects == 2 })
	waitFor(t, "second hello", func() bool { return len(rec.types()) == 2 })
}

func TestConnection_DialFailureBacksOff(t *testing.T) {
	conn := createTestConnection("ws://127.0.0.1:1/ws/updates", nil)
	stop := runConnection(conn)

	waitFor(t, "dial failure", func() bool { return conn.Stats().LastDialFail != "" })
	time.Sleep(150 * time.Millisecond)

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if conn.currentReconnectInterval <= conn.reconnectInterval {
		t.Errorf("currentReconnectInterval = %v, want backoff above %v", conn.currentReconnectInterval, conn.reconnectInterval)
	}
	if conn.currentReconnectInterval > conn.maxReconnectInterval {
		t.Errorf("currentReconnectInterval = %v exceeds max %v", conn.currentReconnectInterval, conn.maxReconnectInterval)
	}
}

func TestConnection_HandlerOptional(t *testing.T) {
	mock := NewMockDashboard()
	defer mock.Close()

	conn := createTestConnection(mock.URL(), nil)
	stop := runConnection(conn)

	waitFor(t, "hello", func() bool { return conn.Stats().Messages == 1 })
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
