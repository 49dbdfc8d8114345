// Package client follows the reload notifications of a running dashboard.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/solardash/internal/models"
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Handler receives every message the dashboard pushes
type Handler func(msg models.Message)

// Connection subscribes to /ws/updates and reconnects with exponential
// backoff when the server goes away.
type Connection struct {
	URL    string
	Origin string

	conn       *websocket.Conn
	state      ConnectionState
	stateMutex sync.RWMutex
	logger     zerolog.Logger
	handler    Handler

	reconnectInterval        time.Duration
	maxReconnectInterval     time.Duration
	currentReconnectInterval time.Duration
	readTimeout              time.Duration

	statsMutex sync.RWMutex
	stats      Stats
}

// ConnectionConfig holds configuration for the connection
type ConnectionConfig struct {
	URL                  string
	Origin               string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	// ReadTimeout must exceed the server's ping period
	ReadTimeout time.Duration
}

// Stats tracks what the connection has seen
type Stats struct {
	Connects     int                 `json:"connects"`
	Messages     int                 `json:"messages"`
	Reloads      int                 `json:"reloads"`
	LastMessage  time.Time           `json:"last_message,omitempty"`
	LastReload   string              `json:"last_reload,omitempty"`
	ServerHello  models.HelloMessage `json:"server_hello"`
	LastDialFail string              `json:"last_dial_fail,omitempty"`
}

// NewConnection creates a new connection manager. handler may be nil.
func NewConnection(config ConnectionConfig, handler Handler, logger zerolog.Logger) *Connection {
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = time.Second
	}
	if config.MaxReconnectInterval < config.ReconnectInterval {
		config.MaxReconnectInterval = 30 * time.Second
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 90 * time.Second
	}

	return &Connection{
		URL:                      config.URL,
		Origin:                   config.Origin,
		state:                    StateDisconnected,
		logger:                   logger,
		handler:                  handler,
		reconnectInterval:        config.ReconnectInterval,
		maxReconnectInterval:     config.MaxReconnectInterval,
		currentReconnectInterval: config.ReconnectInterval,
		readTimeout:              config.ReadTimeout,
	}
}

// setState safely updates the connection state
func (c *Connection) setState(state ConnectionState) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	c.state = state
	c.logger.Debug().Str("state", state.String()).Msg("Connection state updated")
}

// State returns the current connection state
func (c *Connection) State() ConnectionState {
	c.stateMutex.RLock()
	defer c.stateMutex.RUnlock()
	return c.state
}

// IsConnected returns true if currently connected
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Stats returns a snapshot of the connection statistics
func (c *Connection) Stats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// Connect dials the dashboard once
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	c.logger.Info().Str("url", c.URL).Msg("Connecting to dashboard...")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	if c.Origin != "" {
		header.Set("Origin", c.Origin)
	}

	conn, resp, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		c.setState(StateDisconnected)
		c.statsMutex.Lock()
		c.stats.LastDialFail = err.Error()
		c.statsMutex.Unlock()
		return fmt.Errorf("dial failed: %w", err)
	}
	resp.Body.Close()

	c.stateMutex.Lock()
	c.conn = conn
	c.stateMutex.Unlock()
	c.setState(StateConnected)
	c.currentReconnectInterval = c.reconnectInterval // reset backoff

	c.statsMutex.Lock()
	c.stats.Connects++
	c.statsMutex.Unlock()

	c.logger.Info().Msg("Connected to dashboard")
	return nil
}

// Run follows the dashboard with auto-reconnect.
// Blocks until context is cancelled
func (c *Connection) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Connection failed")
			c.waitBeforeReconnect(ctx)
			continue
		}

		c.readLoop(ctx)

		if ctx.Err() == nil {
			c.logger.Info().Msg("Connection lost, will reconnect")
			c.waitBeforeReconnect(ctx)
		}
	}
}

// waitBeforeReconnect waits before next reconnection attempt with exponential backoff
func (c *Connection) waitBeforeReconnect(ctx context.Context) {
	c.logger.Info().Dur("delay", c.currentReconnectInterval).Msg("Waiting before reconnect")
	select {
	case <-time.After(c.currentReconnectInterval):
	case <-ctx.Done():
		return
	}
	c.currentReconnectInterval *= 2
	if c.currentReconnectInterval > c.maxReconnectInterval {
		c.currentReconnectInterval = c.maxReconnectInterval
	}
}

// readLoop reads messages until the connection fails or ctx is cancelled
func (c *Connection) readLoop(ctx context.Context) {
	c.logger.Debug().Msg("Starting read loop")
	defer c.logger.Debug().Msg("Read loop stopped")

	conn := c.conn
	done := make(chan struct{})
	defer close(done)

	// Unblock ReadJSON on cancellation
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-done:
		}
	}()
	defer c.disconnect()

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		var msg models.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("Read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		c.handleMessage(msg)
	}
}

// handleMessage records a message and passes it to the handler
func (c *Connection) handleMessage(msg models.Message) {
	c.logger.Debug().Str("type", string(msg.Type)).Msg("Received message")

	c.statsMutex.Lock()
	c.stats.Messages++
	c.stats.LastMessage = time.Now()
	switch msg.Type {
	case models.MessageTypeHello:
		var hello models.HelloMessage
		if err := msg.UnmarshalPayload(&hello); err == nil {
			c.stats.ServerHello = hello
		}
	case models.MessageTypeReload:
		var reload models.ReloadMessage
		if err := msg.UnmarshalPayload(&reload); err == nil {
			c.stats.Reloads++
			c.stats.LastReload = reload.Reason
		}
	case models.MessageTypeError:
		var errMsg models.ErrorMessage
		if err := msg.UnmarshalPayload(&errMsg); err == nil {
			c.logger.Warn().Str("code", errMsg.Code).Str("msg", errMsg.Message).Msg("Dashboard error")
		}
	default:
		c.logger.Debug().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
	c.statsMutex.Unlock()

	if c.handler != nil {
		c.handler(msg)
	}
}

// disconnect closes the WebSocket connection
func (c *Connection) disconnect() {
	c.stateMutex.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.stateMutex.Unlock()
	c.logger.Info().Msg("Connection disconnected")
}
