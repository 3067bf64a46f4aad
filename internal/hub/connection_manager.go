// Package hub is the authoritative side of the system: it provisions the
// shared-state buckets, publishes the clock beacon, sweeps stale presence
// records, and fans show-state changes out to browser displays over
// websockets.
package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages websocket connections from browser displays.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan *Event

	// Hooks armed per connection; the service uses them to create and
	// flip presence records. OnDisconnect is the server-side disconnect
	// hook of the presence design.
	OnConnect    func(sessionID string)
	OnDisconnect func(sessionID string)
}

// Connection is one display's websocket session.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns defaults suitable for LAN displays.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Displays live on the venue LAN; origin checks add nothing.
			return true
		},
	}
}

// NewConnectionManager creates a manager with the given tuning.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *Event, 256),
	}
}

// Start processes broadcasts until the context is done.
func (cm *ConnectionManager) Start(done <-chan struct{}) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-done:
			log.Info().Msg("connection manager shutting down")
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// Upgrade upgrades an HTTP request to a display websocket session.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	conn := &Connection{
		ID:          uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, 64),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
	cm.register(conn)

	go conn.writePump()
	go conn.readPump()

	log.Info().Str("connection_id", conn.ID).Msg("display connected")
	return conn, nil
}

func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn] = true
	total := len(cm.connections)
	cm.mu.Unlock()

	if cm.OnConnect != nil {
		cm.OnConnect(conn.ID)
	}
	log.Debug().Str("connection_id", conn.ID).Int("total", total).Msg("connection registered")
}

func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	if exists {
		delete(cm.connections, conn)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if exists {
		if cm.OnDisconnect != nil {
			cm.OnDisconnect(conn.ID)
		}
		log.Info().Str("connection_id", conn.ID).Msg("display disconnected")
	}
}

// Broadcast queues an event for every connected display. Never blocks;
// when the queue is full the event is dropped, and the next snapshot
// re-converges the displays.
func (cm *ConnectionManager) Broadcast(event *Event) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("broadcast channel full, dropping event")
	}
}

// SendTo delivers an event to a single connection, used for the snapshot
// a display receives immediately on connect.
func (cm *ConnectionManager) SendTo(conn *Connection, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}
}

func (cm *ConnectionManager) handleBroadcast(event *Event) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().Str("connection_id", conn.ID).Msg("send buffer full, closing connection")
			cm.unregister(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Int("connections", len(targets)).
		Msg("event broadcast")
}

// ConnectionCount returns the number of live display sessions.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("write to display failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		// Displays are read-only subscribers; inbound traffic only resets
		// the liveness deadline.
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
