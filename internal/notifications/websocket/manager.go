package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/notifications"
)

// Manager fans transaction-progress events out to connected clients. It
// implements notifications.Broadcaster.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*connection
	hub         *hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

type connection struct {
	id   string
	conn *websocket.Conn
	send chan notifications.TransactionEvent
}

type hub struct {
	connections map[*connection]bool
	broadcast   chan notifications.TransactionEvent
	register    chan *connection
	unregister  chan *connection
	stop        chan struct{}
}

// NewManager creates the manager and starts its hub goroutine.
func NewManager(logger *zap.Logger) *Manager {
	h := &hub{
		connections: make(map[*connection]bool),
		broadcast:   make(chan notifications.TransactionEvent, 256),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		stop:        make(chan struct{}),
	}
	m := &Manager{
		connections: make(map[string]*connection),
		hub:         h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
	go m.run()
	return m
}

// HandleConnection upgrades the request and starts the connection pumps.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &connection{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan notifications.TransactionEvent, 64),
	}

	m.hub.register <- c

	m.mu.Lock()
	m.connections[c.id] = c
	m.mu.Unlock()

	go m.readPump(c)
	go m.writePump(c)

	return nil
}

// Broadcast queues an event for every connected client; events are
// dropped rather than blocking the submission pipeline.
func (m *Manager) Broadcast(event notifications.TransactionEvent) {
	select {
	case m.hub.broadcast <- event:
	default:
		m.logger.Warn("notification broadcast channel full, dropping event",
			zap.String("tx_hash", event.TxHash))
	}
}

// ConnectionCount returns the number of active connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close shuts down the hub and every connection.
func (m *Manager) Close() {
	close(m.hub.stop)
}

// forget drops a connection from the manager's bookkeeping map. Hub-side
// eviction and client-side unregister both end here, so the count stays
// right no matter which path removes the connection first.
func (m *Manager) forget(c *connection) {
	m.mu.Lock()
	delete(m.connections, c.id)
	m.mu.Unlock()
}

func (m *Manager) run() {
	h := m.hub
	for {
		select {
		case c := <-h.register:
			h.connections[c] = true
			m.logger.Debug("websocket connection registered", zap.String("connection_id", c.id))

		case c := <-h.unregister:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.send)
			}
			m.forget(c)

		case event := <-h.broadcast:
			for c := range h.connections {
				select {
				case c.send <- event:
				default:
					delete(h.connections, c)
					close(c.send)
					m.forget(c)
				}
			}

		case <-h.stop:
			for c := range h.connections {
				close(c.send)
				c.conn.Close()
				delete(h.connections, c)
				m.forget(c)
			}
			return
		}
	}
}

// readPump drains client frames; clients only listen, so anything other
// than control frames ends the connection.
func (m *Manager) readPump(c *connection) {
	defer func() {
		m.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (m *Manager) writePump(c *connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
