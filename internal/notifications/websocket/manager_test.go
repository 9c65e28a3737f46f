package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/notifications"
)

// addConnection inserts a connection the way HandleConnection does,
// without a real network socket behind it.
func addConnection(m *Manager, buffer int) *connection {
	c := &connection{
		id:   uuid.New().String(),
		send: make(chan notifications.TransactionEvent, buffer),
	}
	m.mu.Lock()
	m.connections[c.id] = c
	m.mu.Unlock()
	m.hub.register <- c
	return c
}

func TestBroadcastDeliversToConnectedClient(t *testing.T) {
	m := NewManager(zap.NewNop())
	c := addConnection(m, 1)

	event := notifications.TransactionEvent{ID: uuid.New(), Title: "Transaction in progress"}
	m.Broadcast(event)

	select {
	case got := <-c.send:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("event never reached the client")
	}
	assert.Equal(t, 1, m.ConnectionCount())
}

func TestSlowClientEvictionClearsConnectionCount(t *testing.T) {
	m := NewManager(zap.NewNop())
	// Unbuffered send channel with no reader: the first broadcast
	// cannot be queued, so the hub evicts the client.
	c := addConnection(m, 0)
	require.Equal(t, 1, m.ConnectionCount())

	m.Broadcast(notifications.TransactionEvent{ID: uuid.New(), Title: "Transaction in progress"})

	require.Eventually(t, func() bool {
		return m.ConnectionCount() == 0
	}, time.Second, 5*time.Millisecond, "evicted client must leave the connection count")

	// The read pump's unregister arrives after the hub already evicted
	// the connection; the count must not go stale or negative.
	m.hub.unregister <- c
	require.Eventually(t, func() bool {
		return m.ConnectionCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterClearsConnectionCount(t *testing.T) {
	m := NewManager(zap.NewNop())
	c := addConnection(m, 1)
	require.Equal(t, 1, m.ConnectionCount())

	m.hub.unregister <- c
	require.Eventually(t, func() bool {
		return m.ConnectionCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-c.send
	assert.False(t, open, "unregister closes the send channel")
}
