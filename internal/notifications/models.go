package notifications

import (
	"time"

	"github.com/google/uuid"
)

// TransactionEvent is the user-facing progress notification emitted once
// a transaction has been submitted to the ledger.
type TransactionEvent struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	TxHash      string    `json:"tx_hash"`
	ExplorerURL string    `json:"explorer_url"`
	// Duration is how long the client should keep the notification
	// visible, in seconds.
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// Broadcaster pushes an event to every connected client.
type Broadcaster interface {
	Broadcast(event TransactionEvent)
}
