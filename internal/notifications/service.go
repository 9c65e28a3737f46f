package notifications

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	mainnetExplorerBase = "https://optimistic.etherscan.io/tx/"
	testnetExplorerBase = "https://sepolia-optimism.etherscan.io/tx/"

	recentEventsCap = 50
)

// ExplorerTxURL builds the block-explorer link for a transaction hash,
// keyed to the build mode.
func ExplorerTxURL(production bool, txHash common.Hash) string {
	if production {
		return mainnetExplorerBase + txHash.Hex()
	}
	return testnetExplorerBase + txHash.Hex()
}

// Service turns transaction submissions into user-facing progress events
// and fans them out over the broadcaster. It satisfies txflow.Notifier.
type Service struct {
	broadcaster Broadcaster
	production  bool
	duration    int
	logger      *zap.Logger

	mu     sync.RWMutex
	recent []TransactionEvent
}

// NewService creates a new notification service
func NewService(broadcaster Broadcaster, production bool, duration int, logger *zap.Logger) *Service {
	return &Service{
		broadcaster: broadcaster,
		production:  production,
		duration:    duration,
		logger:      logger,
	}
}

// TransactionSubmitted records and broadcasts a progress event carrying
// the explorer link for the just-submitted transaction.
func (s *Service) TransactionSubmitted(title string, txHash common.Hash) {
	event := TransactionEvent{
		ID:          uuid.New(),
		Title:       title,
		TxHash:      txHash.Hex(),
		ExplorerURL: ExplorerTxURL(s.production, txHash),
		Duration:    s.duration,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.recent = append(s.recent, event)
	if len(s.recent) > recentEventsCap {
		s.recent = s.recent[len(s.recent)-recentEventsCap:]
	}
	s.mu.Unlock()

	s.logger.Info("transaction notification",
		zap.String("title", title),
		zap.String("tx_hash", event.TxHash),
		zap.String("explorer_url", event.ExplorerURL))

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event)
	}
}

// Recent returns the most recent events, newest last.
func (s *Service) Recent() []TransactionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransactionEvent, len(s.recent))
	copy(out, s.recent)
	return out
}
