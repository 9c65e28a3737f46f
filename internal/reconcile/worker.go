// Package reconcile retries index writes that failed after their
// attestation was already confirmed on-chain. The attestation exists
// either way; this worker closes the gap between chain and index.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/index"
)

// WorkerConfig configuration for the reconciliation worker
type WorkerConfig struct {
	// Schedule is a cron expression; every minute by default.
	Schedule string
	// BatchSize caps how many pending writes one run drains.
	BatchSize int64
	// MaxAttempts is the retry count after which an entry is only
	// logged for operator attention, not dropped.
	MaxAttempts int
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Schedule:    "* * * * *",
		BatchSize:   50,
		MaxAttempts: 10,
	}
}

// Worker periodically drains the pending_index_writes queue.
type Worker struct {
	cron    *cron.Cron
	repo    index.Repository
	logger  *zap.Logger
	config  WorkerConfig
	mu      sync.Mutex
	running bool
}

// NewWorker creates a new reconciliation worker
func NewWorker(repo index.Repository, logger *zap.Logger, config WorkerConfig) *Worker {
	return &Worker{
		cron:   cron.New(),
		repo:   repo,
		logger: logger,
		config: config,
	}
}

// Start schedules the drain job and starts the cron runner.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("reconcile: worker already running")
	}

	if _, err := w.cron.AddFunc(w.config.Schedule, func() {
		if err := w.Run(ctx); err != nil {
			w.logger.Error("reconciliation run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("reconcile: invalid schedule %q: %w", w.config.Schedule, err)
	}

	w.logger.Info("Starting reconciliation worker",
		zap.String("schedule", w.config.Schedule),
		zap.Int64("batch_size", w.config.BatchSize))
	w.cron.Start()
	w.running = true
	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Info("Stopping reconciliation worker")
	<-w.cron.Stop().Done()
	w.running = false
}

// Run drains one batch of pending index writes. Exported so a single
// pass can be triggered outside the schedule.
func (w *Worker) Run(ctx context.Context) error {
	pending, err := w.repo.ListPendingWrites(ctx, w.config.BatchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.Info("draining pending index writes", zap.Int("count", len(pending)))

	for _, entry := range pending {
		if err := w.retry(ctx, entry); err != nil {
			w.noteFailure(ctx, entry, err)
			continue
		}

		if err := w.repo.ResolvePendingWrite(ctx, entry.ID); err != nil {
			w.logger.Error("indexed but could not clear queue entry",
				zap.String("pending_id", entry.ID),
				zap.String("attestation_id", entry.AttestationID),
				zap.Error(err))
			continue
		}

		w.logger.Info("reconciled orphaned attestation",
			zap.String("attestation_id", entry.AttestationID),
			zap.String("request_name", entry.RequestName),
			zap.String("kind", entry.Kind))
	}
	return nil
}

// retry replays the original index write. Both writes are idempotent so
// a duplicate run after a half-failure is harmless.
func (w *Worker) retry(ctx context.Context, entry index.PendingIndexWrite) error {
	switch entry.Kind {
	case "review":
		if entry.Review == nil {
			return fmt.Errorf("reconcile: review entry %s has no payload", entry.ID)
		}
		return w.repo.SaveReview(ctx, entry.RequestName, *entry.Review)
	case "amendment":
		if entry.Amendment == nil {
			return fmt.Errorf("reconcile: amendment entry %s has no payload", entry.ID)
		}
		return w.repo.SaveAmendment(ctx, *entry.Amendment)
	default:
		return fmt.Errorf("reconcile: unknown pending write kind %q", entry.Kind)
	}
}

func (w *Worker) noteFailure(ctx context.Context, entry index.PendingIndexWrite, cause error) {
	if entry.Attempts+1 >= w.config.MaxAttempts {
		w.logger.Error("pending index write exceeded retry budget, operator attention required",
			zap.String("pending_id", entry.ID),
			zap.String("attestation_id", entry.AttestationID),
			zap.Int("attempts", entry.Attempts+1),
			zap.Error(cause))
	} else {
		w.logger.Warn("pending index write retry failed",
			zap.String("pending_id", entry.ID),
			zap.String("attestation_id", entry.AttestationID),
			zap.Error(cause))
	}

	if err := w.repo.BumpPendingWrite(ctx, entry.ID); err != nil {
		w.logger.Error("failed to record retry attempt",
			zap.String("pending_id", entry.ID),
			zap.Error(err))
	}
}
