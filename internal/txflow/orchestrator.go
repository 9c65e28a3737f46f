// Package txflow submits and confirms on-chain calls. Every state-changing
// ledger interaction of the portal goes through the Orchestrator: cost
// estimation, signing, submission, and confirmation, with a progress
// notification fired the moment a transaction is actually broadcast.
package txflow

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/chain"
)

// Notifier receives a progress event when a transaction has been
// submitted. It fires exactly once per broadcast, never before.
type Notifier interface {
	TransactionSubmitted(title string, txHash common.Hash)
}

// TransactionError wraps a failure at any orchestration stage. The whole
// operation aborts; nothing is retried automatically because a broadcast
// transaction may already be in flight.
type TransactionError struct {
	Stage string
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("txflow: %s failed: %v", e.Stage, e.Err)
}
func (e *TransactionError) Unwrap() error { return e.Err }

// CallSpec describes one state-changing contract call.
type CallSpec struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// Title is carried into the user-facing progress notification.
	Title string
}

// Submission is the handle returned once a transaction is broadcast: the
// hash is available immediately, the receipt through Wait.
type Submission struct {
	tx           *types.Transaction
	backend      chain.Backend
	pollInterval time.Duration
}

// Hash returns the submitted transaction's hash.
func (s *Submission) Hash() common.Hash { return s.tx.Hash() }

// Wait blocks until the transaction is mined and returns its receipt. A
// mined-but-reverted transaction is a confirmation failure.
func (s *Submission) Wait(ctx context.Context) (*types.Receipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, s.tx.Hash())
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, &TransactionError{Stage: "confirm", Err: fmt.Errorf("transaction %s reverted", s.tx.Hash())}
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, &TransactionError{Stage: "confirm", Err: err}
		}

		select {
		case <-ctx.Done():
			return nil, &TransactionError{Stage: "confirm", Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Orchestrator signs and submits transactions from the session account.
// It never issues concurrent sends from that account; each pipeline run
// performs at most two sequential sends (approval then main call).
type Orchestrator struct {
	backend      chain.Backend
	key          *ecdsa.PrivateKey
	sender       common.Address
	chainID      *big.Int
	notifier     Notifier
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewOrchestrator parses the signer key and binds the orchestrator to the
// backend's chain ID.
func NewOrchestrator(ctx context.Context, backend chain.Backend, signerKeyHex string, notifier Notifier, logger *zap.Logger) (*Orchestrator, error) {
	key, err := crypto.HexToECDSA(signerKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key: %w", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain ID: %w", err)
	}
	return &Orchestrator{
		backend:      backend,
		key:          key,
		sender:       crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		notifier:     notifier,
		logger:       logger,
		pollInterval: time.Second,
	}, nil
}

// Sender returns the session account's address.
func (o *Orchestrator) Sender() common.Address { return o.sender }

// Submit estimates, signs, and broadcasts the call, returning a handle
// whose hash is known immediately. The progress notification fires here,
// after broadcast succeeds; earlier failures surface no transaction link.
func (o *Orchestrator) Submit(ctx context.Context, spec CallSpec) (*Submission, error) {
	value := spec.Value
	if value == nil {
		value = big.NewInt(0)
	}

	msg := ethereum.CallMsg{From: o.sender, To: &spec.To, Value: value, Data: spec.Data}
	gas, err := o.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, &TransactionError{Stage: "estimate", Err: err}
	}

	gasPrice, err := o.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &TransactionError{Stage: "estimate", Err: err}
	}

	nonce, err := o.backend.PendingNonceAt(ctx, o.sender)
	if err != nil {
		return nil, &TransactionError{Stage: "submit", Err: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &spec.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     spec.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(o.chainID), o.key)
	if err != nil {
		return nil, &TransactionError{Stage: "submit", Err: err}
	}

	if err := o.backend.SendTransaction(ctx, signed); err != nil {
		return nil, &TransactionError{Stage: "submit", Err: err}
	}

	o.logger.Info("transaction submitted",
		zap.String("title", spec.Title),
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("to", spec.To.Hex()),
		zap.Uint64("gas", gas))

	if o.notifier != nil {
		o.notifier.TransactionSubmitted(spec.Title, signed.Hash())
	}

	return &Submission{tx: signed, backend: o.backend, pollInterval: o.pollInterval}, nil
}

// Execute runs Submit and awaits confirmation in one step.
func (o *Orchestrator) Execute(ctx context.Context, spec CallSpec) (*types.Receipt, error) {
	submission, err := o.Submit(ctx, spec)
	if err != nil {
		return nil, err
	}
	return submission.Wait(ctx)
}
