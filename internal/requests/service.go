// Package requests manages the ledger surface around review campaigns:
// form creation, paid and unpaid request creation, closing, and the
// payment token catalogue.
package requests

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/chain"
	"deresy/review-portal/review-portal-backend/internal/txflow"
)

// NativePaymentAddress marks a request paid in the chain's native
// currency. Paid requests using it carry the reward as transaction
// value; any other token goes through an ERC-20 approval first.
var NativePaymentAddress = common.Address{}

// ErrRequestClosed rejects operations on a request already closed.
var ErrRequestClosed = errors.New("requests: request is already closed")

// ErrKindArgsMismatch rejects a creation input whose argument struct
// does not match its kind tag.
var ErrKindArgsMismatch = errors.New("requests: argument struct does not match request kind")

// Ledger is the slice of the chain client this service reads and packs
// through.
type Ledger interface {
	GetRequest(ctx context.Context, name string) (*chain.Request, error)
	GetRequestNames(ctx context.Context) ([]string, error)
	GetRequestReviewForm(ctx context.Context, requestName string) (*chain.ReviewForm, error)
	GetReviewForm(ctx context.Context, name string) (*chain.ReviewForm, error)
	ReviewFormsTotal(ctx context.Context) (*big.Int, error)
	GetWhitelistedTokens(ctx context.Context) ([]common.Address, error)
	PackCreateReviewForm(name string, questions []string, choices [][]string, questionTypes []string) ([]byte, error)
	PackCreateRequest(args chain.PaidRequestArgs) ([]byte, error)
	PackCreateNonPayableRequest(args chain.UnpaidRequestArgs) ([]byte, error)
	PackCloseRequest(name string) ([]byte, error)
	PackApprove(spender common.Address, amount *big.Int) ([]byte, error)
	ReviewsAddress() common.Address
}

// TxRunner submits and confirms ledger transactions.
type TxRunner interface {
	Execute(ctx context.Context, spec txflow.CallSpec) (*types.Receipt, error)
	Sender() common.Address
}

// CreateRequestInput is a tagged variant: exactly one of Paid or Unpaid
// must be set, matching Kind.
type CreateRequestInput struct {
	Kind   chain.RequestKind
	Paid   *chain.PaidRequestArgs
	Unpaid *chain.UnpaidRequestArgs
}

// PaymentOption is one accepted payment token with its display label.
type PaymentOption struct {
	Address common.Address `json:"address"`
	Label   string         `json:"label"`
}

// paymentLabels maps whitelisted token addresses to human labels.
// Unknown addresses fall back to the address string itself.
var paymentLabels = map[common.Address]string{
	NativePaymentAddress: "ETH",
	common.HexToAddress("0x7F5c764cBc14f9669B88837ca1490cCa17c31607"): "USDC",
	common.HexToAddress("0x94b008aA00579c1307B0EF2c499aD98a8ce58e58"): "USDT",
	common.HexToAddress("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"): "DAI",
}

// Service wraps ledger mutations for review forms and requests.
type Service struct {
	ledger Ledger
	runner TxRunner
	logger *zap.Logger
}

// NewService creates a new requests service
func NewService(ledger Ledger, runner TxRunner, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		runner: runner,
		logger: logger,
	}
}

// CreateReviewForm stores a new question/choice template on-chain.
func (s *Service) CreateReviewForm(ctx context.Context, name string, questions []string, choices [][]string, questionTypes []string) (*types.Receipt, error) {
	if len(questions) != len(questionTypes) {
		return nil, fmt.Errorf("requests: %d questions with %d question types", len(questions), len(questionTypes))
	}

	calldata, err := s.ledger.PackCreateReviewForm(name, questions, choices, questionTypes)
	if err != nil {
		return nil, err
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    s.ledger.ReviewsAddress(),
		Data:  calldata,
		Title: "Transaction in progress",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review form created",
		zap.String("form_name", name),
		zap.Int("questions", len(questions)),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return receipt, nil
}

// CreateRequest opens a new review campaign. Paid requests using a
// non-native token first approve the reviews contract for the total
// reward; the main transaction is only sent once the approval confirms.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (*types.Receipt, error) {
	switch input.Kind {
	case chain.RequestPaid:
		if input.Paid == nil || input.Unpaid != nil {
			return nil, ErrKindArgsMismatch
		}
		return s.createPaidRequest(ctx, *input.Paid)
	case chain.RequestUnpaid:
		if input.Unpaid == nil || input.Paid != nil {
			return nil, ErrKindArgsMismatch
		}
		return s.createUnpaidRequest(ctx, *input.Unpaid)
	default:
		return nil, fmt.Errorf("requests: unknown request kind %d", input.Kind)
	}
}

func (s *Service) createPaidRequest(ctx context.Context, args chain.PaidRequestArgs) (*types.Receipt, error) {
	var value *big.Int

	if args.PaymentToken == NativePaymentAddress {
		value = args.TotalReward
	} else {
		if err := s.approveReward(ctx, args.PaymentToken, args.TotalReward); err != nil {
			return nil, err
		}
	}

	calldata, err := s.ledger.PackCreateRequest(args)
	if err != nil {
		return nil, err
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    s.ledger.ReviewsAddress(),
		Data:  calldata,
		Value: value,
		Title: "Transaction in progress",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("paid review request created",
		zap.String("request_name", args.Name),
		zap.String("payment_token", args.PaymentToken.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return receipt, nil
}

func (s *Service) createUnpaidRequest(ctx context.Context, args chain.UnpaidRequestArgs) (*types.Receipt, error) {
	calldata, err := s.ledger.PackCreateNonPayableRequest(args)
	if err != nil {
		return nil, err
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    s.ledger.ReviewsAddress(),
		Data:  calldata,
		Title: "Transaction in progress",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("unpaid review request created",
		zap.String("request_name", args.Name),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return receipt, nil
}

// approveReward grants the reviews contract an ERC-20 allowance for the
// request's total reward. The creation transaction is never sent when
// the approval fails.
func (s *Service) approveReward(ctx context.Context, token common.Address, amount *big.Int) error {
	calldata, err := s.ledger.PackApprove(s.ledger.ReviewsAddress(), amount)
	if err != nil {
		return err
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    token,
		Data:  calldata,
		Title: "Transaction in progress",
	})
	if err != nil {
		s.logger.Error("reward approval failed, request not created",
			zap.String("payment_token", token.Hex()),
			zap.Error(err))
		return err
	}

	s.logger.Info("reward approved",
		zap.String("payment_token", token.Hex()),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return nil
}

// CloseRequest closes an open review campaign.
func (s *Service) CloseRequest(ctx context.Context, name string) (*types.Receipt, error) {
	request, err := s.ledger.GetRequest(ctx, name)
	if err != nil {
		return nil, err
	}
	if request.Closed {
		return nil, ErrRequestClosed
	}

	calldata, err := s.ledger.PackCloseRequest(name)
	if err != nil {
		return nil, err
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    s.ledger.ReviewsAddress(),
		Data:  calldata,
		Title: "Transaction in progress",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review request closed",
		zap.String("request_name", name),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return receipt, nil
}

// GetRequest returns one request's on-chain state.
func (s *Service) GetRequest(ctx context.Context, name string) (*chain.Request, error) {
	return s.ledger.GetRequest(ctx, name)
}

// ListRequestNames returns every request name the contract holds.
func (s *Service) ListRequestNames(ctx context.Context) ([]string, error) {
	return s.ledger.GetRequestNames(ctx)
}

// GetRequestForm returns the form attached to a request.
func (s *Service) GetRequestForm(ctx context.Context, requestName string) (*chain.ReviewForm, error) {
	return s.ledger.GetRequestReviewForm(ctx, requestName)
}

// GetForm looks a review form up by name.
func (s *Service) GetForm(ctx context.Context, name string) (*chain.ReviewForm, error) {
	return s.ledger.GetReviewForm(ctx, name)
}

// FormsTotal returns how many review forms exist on-chain.
func (s *Service) FormsTotal(ctx context.Context) (*big.Int, error) {
	return s.ledger.ReviewFormsTotal(ctx)
}

// PaymentOptions merges the on-chain token whitelist with the static
// label table. Tokens without a known label are labelled by address.
func (s *Service) PaymentOptions(ctx context.Context) ([]PaymentOption, error) {
	tokens, err := s.ledger.GetWhitelistedTokens(ctx)
	if err != nil {
		return nil, err
	}

	options := make([]PaymentOption, 0, len(tokens))
	for _, addr := range tokens {
		label, ok := paymentLabels[addr]
		if !ok {
			label = addr.Hex()
		}
		options = append(options, PaymentOption{Address: addr, Label: label})
	}
	return options, nil
}
