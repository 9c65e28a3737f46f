package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the slice of an Ethereum JSON-RPC client the portal needs.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// ResolutionError wraps any failed ledger read. Resolution failures abort
// a pipeline run before anything is written.
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string { return fmt.Sprintf("chain: resolving %s: %v", e.Op, e.Err) }
func (e *ResolutionError) Unwrap() error { return e.Err }

// Client reads the reviews contract and packs calldata for the reviews,
// ERC-20, and attestation registry contracts. Constructed once per
// session and passed into every stage; it holds no per-call state.
type Client struct {
	backend Backend

	reviews abi.ABI
	erc20   abi.ABI
	eas     abi.ABI

	reviewsAddr common.Address
	easAddr     common.Address
}

// NewClient parses the contract ABIs and binds the client to the reviews
// and attestation registry addresses.
func NewClient(backend Backend, reviewsAddr, easAddr common.Address) (*Client, error) {
	reviews, err := abi.JSON(strings.NewReader(reviewsABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reviews ABI: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}
	eas, err := abi.JSON(strings.NewReader(easABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse attestation registry ABI: %w", err)
	}

	return &Client{
		backend:     backend,
		reviews:     reviews,
		erc20:       erc20,
		eas:         eas,
		reviewsAddr: reviewsAddr,
		easAddr:     easAddr,
	}, nil
}

// Backend exposes the underlying RPC backend for the transaction layer.
func (c *Client) Backend() Backend { return c.backend }

// ReviewsAddress returns the reviews contract address.
func (c *Client) ReviewsAddress() common.Address { return c.reviewsAddr }

// EASAddress returns the attestation registry address.
func (c *Client) EASAddress() common.Address { return c.easAddr }

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.reviews.Pack(method, args...)
	if err != nil {
		return nil, &ResolutionError{Op: method, Err: err}
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.reviewsAddr, Data: data}, nil)
	if err != nil {
		return nil, &ResolutionError{Op: method, Err: err}
	}
	values, err := c.reviews.Unpack(method, out)
	if err != nil {
		return nil, &ResolutionError{Op: method, Err: err}
	}
	return values, nil
}

// GetRequest returns the on-chain state of a review request.
func (c *Client) GetRequest(ctx context.Context, name string) (*Request, error) {
	values, err := c.call(ctx, "getRequest", name)
	if err != nil {
		return nil, err
	}
	if len(values) != 8 {
		return nil, &ResolutionError{Op: "getRequest", Err: fmt.Errorf("unexpected output arity %d", len(values))}
	}
	return &Request{
		Name:                name,
		Reviewers:           values[0].([]common.Address),
		ReviewerContracts:   values[1].([]common.Address),
		HypercertIDs:        values[2].([]*big.Int),
		HypercertIPFSHashes: values[3].([]string),
		RewardPerReview:     values[4].(*big.Int),
		PaymentToken:        values[5].(common.Address),
		ReviewFormName:      values[6].(string),
		Closed:              values[7].(bool),
	}, nil
}

// GetRequestReviewForm returns the question/choice definitions of the
// form associated with a request.
func (c *Client) GetRequestReviewForm(ctx context.Context, requestName string) (*ReviewForm, error) {
	values, err := c.call(ctx, "getRequestReviewForm", requestName)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, &ResolutionError{Op: "getRequestReviewForm", Err: fmt.Errorf("unexpected output arity %d", len(values))}
	}
	return &ReviewForm{
		Questions:     values[0].([]string),
		Choices:       values[1].([][]string),
		QuestionTypes: values[2].([]string),
	}, nil
}

// GetReviewForm looks a form up by name.
func (c *Client) GetReviewForm(ctx context.Context, name string) (*ReviewForm, error) {
	values, err := c.call(ctx, "getReviewForm", name)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, &ResolutionError{Op: "getReviewForm", Err: fmt.Errorf("unexpected output arity %d", len(values))}
	}
	return &ReviewForm{
		Name:          name,
		Questions:     values[0].([]string),
		Choices:       values[1].([][]string),
		QuestionTypes: values[2].([]string),
		SystemVersion: values[3].(*big.Int).Uint64(),
	}, nil
}

// ReviewFormsTotal returns how many forms are stored on-chain.
func (c *Client) ReviewFormsTotal(ctx context.Context) (*big.Int, error) {
	values, err := c.call(ctx, "reviewForms")
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}

// GetRequestNames returns the names of every review request.
func (c *Client) GetRequestNames(ctx context.Context) ([]string, error) {
	values, err := c.call(ctx, "getReviewRequestsNames")
	if err != nil {
		return nil, err
	}
	return values[0].([]string), nil
}

// GetWhitelistedTokens returns the payment tokens the contract accepts.
func (c *Client) GetWhitelistedTokens(ctx context.Context) ([]common.Address, error) {
	values, err := c.call(ctx, "getWhitelistedTokens")
	if err != nil {
		return nil, err
	}
	return values[0].([]common.Address), nil
}

// IsReviewer reports whether an address is whitelisted for a request.
func (c *Client) IsReviewer(ctx context.Context, reviewer common.Address, requestName string) (bool, error) {
	values, err := c.call(ctx, "isReviewer", reviewer, requestName)
	if err != nil {
		return false, err
	}
	return values[0].(bool), nil
}

// ReviewsSchemaID returns the schema the registry currently expects for
// review attestations.
func (c *Client) ReviewsSchemaID(ctx context.Context) ([32]byte, error) {
	values, err := c.call(ctx, "reviewsSchemaID")
	if err != nil {
		return [32]byte{}, err
	}
	return values[0].([32]byte), nil
}

// AmendmentsSchemaID returns the schema for amendment attestations.
func (c *Client) AmendmentsSchemaID(ctx context.Context) ([32]byte, error) {
	values, err := c.call(ctx, "amendmentsSchemaID")
	if err != nil {
		return [32]byte{}, err
	}
	return values[0].([32]byte), nil
}

// ResolveSubmissionContext performs every read a submission needs, in
// one place, before any write is attempted. Any failure here means
// nothing has been submitted yet.
func (c *Client) ResolveSubmissionContext(ctx context.Context, requestName string) (*SubmissionContext, error) {
	request, err := c.GetRequest(ctx, requestName)
	if err != nil {
		return nil, err
	}
	form, err := c.GetRequestReviewForm(ctx, requestName)
	if err != nil {
		return nil, err
	}
	reviewsSchema, err := c.ReviewsSchemaID(ctx)
	if err != nil {
		return nil, err
	}
	amendmentsSchema, err := c.AmendmentsSchemaID(ctx)
	if err != nil {
		return nil, err
	}
	return &SubmissionContext{
		Request:            request,
		Form:               form,
		ReviewsSchemaID:    reviewsSchema,
		AmendmentsSchemaID: amendmentsSchema,
	}, nil
}

// ---- calldata packers --------------------------------------------------

type attestationRequestData struct {
	Recipient      common.Address
	ExpirationTime uint64
	Revocable      bool
	RefUID         [32]byte
	Data           []byte
	Value          *big.Int
}

type attestationRequest struct {
	Schema [32]byte
	Data   attestationRequestData
}

// PackAttest builds the calldata for the registry's attest call.
// Recipient, expiration, revocability, and value are fixed by the portal:
// attestations are non-targeted, never expire, and are irrevocable.
func (c *Client) PackAttest(schema [32]byte, refUID [32]byte, encoded []byte) ([]byte, error) {
	return c.eas.Pack("attest", attestationRequest{
		Schema: schema,
		Data: attestationRequestData{
			Recipient:      common.Address{},
			ExpirationTime: 0,
			Revocable:      false,
			RefUID:         refUID,
			Data:           encoded,
			Value:          big.NewInt(0),
		},
	})
}

// PackApprove builds ERC-20 approval calldata for the exact amount.
func (c *Client) PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return c.erc20.Pack("approve", spender, amount)
}

// PackCreateReviewForm builds calldata for createReviewForm.
func (c *Client) PackCreateReviewForm(name string, questions []string, choices [][]string, questionTypes []string) ([]byte, error) {
	return c.reviews.Pack("createReviewForm", name, questions, choices, questionTypes)
}

// PackCreateRequest builds calldata for the paid creation method.
func (c *Client) PackCreateRequest(args PaidRequestArgs) ([]byte, error) {
	return c.reviews.Pack("createRequest",
		args.Name, args.Reviewers, args.ReviewerContracts,
		args.HypercertIDs, args.HypercertIPFSHashes, args.RequestIPFSHash,
		args.RewardPerReview, args.ReviewsPerHypercert, args.PaymentToken,
		args.ReviewFormName)
}

// PackCreateNonPayableRequest builds calldata for the unpaid creation method.
func (c *Client) PackCreateNonPayableRequest(args UnpaidRequestArgs) ([]byte, error) {
	return c.reviews.Pack("createNonPayableRequest",
		args.Name, args.Reviewers, args.ReviewerContracts,
		args.HypercertIDs, args.HypercertIPFSHashes, args.RequestIPFSHash,
		args.ReviewFormName)
}

// PackCloseRequest builds calldata for closeReviewRequest.
func (c *Client) PackCloseRequest(name string) ([]byte, error) {
	return c.reviews.Pack("closeReviewRequest", name)
}
