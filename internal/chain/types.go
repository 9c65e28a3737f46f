package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Request is a review campaign as held by the reviews contract. The
// portal never mutates one directly, only via submitted transactions.
type Request struct {
	Name                string
	Reviewers           []common.Address
	ReviewerContracts   []common.Address
	HypercertIDs        []*big.Int
	HypercertIPFSHashes []string
	RewardPerReview     *big.Int
	PaymentToken        common.Address
	ReviewFormName      string
	Closed              bool
}

// ReviewForm is a named, versioned question/choice template. Immutable
// once stored on-chain.
type ReviewForm struct {
	Name          string
	Questions     []string
	Choices       [][]string
	QuestionTypes []string
	SystemVersion uint64
}

// RequestKind selects which creation method a new request goes through.
type RequestKind int

const (
	RequestPaid RequestKind = iota
	RequestUnpaid
)

// PaidRequestArgs is the fixed argument list of createRequest.
type PaidRequestArgs struct {
	Name                string
	Reviewers           []common.Address
	ReviewerContracts   []common.Address
	HypercertIDs        []*big.Int
	HypercertIPFSHashes []string
	RequestIPFSHash     string
	RewardPerReview     *big.Int
	ReviewsPerHypercert *big.Int
	TotalReward         *big.Int
	PaymentToken        common.Address
	ReviewFormName      string
}

// UnpaidRequestArgs is the fixed argument list of createNonPayableRequest.
type UnpaidRequestArgs struct {
	Name                string
	Reviewers           []common.Address
	ReviewerContracts   []common.Address
	HypercertIDs        []*big.Int
	HypercertIPFSHashes []string
	RequestIPFSHash     string
	ReviewFormName      string
}

// SubmissionContext bundles every ledger read a review or amendment
// submission needs before its payload can be built. Resolved fresh on
// every pipeline run so payloads always encode against the currently
// active schema.
type SubmissionContext struct {
	Request           *Request
	Form              *ReviewForm
	ReviewsSchemaID   [32]byte
	AmendmentsSchemaID [32]byte
}
