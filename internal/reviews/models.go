package reviews

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SubmitReviewInput carries everything a reviewer provides for one
// review submission; the ledger context is resolved by the pipeline.
type SubmitReviewInput struct {
	RequestName           string
	HypercertID           *big.Int
	TokenID               string
	Answers               []string
	AttachmentsIpfsHashes []string
}

// CreateAmendmentInput carries an amendment against an existing
// attestation. RefUID is the original review's attestation ID; every
// amendment of one review shares it.
type CreateAmendmentInput struct {
	RequestName           string
	HypercertID           *big.Int
	TokenID               string
	Amendment             string
	AttachmentsIpfsHashes []string
	RefUID                common.Hash
}

// SubmissionResult is what a completed pipeline run hands back.
type SubmissionResult struct {
	AttestationID common.Hash `json:"attestation_id"`
	TxHash        common.Hash `json:"tx_hash"`
	PDFIpfsHash   string      `json:"pdf_ipfs_hash"`
	// EvidenceMissing flags a submission whose rendering call failed;
	// the attestation was still registered, with an empty reference.
	EvidenceMissing bool `json:"evidence_missing"`
}
