// Package eas deterministically encodes review and amendment records into
// the byte layout the attestation registry's schemas expect. Encoding is
// canonical ABI tuple encoding; downstream verifiers decode positionally
// by type, so field order is part of the contract.
package eas

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EncodingError signals a payload that could not be encoded. With
// well-typed inputs this is an invariant violation, not a runtime
// condition, and is fatal to the submission.
type EncodingError struct {
	Kind string
	Err  error
}

func (e *EncodingError) Error() string { return fmt.Sprintf("eas: encoding %s payload: %v", e.Kind, e.Err) }
func (e *EncodingError) Unwrap() error { return e.Err }

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	typString      = mustType("string")
	typUint256     = mustType("uint256")
	typStringSlice = mustType("string[]")
)

// reviewArgs is the review schema field layout. The notes and rfu slots
// are reserved for forward-compatible schema extension; they are always
// present and always empty.
var reviewArgs = abi.Arguments{
	{Name: "requestName", Type: typString},
	{Name: "hypercertID", Type: typUint256},
	{Name: "answers", Type: typStringSlice},
	{Name: "questions", Type: typStringSlice},
	{Name: "questionTypes", Type: typStringSlice},
	{Name: "pdfIpfsHash", Type: typString},
	{Name: "attachmentsIpfsHashes", Type: typStringSlice},
	{Name: "notes1", Type: typString},
	{Name: "notes2", Type: typString},
	{Name: "rfu1", Type: typStringSlice},
	{Name: "rfu2", Type: typStringSlice},
}

// amendmentArgs is the amendment schema field layout.
var amendmentArgs = abi.Arguments{
	{Name: "requestName", Type: typString},
	{Name: "hypercertID", Type: typUint256},
	{Name: "amendment", Type: typString},
	{Name: "pdfIpfsHash", Type: typString},
	{Name: "attachmentsIpfsHashes", Type: typStringSlice},
}

// ReviewData is a review record ready for schema encoding.
type ReviewData struct {
	RequestName           string
	HypercertID           *big.Int
	Answers               []string
	Questions             []string
	QuestionTypes         []string
	PDFIpfsHash           string
	AttachmentsIpfsHashes []string
}

// AmendmentData is an amendment record ready for schema encoding.
type AmendmentData struct {
	RequestName           string
	HypercertID           *big.Int
	Amendment             string
	PDFIpfsHash           string
	AttachmentsIpfsHashes []string
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Encode packs the review into the registry's review schema layout.
func (d ReviewData) Encode() ([]byte, error) {
	hypercertID := d.HypercertID
	if hypercertID == nil {
		hypercertID = big.NewInt(0)
	}
	packed, err := reviewArgs.Pack(
		d.RequestName,
		hypercertID,
		nonNil(d.Answers),
		nonNil(d.Questions),
		nonNil(d.QuestionTypes),
		d.PDFIpfsHash,
		nonNil(d.AttachmentsIpfsHashes),
		"",         // notes1
		"",         // notes2
		[]string{}, // rfu1
		[]string{}, // rfu2
	)
	if err != nil {
		return nil, &EncodingError{Kind: "review", Err: err}
	}
	return packed, nil
}

// Encode packs the amendment into the registry's amendment schema layout.
func (d AmendmentData) Encode() ([]byte, error) {
	hypercertID := d.HypercertID
	if hypercertID == nil {
		hypercertID = big.NewInt(0)
	}
	packed, err := amendmentArgs.Pack(
		d.RequestName,
		hypercertID,
		d.Amendment,
		d.PDFIpfsHash,
		nonNil(d.AttachmentsIpfsHashes),
	)
	if err != nil {
		return nil, &EncodingError{Kind: "amendment", Err: err}
	}
	return packed, nil
}

// DecodedReview is a review payload unpacked from its encoded form.
type DecodedReview struct {
	RequestName           string
	HypercertID           *big.Int
	Answers               []string
	Questions             []string
	QuestionTypes         []string
	PDFIpfsHash           string
	AttachmentsIpfsHashes []string
	Notes1                string
	Notes2                string
	RFU1                  []string
	RFU2                  []string
}

// DecodeReview unpacks an encoded review payload.
func DecodeReview(data []byte) (*DecodedReview, error) {
	values, err := reviewArgs.Unpack(data)
	if err != nil {
		return nil, &EncodingError{Kind: "review", Err: err}
	}
	if len(values) != len(reviewArgs) {
		return nil, &EncodingError{Kind: "review", Err: fmt.Errorf("unexpected field count %d", len(values))}
	}
	return &DecodedReview{
		RequestName:           values[0].(string),
		HypercertID:           values[1].(*big.Int),
		Answers:               values[2].([]string),
		Questions:             values[3].([]string),
		QuestionTypes:         values[4].([]string),
		PDFIpfsHash:           values[5].(string),
		AttachmentsIpfsHashes: values[6].([]string),
		Notes1:                values[7].(string),
		Notes2:                values[8].(string),
		RFU1:                  values[9].([]string),
		RFU2:                  values[10].([]string),
	}, nil
}

// DecodedAmendment is an amendment payload unpacked from its encoded form.
type DecodedAmendment struct {
	RequestName           string
	HypercertID           *big.Int
	Amendment             string
	PDFIpfsHash           string
	AttachmentsIpfsHashes []string
}

// DecodeAmendment unpacks an encoded amendment payload.
func DecodeAmendment(data []byte) (*DecodedAmendment, error) {
	values, err := amendmentArgs.Unpack(data)
	if err != nil {
		return nil, &EncodingError{Kind: "amendment", Err: err}
	}
	if len(values) != len(amendmentArgs) {
		return nil, &EncodingError{Kind: "amendment", Err: fmt.Errorf("unexpected field count %d", len(values))}
	}
	return &DecodedAmendment{
		RequestName:           values[0].(string),
		HypercertID:           values[1].(*big.Int),
		Amendment:             values[2].(string),
		PDFIpfsHash:           values[3].(string),
		AttachmentsIpfsHashes: values[4].([]string),
	}, nil
}
