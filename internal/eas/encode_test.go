package eas

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewEncodeRoundTrip(t *testing.T) {
	data := ReviewData{
		RequestName:           "R1",
		HypercertID:           big.NewInt(42),
		Answers:               []string{"yes", "no"},
		Questions:             []string{"Q1", "Q2"},
		QuestionTypes:         []string{"text", "text"},
		PDFIpfsHash:           "QmEvidenceHash",
		AttachmentsIpfsHashes: []string{},
	}

	encoded, err := data.Encode()
	require.NoError(t, err)

	decoded, err := DecodeReview(encoded)
	require.NoError(t, err)

	assert.Equal(t, "R1", decoded.RequestName)
	assert.Equal(t, int64(42), decoded.HypercertID.Int64())
	assert.Equal(t, []string{"yes", "no"}, decoded.Answers)
	assert.Equal(t, []string{"Q1", "Q2"}, decoded.Questions)
	assert.Equal(t, []string{"text", "text"}, decoded.QuestionTypes)
	assert.Equal(t, "QmEvidenceHash", decoded.PDFIpfsHash)
	assert.Empty(t, decoded.AttachmentsIpfsHashes)
}

func TestReviewReservedSlotsAlwaysEmpty(t *testing.T) {
	encoded, err := ReviewData{
		RequestName: "R1",
		HypercertID: big.NewInt(1),
		Answers:     []string{"a"},
		Questions:   []string{"q"},
	}.Encode()
	require.NoError(t, err)

	decoded, err := DecodeReview(encoded)
	require.NoError(t, err)

	assert.Equal(t, "", decoded.Notes1)
	assert.Equal(t, "", decoded.Notes2)
	assert.Empty(t, decoded.RFU1)
	assert.Empty(t, decoded.RFU2)
}

func TestReviewEncodeEmptyEvidenceReference(t *testing.T) {
	// A failed rendering call degrades to an empty evidence reference;
	// the payload must still encode and round-trip.
	encoded, err := ReviewData{
		RequestName: "R1",
		HypercertID: big.NewInt(7),
		Answers:     []string{"yes"},
		Questions:   []string{"Q1"},
		PDFIpfsHash: "",
	}.Encode()
	require.NoError(t, err)

	decoded, err := DecodeReview(encoded)
	require.NoError(t, err)
	assert.Equal(t, "", decoded.PDFIpfsHash)
}

func TestReviewEncodeNilSlices(t *testing.T) {
	a := ReviewData{RequestName: "R1", HypercertID: big.NewInt(1)}
	b := ReviewData{
		RequestName:           "R1",
		HypercertID:           big.NewInt(1),
		Answers:               []string{},
		Questions:             []string{},
		QuestionTypes:         []string{},
		AttachmentsIpfsHashes: []string{},
	}

	encodedA, err := a.Encode()
	require.NoError(t, err)
	encodedB, err := b.Encode()
	require.NoError(t, err)

	assert.Equal(t, encodedB, encodedA, "nil and empty slices must encode identically")
}

func TestReviewEncodeDeterministic(t *testing.T) {
	data := ReviewData{
		RequestName:   "deterministic",
		HypercertID:   big.NewInt(99),
		Answers:       []string{"x", "y", "z"},
		Questions:     []string{"1", "2", "3"},
		QuestionTypes: []string{"text", "text", "text"},
	}

	first, err := data.Encode()
	require.NoError(t, err)
	second, err := data.Encode()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAmendmentEncodeRoundTrip(t *testing.T) {
	encoded, err := AmendmentData{
		RequestName:           "R1",
		HypercertID:           big.NewInt(42),
		Amendment:             "clarify Q2 answer",
		PDFIpfsHash:           "QmAmendmentEvidence",
		AttachmentsIpfsHashes: []string{"QmAttachment"},
	}.Encode()
	require.NoError(t, err)

	decoded, err := DecodeAmendment(encoded)
	require.NoError(t, err)

	assert.Equal(t, "R1", decoded.RequestName)
	assert.Equal(t, int64(42), decoded.HypercertID.Int64())
	assert.Equal(t, "clarify Q2 answer", decoded.Amendment)
	assert.Equal(t, "QmAmendmentEvidence", decoded.PDFIpfsHash)
	assert.Equal(t, []string{"QmAttachment"}, decoded.AttachmentsIpfsHashes)
}

func TestDecodeReviewRejectsGarbage(t *testing.T) {
	_, err := DecodeReview([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)

	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}
