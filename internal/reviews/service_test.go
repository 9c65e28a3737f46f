package reviews

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/chain"
	"deresy/review-portal/review-portal-backend/internal/eas"
	"deresy/review-portal/review-portal-backend/internal/evidence"
	"deresy/review-portal/review-portal-backend/internal/index"
	"deresy/review-portal/review-portal-backend/internal/txflow"
)

// MockResolver is a mock implementation of the Resolver interface
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolveSubmissionContext(ctx context.Context, requestName string) (*chain.SubmissionContext, error) {
	args := m.Called(ctx, requestName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.SubmissionContext), args.Error(1)
}

func (m *MockResolver) GetRequestNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockResolver) IsReviewer(ctx context.Context, reviewer common.Address, requestName string) (bool, error) {
	args := m.Called(ctx, reviewer, requestName)
	return args.Bool(0), args.Error(1)
}

func (m *MockResolver) PackAttest(schema [32]byte, refUID [32]byte, encoded []byte) ([]byte, error) {
	args := m.Called(schema, refUID, encoded)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockResolver) EASAddress() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// MockRunner is a mock implementation of the TxRunner interface
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Execute(ctx context.Context, spec txflow.CallSpec) (*types.Receipt, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *MockRunner) Sender() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// MockRenderer is a mock implementation of the Renderer interface
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, req evidence.RenderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockRepo is a mock implementation of the index.Repository interface
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) GetRequestReviews(ctx context.Context, requestName string) (*index.RequestReviews, error) {
	args := m.Called(ctx, requestName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.RequestReviews), args.Error(1)
}

func (m *MockRepo) FindReviewByAttestationID(ctx context.Context, requestNames []string, attestationID string) (*index.StoredReview, error) {
	args := m.Called(ctx, requestNames, attestationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*index.StoredReview), args.Error(1)
}

func (m *MockRepo) AmendmentsByRefUID(ctx context.Context, refUID string) ([]index.StoredAmendment, error) {
	args := m.Called(ctx, refUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.StoredAmendment), args.Error(1)
}

func (m *MockRepo) SaveReview(ctx context.Context, requestName string, review index.StoredReview) error {
	args := m.Called(ctx, requestName, review)
	return args.Error(0)
}

func (m *MockRepo) SaveAmendment(ctx context.Context, amendment index.StoredAmendment) error {
	args := m.Called(ctx, amendment)
	return args.Error(0)
}

func (m *MockRepo) EnqueuePendingWrite(ctx context.Context, pending index.PendingIndexWrite) error {
	args := m.Called(ctx, pending)
	return args.Error(0)
}

func (m *MockRepo) ListPendingWrites(ctx context.Context, limit int64) ([]index.PendingIndexWrite, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.PendingIndexWrite), args.Error(1)
}

func (m *MockRepo) ResolvePendingWrite(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepo) BumpPendingWrite(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var (
	reviewer      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	easAddr       = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	reviewsSchema = [32]byte{0x01}
	amendSchema   = [32]byte{0x02}
	attestationID = common.HexToHash("0x4141414141414141414141414141414141414141414141414141414141414141")
)

func testContext() *chain.SubmissionContext {
	return &chain.SubmissionContext{
		Request: &chain.Request{Name: "R1", ReviewFormName: "F1"},
		Form: &chain.ReviewForm{
			Questions:     []string{"Q1", "Q2"},
			Choices:       [][]string{{}, {}},
			QuestionTypes: []string{"text", "text"},
		},
		ReviewsSchemaID:    reviewsSchema,
		AmendmentsSchemaID: amendSchema,
	}
}

func attestReceipt() *types.Receipt {
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xbeef"),
		Logs:   []*types.Log{{Data: attestationID.Bytes()}},
	}
}

func newTestService(resolver *MockResolver, runner *MockRunner, renderer *MockRenderer, repo *MockRepo) *Service {
	return NewService(resolver, runner, renderer, repo, zap.NewNop())
}

func TestSubmitReviewEncodesExpectedPayload(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)
	resolver.On("IsReviewer", ctx, reviewer, "R1").Return(true, nil)
	renderer.On("Render", ctx, mock.AnythingOfType("evidence.RenderRequest")).Return("QmEvidence", nil)

	var encoded []byte
	resolver.On("PackAttest", reviewsSchema, [32]byte{}, mock.AnythingOfType("[]uint8")).
		Run(func(args mock.Arguments) { encoded = args.Get(2).([]byte) }).
		Return([]byte{0xca, 0x11}, nil)
	resolver.On("EASAddress").Return(easAddr)
	runner.On("Execute", ctx, mock.AnythingOfType("txflow.CallSpec")).Return(attestReceipt(), nil)
	repo.On("SaveReview", ctx, "R1", mock.AnythingOfType("index.StoredReview")).Return(nil)

	result, err := service.SubmitReview(ctx, SubmitReviewInput{
		RequestName:           "R1",
		HypercertID:           big.NewInt(7),
		Answers:               []string{"yes", "no"},
		AttachmentsIpfsHashes: []string{},
	})
	require.NoError(t, err)

	assert.Equal(t, attestationID, result.AttestationID)
	assert.Equal(t, "QmEvidence", result.PDFIpfsHash)
	assert.False(t, result.EvidenceMissing)

	decoded, err := eas.DecodeReview(encoded)
	require.NoError(t, err)
	assert.Equal(t, "R1", decoded.RequestName)
	assert.Equal(t, int64(7), decoded.HypercertID.Int64())
	assert.Equal(t, []string{"yes", "no"}, decoded.Answers)
	assert.Equal(t, []string{"Q1", "Q2"}, decoded.Questions)
	assert.Equal(t, []string{"text", "text"}, decoded.QuestionTypes)
	assert.Equal(t, "QmEvidence", decoded.PDFIpfsHash)
	assert.Empty(t, decoded.AttachmentsIpfsHashes)
	assert.Equal(t, "", decoded.Notes1)
	assert.Equal(t, "", decoded.Notes2)
	assert.Empty(t, decoded.RFU1)
	assert.Empty(t, decoded.RFU2)
}

func TestSubmitReviewEvidenceFailureDegrades(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)
	resolver.On("IsReviewer", ctx, reviewer, "R1").Return(true, nil)
	renderer.On("Render", ctx, mock.Anything).Return("", &evidence.EvidenceError{Err: errors.New("renderer down")})

	var encoded []byte
	resolver.On("PackAttest", reviewsSchema, [32]byte{}, mock.Anything).
		Run(func(args mock.Arguments) { encoded = args.Get(2).([]byte) }).
		Return([]byte{0x01}, nil)
	resolver.On("EASAddress").Return(easAddr)
	runner.On("Execute", ctx, mock.Anything).Return(attestReceipt(), nil)
	repo.On("SaveReview", ctx, "R1", mock.Anything).Return(nil)

	result, err := service.SubmitReview(ctx, SubmitReviewInput{
		RequestName: "R1",
		HypercertID: big.NewInt(1),
		Answers:     []string{"a", "b"},
	})
	require.NoError(t, err, "a failed rendering call must not abort the submission")
	assert.True(t, result.EvidenceMissing)
	assert.Equal(t, "", result.PDFIpfsHash)

	decoded, err := eas.DecodeReview(encoded)
	require.NoError(t, err)
	assert.Equal(t, "", decoded.PDFIpfsHash)
}

func TestSubmitReviewTransactionFailureSkipsIndexWrite(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)
	resolver.On("IsReviewer", ctx, reviewer, "R1").Return(true, nil)
	renderer.On("Render", ctx, mock.Anything).Return("QmEvidence", nil)
	resolver.On("PackAttest", mock.Anything, mock.Anything, mock.Anything).Return([]byte{0x01}, nil)
	resolver.On("EASAddress").Return(easAddr)
	runner.On("Execute", ctx, mock.Anything).
		Return(nil, &txflow.TransactionError{Stage: "submit", Err: errors.New("rejected")})

	_, err := service.SubmitReview(ctx, SubmitReviewInput{
		RequestName: "R1",
		HypercertID: big.NewInt(1),
		Answers:     []string{"a", "b"},
	})
	require.Error(t, err)

	var txErr *txflow.TransactionError
	assert.ErrorAs(t, err, &txErr)
	repo.AssertNotCalled(t, "SaveReview", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "EnqueuePendingWrite", mock.Anything, mock.Anything)
}

func TestSubmitReviewResolutionFailureSubmitsNothing(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").
		Return(nil, &chain.ResolutionError{Op: "getRequest", Err: errors.New("rpc down")})

	_, err := service.SubmitReview(ctx, SubmitReviewInput{RequestName: "R1", Answers: []string{"a"}})
	require.Error(t, err)

	var resErr *chain.ResolutionError
	assert.ErrorAs(t, err, &resErr)
	runner.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
}

func TestSubmitReviewAnswerCountMismatch(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)
	resolver.On("IsReviewer", ctx, reviewer, "R1").Return(true, nil)

	_, err := service.SubmitReview(ctx, SubmitReviewInput{
		RequestName: "R1",
		Answers:     []string{"only one"},
	})
	require.ErrorIs(t, err, ErrAnswerCountMismatch)
	runner.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSubmitReviewRejectsUnlistedReviewer(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)
	resolver.On("IsReviewer", ctx, reviewer, "R1").Return(false, nil)

	_, err := service.SubmitReview(ctx, SubmitReviewInput{RequestName: "R1", Answers: []string{"a", "b"}})
	require.ErrorIs(t, err, ErrNotWhitelisted)
}

func TestSubmitReviewIndexWriteFailureQueuesPending(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	runner.On("Sender").Return(reviewer)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)
	resolver.On("IsReviewer", ctx, reviewer, "R1").Return(true, nil)
	renderer.On("Render", ctx, mock.Anything).Return("QmEvidence", nil)
	resolver.On("PackAttest", mock.Anything, mock.Anything, mock.Anything).Return([]byte{0x01}, nil)
	resolver.On("EASAddress").Return(easAddr)
	runner.On("Execute", ctx, mock.Anything).Return(attestReceipt(), nil)

	writeErr := &index.IndexWriteError{AttestationID: attestationID.Hex(), Err: errors.New("mongo down")}
	repo.On("SaveReview", ctx, "R1", mock.Anything).Return(writeErr)
	repo.On("EnqueuePendingWrite", ctx, mock.MatchedBy(func(p index.PendingIndexWrite) bool {
		return p.Kind == "review" && p.AttestationID == attestationID.Hex() && p.Review != nil
	})).Return(nil)

	_, err := service.SubmitReview(ctx, SubmitReviewInput{
		RequestName: "R1",
		HypercertID: big.NewInt(1),
		Answers:     []string{"a", "b"},
	})
	require.Error(t, err)

	var idxErr *index.IndexWriteError
	assert.ErrorAs(t, err, &idxErr, "post-confirmation failures must stay distinguishable")
	repo.AssertExpectations(t)
}

func TestCreateAmendmentChainsToOriginalRefUID(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	refUID := attestationID
	original := &index.StoredReview{
		Reviewer:              reviewer.Hex(),
		Answers:               []string{"yes", "no"},
		AttachmentsIpfsHashes: []string{},
		AttestationID:         refUID.Hex(),
		RequestName:           "R1",
	}
	// The prior amendment has its own attestation ID; the new amendment
	// must still chain to the original review's refUID, not to it.
	prior := []index.StoredAmendment{{
		RefUID:        refUID.Hex(),
		Amendment:     "first correction",
		AttestationID: "0xpriorattestation",
		CreatedAt:     100,
	}}

	runner.On("Sender").Return(reviewer)
	resolver.On("GetRequestNames", ctx).Return([]string{"R1", "R2"}, nil)
	repo.On("FindReviewByAttestationID", ctx, []string{"R1", "R2"}, refUID.Hex()).Return(original, nil)
	repo.On("AmendmentsByRefUID", ctx, refUID.Hex()).Return(prior, nil)
	resolver.On("ResolveSubmissionContext", ctx, "R1").Return(testContext(), nil)

	var rendered evidence.RenderRequest
	renderer.On("Render", ctx, mock.AnythingOfType("evidence.RenderRequest")).
		Run(func(args mock.Arguments) { rendered = args.Get(1).(evidence.RenderRequest) }).
		Return("QmAmendmentEvidence", nil)

	var packedRefUID [32]byte
	var encoded []byte
	resolver.On("PackAttest", amendSchema, mock.AnythingOfType("[32]uint8"), mock.Anything).
		Run(func(args mock.Arguments) {
			packedRefUID = args.Get(1).([32]byte)
			encoded = args.Get(2).([]byte)
		}).
		Return([]byte{0x01}, nil)
	resolver.On("EASAddress").Return(easAddr)

	newAttestation := common.HexToHash("0x4242424242424242424242424242424242424242424242424242424242424242")
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.HexToHash("0xfeed"),
		Logs:   []*types.Log{{Data: newAttestation.Bytes()}},
	}
	runner.On("Execute", ctx, mock.Anything).Return(receipt, nil)
	repo.On("SaveAmendment", ctx, mock.MatchedBy(func(a index.StoredAmendment) bool {
		return a.RefUID == refUID.Hex() && a.AttestationID == newAttestation.Hex()
	})).Return(nil)

	result, err := service.CreateAmendment(ctx, CreateAmendmentInput{
		RequestName: "R1",
		HypercertID: big.NewInt(7),
		Amendment:   "clarify Q2 answer",
		RefUID:      refUID,
	})
	require.NoError(t, err)
	assert.Equal(t, newAttestation, result.AttestationID)

	// Attestation refUID equals the original review's attestation ID.
	assert.Equal(t, [32]byte(refUID), packedRefUID)

	// Rendered evidence recapitulates the whole history, new entry last.
	require.Len(t, rendered.Amendments, 2)
	assert.Equal(t, "first correction", rendered.Amendments[0].Amendment)
	assert.Equal(t, "clarify Q2 answer", rendered.Amendments[1].Amendment)
	assert.Equal(t, []string{"yes", "no"}, rendered.Answers)
	assert.Equal(t, refUID.Hex(), rendered.AttestationID)

	decoded, err := eas.DecodeAmendment(encoded)
	require.NoError(t, err)
	assert.Equal(t, "clarify Q2 answer", decoded.Amendment)
	assert.Equal(t, "R1", decoded.RequestName)
}

func TestCreateAmendmentWithoutParentAborts(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	refUID := common.HexToHash("0x9999999999999999999999999999999999999999999999999999999999999999")

	runner.On("Sender").Return(reviewer)
	resolver.On("GetRequestNames", ctx).Return([]string{"R1"}, nil)
	repo.On("FindReviewByAttestationID", ctx, []string{"R1"}, refUID.Hex()).
		Return(nil, index.ErrReviewNotFound)

	_, err := service.CreateAmendment(ctx, CreateAmendmentInput{
		RequestName: "R1",
		Amendment:   "orphan",
		RefUID:      refUID,
	})
	require.ErrorIs(t, err, index.ErrReviewNotFound)
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
	runner.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestAmendmentChainResolutionIsIdempotent(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	service := newTestService(resolver, runner, renderer, repo)
	ctx := context.Background()

	refUID := attestationID
	original := &index.StoredReview{AttestationID: refUID.Hex(), RequestName: "R1"}
	amendments := []index.StoredAmendment{
		{RefUID: refUID.Hex(), Amendment: "one", CreatedAt: 1},
		{RefUID: refUID.Hex(), Amendment: "two", CreatedAt: 2},
	}

	resolver.On("GetRequestNames", ctx).Return([]string{"R1"}, nil)
	repo.On("FindReviewByAttestationID", ctx, []string{"R1"}, refUID.Hex()).Return(original, nil)
	repo.On("AmendmentsByRefUID", ctx, refUID.Hex()).Return(amendments, nil)

	_, first, err := service.AmendmentChain(ctx, refUID)
	require.NoError(t, err)
	_, second, err := service.AmendmentChain(ctx, refUID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "one", first[0].Amendment)
	assert.Equal(t, "two", first[1].Amendment)
}
