// Package reviews implements the attestation-chained submission pipeline:
// resolve ledger context, anchor evidence, encode the payload, submit and
// confirm the attestation, and persist the minted identifier to the
// off-chain index so later amendments stay linkable.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/chain"
	"deresy/review-portal/review-portal-backend/internal/eas"
	"deresy/review-portal/review-portal-backend/internal/evidence"
	"deresy/review-portal/review-portal-backend/internal/index"
	"deresy/review-portal/review-portal-backend/internal/txflow"
)

// ErrNotWhitelisted rejects a submission from an address the request's
// contract does not accept as a reviewer.
var ErrNotWhitelisted = errors.New("reviews: sender is not a whitelisted reviewer for this request")

// ErrAnswerCountMismatch rejects a submission whose answer list does not
// line up one-to-one with the form's questions.
var ErrAnswerCountMismatch = errors.New("reviews: answer count does not match question count")

// Resolver is the slice of the chain client the pipeline reads through.
type Resolver interface {
	ResolveSubmissionContext(ctx context.Context, requestName string) (*chain.SubmissionContext, error)
	GetRequestNames(ctx context.Context) ([]string, error)
	IsReviewer(ctx context.Context, reviewer common.Address, requestName string) (bool, error)
	PackAttest(schema [32]byte, refUID [32]byte, encoded []byte) ([]byte, error)
	EASAddress() common.Address
}

// TxRunner submits and confirms the attestation transaction.
type TxRunner interface {
	Execute(ctx context.Context, spec txflow.CallSpec) (*types.Receipt, error)
	Sender() common.Address
}

// Renderer anchors evidence documents to content-addressed storage.
type Renderer interface {
	Render(ctx context.Context, req evidence.RenderRequest) (string, error)
}

// Service runs review and amendment submissions end to end. One in-flight
// submission per call; stages run strictly in order because each consumes
// the previous stage's output.
type Service struct {
	resolver Resolver
	runner   TxRunner
	renderer Renderer
	repo     index.Repository
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new review pipeline service
func NewService(resolver Resolver, runner TxRunner, renderer Renderer, repo index.Repository, logger *zap.Logger) *Service {
	return &Service{
		resolver: resolver,
		runner:   runner,
		renderer: renderer,
		repo:     repo,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitReview runs the full pipeline for a new review: resolve, anchor,
// encode, attest, index.
func (s *Service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*SubmissionResult, error) {
	reviewer := s.runner.Sender()

	sctx, err := s.resolver.ResolveSubmissionContext(ctx, input.RequestName)
	if err != nil {
		s.logger.Error("resolution failed, nothing submitted",
			zap.String("stage", "resolve"),
			zap.String("request_name", input.RequestName),
			zap.Error(err))
		return nil, err
	}

	whitelisted, err := s.resolver.IsReviewer(ctx, reviewer, input.RequestName)
	if err != nil {
		return nil, err
	}
	if !whitelisted {
		return nil, ErrNotWhitelisted
	}

	if len(input.Answers) != len(sctx.Form.Questions) {
		return nil, fmt.Errorf("%w: %d answers for %d questions",
			ErrAnswerCountMismatch, len(input.Answers), len(sctx.Form.Questions))
	}

	createdAt := s.now().Unix()

	pdfHash, evidenceMissing := s.renderEvidence(ctx, evidence.RenderRequest{
		Name:                  input.RequestName,
		AccountID:             reviewer.Hex(),
		HypercertID:           bigIntString(input.HypercertID),
		TokenID:               input.TokenID,
		EASSchemaID:           common.Hash(sctx.ReviewsSchemaID).Hex(),
		Questions:             sctx.Form.Questions,
		QuestionOptions:       sctx.Form.Choices,
		Answers:               input.Answers,
		ReviewCreatedAt:       createdAt,
		AttachmentsIpfsHashes: input.AttachmentsIpfsHashes,
	})

	payload, err := eas.ReviewData{
		RequestName:           input.RequestName,
		HypercertID:           input.HypercertID,
		Answers:               input.Answers,
		Questions:             sctx.Form.Questions,
		QuestionTypes:         sctx.Form.QuestionTypes,
		PDFIpfsHash:           pdfHash,
		AttachmentsIpfsHashes: input.AttachmentsIpfsHashes,
	}.Encode()
	if err != nil {
		return nil, err
	}

	// Original reviews carry the zero refUID; amendments chain to them.
	calldata, err := s.resolver.PackAttest(sctx.ReviewsSchemaID, [32]byte{}, payload)
	if err != nil {
		return nil, &eas.EncodingError{Kind: "attest call", Err: err}
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    s.resolver.EASAddress(),
		Data:  calldata,
		Title: "Transaction in progress",
	})
	if err != nil {
		s.logger.Error("attestation transaction failed",
			zap.String("stage", "attest"),
			zap.String("request_name", input.RequestName),
			zap.Error(err))
		return nil, err
	}

	attestationID, err := txflow.AttestationIDFromReceipt(receipt)
	if err != nil {
		return nil, err
	}

	stored := index.StoredReview{
		Reviewer:              reviewer.Hex(),
		HypercertID:           bigIntString(input.HypercertID),
		Answers:               input.Answers,
		AttachmentsIpfsHashes: input.AttachmentsIpfsHashes,
		PDFIpfsHash:           pdfHash,
		AttestationID:         attestationID.Hex(),
		CreatedAt:             createdAt,
	}

	if err := s.repo.SaveReview(ctx, input.RequestName, stored); err != nil {
		return nil, s.handleIndexWriteFailure(ctx, err, index.PendingIndexWrite{
			ID:            uuid.New().String(),
			Kind:          "review",
			RequestName:   input.RequestName,
			AttestationID: attestationID.Hex(),
			Review:        &stored,
			CreatedAt:     s.now().Unix(),
		})
	}

	s.logger.Info("review attested and indexed",
		zap.String("request_name", input.RequestName),
		zap.String("reviewer", reviewer.Hex()),
		zap.String("attestation_id", attestationID.Hex()))

	return &SubmissionResult{
		AttestationID:   attestationID,
		TxHash:          receipt.TxHash,
		PDFIpfsHash:     pdfHash,
		EvidenceMissing: evidenceMissing,
	}, nil
}

// CreateAmendment appends an amendment to an existing review's chain. The
// full prior amendment list and the original review are resolved first;
// the rendered evidence recapitulates the entire history including the
// amendment being created.
func (s *Service) CreateAmendment(ctx context.Context, input CreateAmendmentInput) (*SubmissionResult, error) {
	reviewer := s.runner.Sender()

	names, err := s.resolver.GetRequestNames(ctx)
	if err != nil {
		return nil, err
	}

	original, err := s.repo.FindReviewByAttestationID(ctx, names, input.RefUID.Hex())
	if err != nil {
		if errors.Is(err, index.ErrReviewNotFound) {
			s.logger.Error("amendment refused, no resolvable parent",
				zap.String("ref_uid", input.RefUID.Hex()))
		}
		return nil, err
	}

	prior, err := s.repo.AmendmentsByRefUID(ctx, input.RefUID.Hex())
	if err != nil {
		return nil, err
	}

	createdAt := s.now().Unix()

	// Append-only: the new entry goes last, locally, before rendering.
	history := make([]evidence.AmendmentEntry, 0, len(prior)+1)
	for _, a := range prior {
		history = append(history, evidence.AmendmentEntry{
			Amendment:             a.Amendment,
			AttachmentsIpfsHashes: a.AttachmentsIpfsHashes,
			CreatedAt:             a.CreatedAt,
		})
	}
	history = append(history, evidence.AmendmentEntry{
		Amendment:             input.Amendment,
		AttachmentsIpfsHashes: input.AttachmentsIpfsHashes,
		CreatedAt:             createdAt,
	})

	sctx, err := s.resolver.ResolveSubmissionContext(ctx, input.RequestName)
	if err != nil {
		return nil, err
	}

	pdfHash, evidenceMissing := s.renderEvidence(ctx, evidence.RenderRequest{
		Name:                  input.RequestName,
		AccountID:             reviewer.Hex(),
		HypercertID:           bigIntString(input.HypercertID),
		TokenID:               input.TokenID,
		EASSchemaID:           common.Hash(sctx.ReviewsSchemaID).Hex(),
		Questions:             sctx.Form.Questions,
		QuestionOptions:       sctx.Form.Choices,
		Answers:               original.Answers,
		ReviewCreatedAt:       createdAt,
		AttachmentsIpfsHashes: original.AttachmentsIpfsHashes,
		Amendments:            history,
		AttestationID:         input.RefUID.Hex(),
	})

	payload, err := eas.AmendmentData{
		RequestName:           input.RequestName,
		HypercertID:           input.HypercertID,
		Amendment:             input.Amendment,
		PDFIpfsHash:           pdfHash,
		AttachmentsIpfsHashes: input.AttachmentsIpfsHashes,
	}.Encode()
	if err != nil {
		return nil, err
	}

	calldata, err := s.resolver.PackAttest(sctx.AmendmentsSchemaID, input.RefUID, payload)
	if err != nil {
		return nil, &eas.EncodingError{Kind: "attest call", Err: err}
	}

	receipt, err := s.runner.Execute(ctx, txflow.CallSpec{
		To:    s.resolver.EASAddress(),
		Data:  calldata,
		Title: "Transaction in progress",
	})
	if err != nil {
		s.logger.Error("amendment transaction failed",
			zap.String("stage", "attest"),
			zap.String("ref_uid", input.RefUID.Hex()),
			zap.Error(err))
		return nil, err
	}

	attestationID, err := txflow.AttestationIDFromReceipt(receipt)
	if err != nil {
		return nil, err
	}

	stored := index.StoredAmendment{
		RefUID:                input.RefUID.Hex(),
		RequestName:           input.RequestName,
		Reviewer:              reviewer.Hex(),
		Amendment:             input.Amendment,
		AttachmentsIpfsHashes: input.AttachmentsIpfsHashes,
		PDFIpfsHash:           pdfHash,
		AttestationID:         attestationID.Hex(),
		CreatedAt:             createdAt,
	}

	if err := s.repo.SaveAmendment(ctx, stored); err != nil {
		return nil, s.handleIndexWriteFailure(ctx, err, index.PendingIndexWrite{
			ID:            uuid.New().String(),
			Kind:          "amendment",
			RequestName:   input.RequestName,
			AttestationID: attestationID.Hex(),
			Amendment:     &stored,
			CreatedAt:     s.now().Unix(),
		})
	}

	s.logger.Info("amendment attested and indexed",
		zap.String("request_name", input.RequestName),
		zap.String("ref_uid", input.RefUID.Hex()),
		zap.String("attestation_id", attestationID.Hex()))

	return &SubmissionResult{
		AttestationID:   attestationID,
		TxHash:          receipt.TxHash,
		PDFIpfsHash:     pdfHash,
		EvidenceMissing: evidenceMissing,
	}, nil
}

// AmendmentChain returns the original review and its ordered amendment
// history for a refUID.
func (s *Service) AmendmentChain(ctx context.Context, refUID common.Hash) (*index.StoredReview, []index.StoredAmendment, error) {
	names, err := s.resolver.GetRequestNames(ctx)
	if err != nil {
		return nil, nil, err
	}
	original, err := s.repo.FindReviewByAttestationID(ctx, names, refUID.Hex())
	if err != nil {
		return nil, nil, err
	}
	amendments, err := s.repo.AmendmentsByRefUID(ctx, refUID.Hex())
	if err != nil {
		return nil, nil, err
	}
	return original, amendments, nil
}

// ReviewsForRequest returns the indexed reviews of one request.
func (s *Service) ReviewsForRequest(ctx context.Context, requestName string) (*index.RequestReviews, error) {
	return s.repo.GetRequestReviews(ctx, requestName)
}

// renderEvidence anchors the evidence document, degrading to an empty
// reference when the renderer fails. The submission continues either way.
func (s *Service) renderEvidence(ctx context.Context, req evidence.RenderRequest) (string, bool) {
	hash, err := s.renderer.Render(ctx, req)
	if err != nil {
		s.logger.Warn("evidence anchoring failed, attesting with empty reference",
			zap.String("stage", "anchor"),
			zap.String("request_name", req.Name),
			zap.Error(err))
		return "", true
	}
	return hash, false
}

// handleIndexWriteFailure queues the orphaned attestation for the
// reconciliation worker. The attestation exists on-chain either way; the
// returned error stays an IndexWriteError so callers can tell this apart
// from pre-confirmation failures.
func (s *Service) handleIndexWriteFailure(ctx context.Context, writeErr error, pending index.PendingIndexWrite) error {
	s.logger.Error("index write failed after on-chain confirmation",
		zap.String("stage", "index"),
		zap.String("attestation_id", pending.AttestationID),
		zap.String("request_name", pending.RequestName),
		zap.Error(writeErr))

	if err := s.repo.EnqueuePendingWrite(ctx, pending); err != nil {
		s.logger.Error("failed to queue pending index write, manual reconciliation required",
			zap.String("attestation_id", pending.AttestationID),
			zap.Error(err))
	}
	return writeErr
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
