package reviews

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/chain"
	"deresy/review-portal/review-portal-backend/internal/index"
	"deresy/review-portal/review-portal-backend/internal/txflow"
)

// Handler handles HTTP requests for review and amendment submissions
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reviews handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers review routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reviews := router.Group("/reviews")
	{
		reviews.POST("", h.submitReview)
		reviews.GET("/:requestName", h.getRequestReviews)
	}

	amendments := router.Group("/amendments")
	{
		amendments.POST("", h.createAmendment)
		amendments.GET("/:refUID", h.getAmendmentChain)
	}
}

// SubmitReviewRequest is the POST /api/v1/reviews payload
type SubmitReviewRequest struct {
	RequestName           string   `json:"requestName" binding:"required"`
	HypercertID           string   `json:"hypercertID"`
	TokenID               string   `json:"tokenID"`
	Answers               []string `json:"answers" binding:"required"`
	AttachmentsIpfsHashes []string `json:"attachmentsIpfsHashes"`
}

// CreateAmendmentRequest is the POST /api/v1/amendments payload
type CreateAmendmentRequest struct {
	RequestName           string   `json:"requestName" binding:"required"`
	HypercertID           string   `json:"hypercertID"`
	TokenID               string   `json:"tokenID"`
	Amendment             string   `json:"amendment" binding:"required"`
	RefUID                string   `json:"refUID" binding:"required"`
	AttachmentsIpfsHashes []string `json:"attachmentsIpfsHashes"`
}

// SubmissionResponse reports a confirmed attestation back to the caller
type SubmissionResponse struct {
	AttestationID   string `json:"attestationID"`
	TxHash          string `json:"txHash"`
	PDFIpfsHash     string `json:"pdfIpfsHash"`
	EvidenceMissing bool   `json:"evidenceMissing,omitempty"`
}

// submitReview handles POST /api/v1/reviews
func (h *Handler) submitReview(c *gin.Context) {
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hypercertID, ok := parseHypercertID(req.HypercertID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hypercertID must be a decimal integer"})
		return
	}

	result, err := h.service.SubmitReview(c.Request.Context(), SubmitReviewInput{
		RequestName:           req.RequestName,
		HypercertID:           hypercertID,
		TokenID:               req.TokenID,
		Answers:               req.Answers,
		AttachmentsIpfsHashes: req.AttachmentsIpfsHashes,
	})
	if err != nil {
		h.writeSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submissionResponse(result))
}

// createAmendment handles POST /api/v1/amendments
func (h *Handler) createAmendment(c *gin.Context) {
	var req CreateAmendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refUID, ok := parseRefUID(req.RefUID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refUID must be a 32-byte hex hash"})
		return
	}

	hypercertID, ok := parseHypercertID(req.HypercertID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hypercertID must be a decimal integer"})
		return
	}

	result, err := h.service.CreateAmendment(c.Request.Context(), CreateAmendmentInput{
		RequestName:           req.RequestName,
		HypercertID:           hypercertID,
		TokenID:               req.TokenID,
		Amendment:             req.Amendment,
		RefUID:                refUID,
		AttachmentsIpfsHashes: req.AttachmentsIpfsHashes,
	})
	if err != nil {
		h.writeSubmissionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submissionResponse(result))
}

// getRequestReviews handles GET /api/v1/reviews/:requestName
func (h *Handler) getRequestReviews(c *gin.Context) {
	reviews, err := h.service.ReviewsForRequest(c.Request.Context(), c.Param("requestName"))
	if err != nil {
		h.logger.Error("Failed to load request reviews", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, reviews)
}

// getAmendmentChain handles GET /api/v1/amendments/:refUID
func (h *Handler) getAmendmentChain(c *gin.Context) {
	refUID, ok := parseRefUID(c.Param("refUID"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refUID must be a 32-byte hex hash"})
		return
	}

	original, amendments, err := h.service.AmendmentChain(c.Request.Context(), refUID)
	if err != nil {
		if errors.Is(err, index.ErrReviewNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no review with this attestation ID"})
			return
		}
		h.logger.Error("Failed to resolve amendment chain", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"review":     original,
		"amendments": amendments,
	})
}

// writeSubmissionError maps pipeline failures to HTTP responses. An index
// write failure still reports the minted attestation ID so a client can
// reconcile later.
func (h *Handler) writeSubmissionError(c *gin.Context, err error) {
	var (
		resErr *chain.ResolutionError
		txErr  *txflow.TransactionError
		idxErr *index.IndexWriteError
	)

	switch {
	case errors.Is(err, ErrNotWhitelisted):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAnswerCountMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, index.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &idxErr):
		h.logger.Error("Attestation confirmed but not indexed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":         "attestation confirmed on-chain but indexing failed",
			"attestationID": idxErr.AttestationID,
		})
	case errors.As(err, &resErr):
		h.logger.Error("Chain resolution failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &txErr):
		h.logger.Error("Attestation transaction failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stage": txErr.Stage})
	default:
		h.logger.Error("Review submission failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func submissionResponse(result *SubmissionResult) SubmissionResponse {
	return SubmissionResponse{
		AttestationID:   result.AttestationID.Hex(),
		TxHash:          result.TxHash.Hex(),
		PDFIpfsHash:     result.PDFIpfsHash,
		EvidenceMissing: result.EvidenceMissing,
	}
}

func parseHypercertID(raw string) (*big.Int, bool) {
	if raw == "" {
		return nil, true
	}
	v, ok := new(big.Int).SetString(raw, 10)
	return v, ok
}

func parseRefUID(raw string) (common.Hash, bool) {
	decoded, err := hexutil.Decode(raw)
	if err != nil || len(decoded) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(decoded), true
}
