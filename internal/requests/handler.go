package requests

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/chain"
	"deresy/review-portal/review-portal-backend/internal/txflow"
)

// Handler handles HTTP requests for campaign and form management
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new requests handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers request and form routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	{
		requests.GET("", h.listRequests)
		requests.GET("/:name", h.getRequest)
		requests.GET("/:name/form", h.getRequestForm)
		requests.POST("", h.createRequest)
		requests.POST("/:name/close", h.closeRequest)
	}

	forms := router.Group("/forms")
	{
		forms.POST("", h.createForm)
		forms.GET("", h.getFormsTotal)
		forms.GET("/:name", h.getForm)
	}

	router.GET("/payment-options", h.getPaymentOptions)
}

// CreateFormRequest is the POST /api/v1/forms payload
type CreateFormRequest struct {
	Name          string     `json:"name" binding:"required"`
	Questions     []string   `json:"questions" binding:"required"`
	Choices       [][]string `json:"choices"`
	QuestionTypes []string   `json:"questionTypes" binding:"required"`
}

// CreateRequestRequest is the POST /api/v1/requests payload
type CreateRequestRequest struct {
	Name                string   `json:"name" binding:"required"`
	Reviewers           []string `json:"reviewers"`
	ReviewerContracts   []string `json:"reviewerContracts"`
	HypercertIDs        []string `json:"hypercertIDs"`
	HypercertIPFSHashes []string `json:"hypercertIPFSHashes"`
	RequestIPFSHash     string   `json:"requestIPFSHash"`
	ReviewFormName      string   `json:"reviewFormName" binding:"required"`
	Paid                bool     `json:"paid"`
	RewardPerReview     string   `json:"rewardPerReview"`
	ReviewsPerHypercert string   `json:"reviewsPerHypercert"`
	TotalReward         string   `json:"totalReward"`
	PaymentToken        string   `json:"paymentToken"`
}

// TxReceiptResponse reports a confirmed ledger mutation
type TxReceiptResponse struct {
	TxHash string `json:"txHash"`
}

// createForm handles POST /api/v1/forms
func (h *Handler) createForm(c *gin.Context) {
	var req CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.service.CreateReviewForm(c.Request.Context(), req.Name, req.Questions, req.Choices, req.QuestionTypes)
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TxReceiptResponse{TxHash: receipt.TxHash.Hex()})
}

// createRequest handles POST /api/v1/requests
func (h *Handler) createRequest(c *gin.Context) {
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.service.CreateRequest(c.Request.Context(), input)
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TxReceiptResponse{TxHash: receipt.TxHash.Hex()})
}

// closeRequest handles POST /api/v1/requests/:name/close
func (h *Handler) closeRequest(c *gin.Context) {
	receipt, err := h.service.CloseRequest(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, ErrRequestClosed) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, TxReceiptResponse{TxHash: receipt.TxHash.Hex()})
}

// listRequests handles GET /api/v1/requests
func (h *Handler) listRequests(c *gin.Context) {
	names, err := h.service.ListRequestNames(c.Request.Context())
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": names})
}

// getRequest handles GET /api/v1/requests/:name
func (h *Handler) getRequest(c *gin.Context) {
	request, err := h.service.GetRequest(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// getRequestForm handles GET /api/v1/requests/:name/form
func (h *Handler) getRequestForm(c *gin.Context) {
	form, err := h.service.GetRequestForm(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, form)
}

// getForm handles GET /api/v1/forms/:name
func (h *Handler) getForm(c *gin.Context) {
	form, err := h.service.GetForm(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, form)
}

// getFormsTotal handles GET /api/v1/forms
func (h *Handler) getFormsTotal(c *gin.Context) {
	total, err := h.service.FormsTotal(c.Request.Context())
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": total.String()})
}

// getPaymentOptions handles GET /api/v1/payment-options
func (h *Handler) getPaymentOptions(c *gin.Context) {
	options, err := h.service.PaymentOptions(c.Request.Context())
	if err != nil {
		h.writeLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"paymentOptions": options})
}

func (h *Handler) writeLedgerError(c *gin.Context, err error) {
	var (
		resErr *chain.ResolutionError
		txErr  *txflow.TransactionError
	)

	switch {
	case errors.Is(err, ErrKindArgsMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &resErr):
		h.logger.Error("Chain resolution failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &txErr):
		h.logger.Error("Ledger transaction failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "stage": txErr.Stage})
	default:
		h.logger.Error("Request operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (r CreateRequestRequest) toInput() (CreateRequestInput, error) {
	reviewers, err := parseAddresses(r.Reviewers)
	if err != nil {
		return CreateRequestInput{}, err
	}
	reviewerContracts, err := parseAddresses(r.ReviewerContracts)
	if err != nil {
		return CreateRequestInput{}, err
	}
	hypercertIDs, err := parseBigInts(r.HypercertIDs)
	if err != nil {
		return CreateRequestInput{}, err
	}

	if !r.Paid {
		return CreateRequestInput{
			Kind: chain.RequestUnpaid,
			Unpaid: &chain.UnpaidRequestArgs{
				Name:                r.Name,
				Reviewers:           reviewers,
				ReviewerContracts:   reviewerContracts,
				HypercertIDs:        hypercertIDs,
				HypercertIPFSHashes: r.HypercertIPFSHashes,
				RequestIPFSHash:     r.RequestIPFSHash,
				ReviewFormName:      r.ReviewFormName,
			},
		}, nil
	}

	rewardPerReview, err := parseBigInt(r.RewardPerReview, "rewardPerReview")
	if err != nil {
		return CreateRequestInput{}, err
	}
	reviewsPerHypercert, err := parseBigInt(r.ReviewsPerHypercert, "reviewsPerHypercert")
	if err != nil {
		return CreateRequestInput{}, err
	}
	totalReward, err := parseBigInt(r.TotalReward, "totalReward")
	if err != nil {
		return CreateRequestInput{}, err
	}

	return CreateRequestInput{
		Kind: chain.RequestPaid,
		Paid: &chain.PaidRequestArgs{
			Name:                r.Name,
			Reviewers:           reviewers,
			ReviewerContracts:   reviewerContracts,
			HypercertIDs:        hypercertIDs,
			HypercertIPFSHashes: r.HypercertIPFSHashes,
			RequestIPFSHash:     r.RequestIPFSHash,
			RewardPerReview:     rewardPerReview,
			ReviewsPerHypercert: reviewsPerHypercert,
			TotalReward:         totalReward,
			PaymentToken:        common.HexToAddress(r.PaymentToken),
			ReviewFormName:      r.ReviewFormName,
		},
	}, nil
}

func parseAddresses(raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if !common.IsHexAddress(s) {
			return nil, errors.New("requests: invalid address " + s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}

func parseBigInts(raw []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(raw))
	for _, s := range raw {
		v, err := parseBigInt(s, "hypercertIDs")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseBigInt(raw, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.New("requests: " + field + " must be a decimal integer")
	}
	return v, nil
}
