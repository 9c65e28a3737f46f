package reviews

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deresy/review-portal/review-portal-backend/internal/index"
)

func newTestRouter(service *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(service, zap.NewNop())
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestParseRefUIDValidation(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	hash, ok := parseRefUID(valid)
	require.True(t, ok)
	assert.Equal(t, valid, hash.Hex())

	for _, raw := range []string{
		"",
		strings.Repeat("ab", 33),        // no 0x prefix
		"0x" + strings.Repeat("ab", 16), // too short
		"0x" + strings.Repeat("zz", 32), // right length, not hex
		"0x" + strings.Repeat("ab", 31) + "g1",
	} {
		_, ok := parseRefUID(raw)
		assert.False(t, ok, "accepted %q", raw)
	}
}

func TestCreateAmendmentRejectsMalformedRefUID(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	router := newTestRouter(newTestService(resolver, runner, renderer, repo))

	body := `{"requestName":"R1","amendment":"fix","refUID":"0x` + strings.Repeat("zz", 32) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/amendments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	resolver.AssertNotCalled(t, "ResolveSubmissionContext")
	runner.AssertNotCalled(t, "Execute")
}

func TestGetRequestReviewsEmptyIndex(t *testing.T) {
	resolver := new(MockResolver)
	runner := new(MockRunner)
	renderer := new(MockRenderer)
	repo := new(MockRepo)
	router := newTestRouter(newTestService(resolver, runner, renderer, repo))

	repo.On("GetRequestReviews", mock.Anything, "R1").
		Return(&index.RequestReviews{RequestName: "R1", Reviews: []index.StoredReview{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/R1", nil)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload index.RequestReviews
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "R1", payload.RequestName)
	assert.Empty(t, payload.Reviews)
}
