// Package evidence talks to the remote PDF rendering service that turns a
// structured review into a durable, content-addressed document.
package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const renderPath = "/api/generate_pdf"

// EvidenceError wraps a failed or malformed rendering call. It is
// non-fatal to a submission: the caller proceeds with an empty evidence
// reference and the resulting attestation is flagged evidence-missing.
type EvidenceError struct {
	Err error
}

func (e *EvidenceError) Error() string { return fmt.Sprintf("evidence: rendering failed: %v", e.Err) }
func (e *EvidenceError) Unwrap() error { return e.Err }

// AmendmentEntry is one element of the amendment history embedded in a
// rendered document.
type AmendmentEntry struct {
	Amendment             string   `json:"amendment"`
	AttachmentsIpfsHashes []string `json:"attachmentsIpfsHashes"`
	CreatedAt             int64    `json:"createdAt"`
}

// RenderRequest is the rendering service's request contract. For
// amendments the full prior history and the original answers are
// included so the document recapitulates everything, not just the delta.
type RenderRequest struct {
	Name                  string           `json:"name"`
	AccountID             string           `json:"accountID"`
	HypercertID           string           `json:"hypercertID"`
	TokenID               string           `json:"tokenID"`
	EASSchemaID           string           `json:"easSchemaID"`
	Questions             []string         `json:"questions"`
	QuestionOptions       [][]string       `json:"questionOptions"`
	Answers               []string         `json:"answers"`
	ReviewCreatedAt       int64            `json:"reviewCreatedAt"`
	AttachmentsIpfsHashes []string         `json:"attachmentsIpfsHashes"`
	Amendments            []AmendmentEntry `json:"amendments,omitempty"`
	AttestationID         string           `json:"attestationID,omitempty"`
}

type renderResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Client posts render requests to the configured rendering service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a rendering client against the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Render sends the request and returns the content-addressed reference of
// the generated document.
func (c *Client) Render(ctx context.Context, req RenderRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", &EvidenceError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+renderPath, bytes.NewReader(body))
	if err != nil {
		return "", &EvidenceError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &EvidenceError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &EvidenceError{Err: fmt.Errorf("renderer returned status %d", resp.StatusCode)}
	}

	var rendered renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&rendered); err != nil {
		return "", &EvidenceError{Err: err}
	}
	if rendered.IpfsHash == "" {
		return "", &EvidenceError{Err: fmt.Errorf("renderer response missing IpfsHash")}
	}

	return rendered.IpfsHash, nil
}
