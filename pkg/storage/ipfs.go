// Package storage fetches content-addressed evidence documents through
// an IPFS HTTP gateway.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGateway is used when no gateway URL is configured.
const DefaultGateway = "https://ipfs.io"

// GatewayClient reads pinned content back through a public or private
// IPFS gateway. The portal never writes to IPFS itself; the evidence
// renderer pins documents and returns their CIDs.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a new IPFS gateway client
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	if baseURL == "" {
		baseURL = DefaultGateway
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the gateway URL serving a CID.
func (c *GatewayClient) URL(cid string) string {
	return c.baseURL + "/ipfs/" + url.PathEscape(cid)
}

// ValidCID reports whether a string plausibly names IPFS content. It
// accepts CIDv0 (Qm..., 46 chars) and base32 CIDv1 (b...).
func ValidCID(cid string) bool {
	if strings.HasPrefix(cid, "Qm") && len(cid) == 46 {
		return true
	}
	if strings.HasPrefix(cid, "b") && len(cid) >= 59 {
		for _, r := range cid[1:] {
			if !(r >= 'a' && r <= 'z' || r >= '2' && r <= '7') {
				return false
			}
		}
		return true
	}
	return false
}

// Fetch streams the content behind a CID. The caller owns the returned
// reader and must close it.
func (c *GatewayClient) Fetch(ctx context.Context, cid string) (io.ReadCloser, string, error) {
	if !ValidCID(cid) {
		return nil, "", fmt.Errorf("storage: %q is not a valid CID", cid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(cid), nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: building gateway request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: fetching %s: %w", cid, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("storage: gateway returned status %d for %s", resp.StatusCode, cid)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
