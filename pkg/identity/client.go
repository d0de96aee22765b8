// Package identity resolves nyms to their wallet source addresses through
// the identity provider API.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openwallet/nmc-attestor/pkg/config"
)

// ErrNymNotFound is returned when the identity provider has no record of the nym.
var ErrNymNotFound = errors.New("nym not found")

const defaultRequestTimeout = 15 * time.Second

// Nym is an identity provider record.
type Nym struct {
	ID            string `json:"id"`
	SourceAddress string `json:"source_address"`
	DisplayName   string `json:"display_name,omitempty"`
}

// Client is an HTTP client for the identity provider.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an identity provider client.
func NewClient(cfg *config.IdentityConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("identity base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid identity base URL: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.BearerToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// GetNym fetches a nym record by ID.
func (c *Client) GetNym(ctx context.Context, nymID string) (*Nym, error) {
	endpoint := fmt.Sprintf("%s/v1/nyms/%s", c.baseURL, url.PathEscape(nymID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nym request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("nym %s: %w", nymID, ErrNymNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var nym Nym
	if err := json.NewDecoder(resp.Body).Decode(&nym); err != nil {
		return nil, fmt.Errorf("failed to decode nym response: %w", err)
	}
	if nym.ID == "" {
		nym.ID = nymID
	}

	return &nym, nil
}

// SourceAddress resolves the wallet address attestations for this nym are
// signed with.
func (c *Client) SourceAddress(ctx context.Context, nymID string) (string, error) {
	nym, err := c.GetNym(ctx, nymID)
	if err != nil {
		return "", err
	}
	if nym.SourceAddress == "" {
		return "", fmt.Errorf("nym %s has no source address", nymID)
	}
	return nym.SourceAddress, nil
}
