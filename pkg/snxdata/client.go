// Package snxdata talks to the Synthetix release registry: ordered version
// descriptors for each historical contract deployment, and contract ABIs.
package snxdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for registry requests
var (
	ErrRequestFailed  = errors.New("registry request failed")
	ErrDecodingFailed = errors.New("registry response decoding failed")
)

// Client represents a release registry client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new registry client with custom HTTP client and base URL
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// Version describes one historical deployment of a contract on a network
type Version struct {
	Release string `json:"release"`
	Tag     string `json:"tag"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Address string `json:"address"`
}

// Source holds the interface description of a contract
type Source struct {
	ABI json.RawMessage `json:"abi"`
}

// Versions retrieves the deployment history of a named contract on a named
// network, oldest release first as served by the registry.
func (c *Client) Versions(ctx context.Context, network, contract string) ([]Version, error) {
	url := fmt.Sprintf("%s/v2/versions/%s/%s", c.baseURL, network, contract)

	var versions []Version
	if err := c.getJSON(ctx, url, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// ABI retrieves the interface description for a named contract.
func (c *Client) ABI(ctx context.Context, contract string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/v2/sources/%s", c.baseURL, contract)

	var source Source
	if err := c.getJSON(ctx, url, &source); err != nil {
		return nil, err
	}
	return source.ABI, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", ErrRequestFailed, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: making request: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status code: %d", ErrRequestFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodingFailed, err)
	}
	return nil
}
