// Package helius looks up enriched transactions through the Helius
// enhanced transactions API (POST /v0/transactions).
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/dustwatch/service/detector"
	"github.com/brojonat/dustwatch/service/metrics"
)

// DefaultBaseURL is the public Helius API host.
const DefaultBaseURL = "https://api.helius.xyz"

// Source identifies this provider in logs, errors, and metrics.
const Source = "helius"

// maxErrorBodySize caps how much of an error response is echoed into errors.
const maxErrorBodySize = 512

// Client fetches transactions from Helius.
// It performs exactly one request per lookup and never retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a new Helius client.
// If httpClient is nil a client with a 30s timeout is used.
// If metrics is nil, no metrics will be recorded.
func NewClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

type transactionsRequest struct {
	Transactions []string `json:"transactions"`
}

// LookupTransaction implements detector.TransactionLookup.
// An empty response array yields (nil, nil).
func (c *Client) LookupTransaction(ctx context.Context, signature string) (*detector.RawTransaction, error) {
	start := time.Now()
	raw, err := c.lookup(ctx, signature)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case raw == nil:
		status = "empty"
	}
	if c.metrics != nil {
		c.metrics.RecordLookup(Source, status, time.Since(start).Seconds())
	}

	return raw, err
}

func (c *Client) lookup(ctx context.Context, signature string) (*detector.RawTransaction, error) {
	body, err := json.Marshal(transactionsRequest{Transactions: []string{signature}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "calling helius transactions endpoint", "signature", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests && c.metrics != nil {
			c.metrics.RecordRateLimitHit(Source)
		}
		return nil, parseErrorResponse(resp)
	}

	var txns []detector.RawTransaction
	if err := json.NewDecoder(resp.Body).Decode(&txns); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(txns) == 0 {
		return nil, nil
	}

	c.logger.DebugContext(ctx, "helius returned transaction",
		"signature", signature,
		"records", len(txns),
	)

	return &txns[0], nil
}

// endpoint builds the transactions URL with the API key as a query parameter.
func (c *Client) endpoint() string {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	return c.baseURL + "/v0/transactions/?" + q.Encode()
}

// parseErrorResponse turns a non-200 response into an error.
// Helius error bodies look like {"error": "..."}.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Error)
}
