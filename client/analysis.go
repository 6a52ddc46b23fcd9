// Package client is a Go client for the dustwatch detection API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// TransactionDetails is the normalized view of a transaction the server classified.
type TransactionDetails struct {
	Sender      string  `json:"sender"`
	Receiver    string  `json:"receiver"`
	Amount      float64 `json:"amount"`
	TokenMint   string  `json:"token_mint"`
	Timestamp   string  `json:"timestamp"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
}

// AnalysisResult is the server's verdict for one transaction.
type AnalysisResult struct {
	Classification  string             `json:"classification"` // UNKNOWN, DUSTING_SUSPECTED, ADDRESS_POISONING_SUSPECTED, LEGITIMATE
	ConfidenceScore float64            `json:"confidence_score"`
	Reasoning       []string           `json:"reasoning"`
	Details         TransactionDetails `json:"details"`
}

// AnalyzeResponse is the success envelope of POST /api/analyze.
type AnalyzeResponse struct {
	TransactionSignature string          `json:"transaction_signature"`
	Analysis             *AnalysisResult `json:"analysis"`
}

// APIError is returned when the server answers with an error envelope.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s (%s)", e.StatusCode, e.Message, e.Details)
}

// Client is the HTTP client for the detection API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new detection API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Analyze asks the server to classify a transaction.
func (c *Client) Analyze(ctx context.Context, signature string) (*AnalyzeResponse, error) {
	body, err := json.Marshal(map[string]string{"transaction_signature": signature})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Analysis == nil {
		return nil, fmt.Errorf("response for %s has no analysis", signature)
	}

	c.logger.Debug("transaction analyzed",
		"signature", signature,
		"classification", result.Analysis.Classification,
		"request_id", resp.Header.Get("X-Request-ID"),
	)
	return &result, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// parseErrorResponse attempts to parse an error envelope from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error *struct {
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil || errResp.Error.Message == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error.Message,
		Details:    errResp.Error.Details,
	}
}
