package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/dustwatch/service/detector"
	"github.com/brojonat/dustwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client looks up transactions directly from a Solana RPC node and shapes
// them like an indexer record. It is the fallback when no indexer key is configured.
type Client struct {
	rpc     RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Solana client.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:     rpcClient,
		logger:  logger,
		metrics: m,
	}
}

// LookupTransaction implements detector.TransactionLookup.
// A transaction unknown to the node yields (nil, nil). There is no retry.
func (c *Client) LookupTransaction(ctx context.Context, signature string) (*detector.RawTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, sig, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	switch {
	case errors.Is(err, rpc.ErrNotFound) || (err == nil && result == nil):
		status = "empty"
	case err != nil:
		status = "error"
		if strings.Contains(err.Error(), "429") && c.metrics != nil {
			c.metrics.RecordRateLimitHit(Source)
		}
	}
	if c.metrics != nil {
		c.metrics.RecordLookup(Source, status, duration)
	}

	if status == "empty" {
		c.logger.DebugContext(ctx, "transaction not found on RPC node", "signature", signature)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getTransaction failed: %w", err)
	}

	raw, err := parseTransactionFromResult(signature, result)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "parsed transaction from RPC",
		"signature", signature,
		"slot", result.Slot,
		"instructions", len(raw.Instructions),
		"token_transfers", len(raw.TokenTransfers),
	)

	return raw, nil
}
