// Package lookup builds the transaction lookup for the configured provider.
package lookup

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brojonat/dustwatch/service/detector"
	"github.com/brojonat/dustwatch/service/helius"
	"github.com/brojonat/dustwatch/service/metrics"
	"github.com/brojonat/dustwatch/service/solana"
)

// Providers.
const (
	ProviderHelius = "helius"
	ProviderRPC    = "rpc"
)

// Options selects and configures a lookup provider.
type Options struct {
	Provider     string
	HeliusAPIKey string
	HeliusAPIURL string
	RPCURLs      []string
	HTTPClient   *http.Client
}

// New returns the lookup for opts.Provider and its source name.
// If m is nil, no metrics will be recorded.
func New(opts Options, m *metrics.Metrics, logger *slog.Logger) (detector.TransactionLookup, string, error) {
	switch opts.Provider {
	case ProviderHelius, "":
		if opts.HeliusAPIKey == "" {
			return nil, "", fmt.Errorf("helius provider requires an API key")
		}
		logger.Info("using helius transaction lookup", "url", opts.HeliusAPIURL)
		return helius.NewClient(opts.HeliusAPIURL, opts.HeliusAPIKey, opts.HTTPClient, m, logger), helius.Source, nil

	case ProviderRPC:
		endpoint, err := solana.SelectRandomEndpoint(opts.RPCURLs)
		if err != nil {
			return nil, "", err
		}
		logger.Info("using solana RPC transaction lookup", "url", endpoint, "endpoints", len(opts.RPCURLs))
		return solana.NewClient(solana.NewRPCClient(endpoint), m, logger), solana.Source, nil

	default:
		return nil, "", fmt.Errorf("unknown lookup provider %q", opts.Provider)
	}
}
