package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/dustwatch/service/metrics"
)

// TransactionLookup fetches the raw indexer record for a signature.
// Implementations return (nil, nil) when the indexer has no record.
type TransactionLookup interface {
	LookupTransaction(ctx context.Context, signature string) (*RawTransaction, error)
}

// Analyzer runs the lookup, normalization, and classification for one signature.
// Each call is independent; an Analyzer may be shared across goroutines.
type Analyzer struct {
	lookup        TransactionLookup
	source        string // lookup provider name for messages and metrics (e.g., "helius", "rpc")
	lookupTimeout time.Duration
	normalizer    *Normalizer
	classifier    *Classifier
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLookupTimeout bounds the lookup call. The classification step is never bounded.
func WithLookupTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.lookupTimeout = d
	}
}

// WithNormalizer overrides the default Normalizer.
func WithNormalizer(n *Normalizer) AnalyzerOption {
	return func(a *Analyzer) {
		a.normalizer = n
	}
}

// WithClassifier overrides the default Classifier.
func WithClassifier(c *Classifier) AnalyzerOption {
	return func(a *Analyzer) {
		a.classifier = c
	}
}

// NewAnalyzer creates an Analyzer.
// If metrics is nil, no metrics will be recorded.
func NewAnalyzer(lookup TransactionLookup, source string, m *metrics.Metrics, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		lookup:     lookup,
		source:     source,
		normalizer: NewNormalizer(),
		metrics:    m,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.classifier == nil {
		a.classifier = NewClassifier(WithMatchObserver(func(r Rule) {
			if m != nil {
				m.RecordRuleMatch(r.Name)
			}
		}))
	}
	return a
}

// Analyze looks up the transaction and classifies it.
// Lookup failures wrap ErrLookupFailed; empty lookups return a *NotFoundError
// that matches ErrNotFound. No result is fabricated on failure.
func (a *Analyzer) Analyze(ctx context.Context, signature string) (*AnalysisResult, error) {
	a.logger.InfoContext(ctx, "analyzing transaction",
		"signature", signature,
		"source", a.source,
	)

	raw, err := a.fetch(ctx, signature)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch transaction",
			"signature", signature,
			"source", a.source,
			"error", err,
		)
		if a.metrics != nil {
			a.metrics.RecordAnalysisFailure(a.source, "lookup_failed")
		}
		return nil, fmt.Errorf("failed to analyze transaction via %s: %w: %w", a.source, ErrLookupFailed, err)
	}

	if raw == nil {
		a.logger.WarnContext(ctx, "transaction lookup returned no record",
			"signature", signature,
			"source", a.source,
		)
		if a.metrics != nil {
			a.metrics.RecordAnalysisFailure(a.source, "not_found")
		}
		return nil, fmt.Errorf("failed to analyze transaction via %s: %w", a.source, &NotFoundError{Source: a.source})
	}

	details, err := a.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize transaction %s: %w", signature, err)
	}

	result := a.classifier.Classify(details)

	if a.metrics != nil {
		a.metrics.RecordAnalysis(string(result.Classification))
	}

	a.logger.InfoContext(ctx, "transaction classified",
		"signature", signature,
		"classification", result.Classification,
		"confidence_score", result.ConfidenceScore,
		"matched_rules", len(result.Reasoning)-1,
	)

	return &result, nil
}

// fetch performs the lookup, applying the lookup timeout if one is set.
func (a *Analyzer) fetch(ctx context.Context, signature string) (*RawTransaction, error) {
	if a.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.lookupTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := a.lookup.LookupTransaction(ctx, signature)

	a.logger.DebugContext(ctx, "transaction lookup finished",
		"signature", signature,
		"source", a.source,
		"found", raw != nil,
		"duration", time.Since(start),
	)

	return raw, err
}
