package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/brojonat/dustwatch/service/detector"
	"github.com/brojonat/dustwatch/service/lookup"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// analysisOutcome is one signature's result. Exactly one of Analysis or Error is set.
type analysisOutcome struct {
	Signature string                   `json:"transaction_signature"`
	Analysis  *detector.AnalysisResult `json:"analysis"`
	Error     *string                  `json:"error"`
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Classify transactions directly against a lookup provider",
		ArgsUsage: "SIGNATURE [SIGNATURE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Usage:   "Lookup provider (helius or rpc)",
				EnvVars: []string{"LOOKUP_PROVIDER"},
				Value:   lookup.ProviderHelius,
			},
			&cli.StringFlag{
				Name:    "helius-api-key",
				Usage:   "Helius API key",
				EnvVars: []string{"HELIUS_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "helius-url",
				Usage:   "Helius API base URL",
				EnvVars: []string{"HELIUS_API_URL"},
				Value:   "https://api.helius.xyz",
			},
			&cli.StringSliceFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint (repeatable; one is picked at random)",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   cli.NewStringSlice("https://api.mainnet-beta.solana.com"),
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum analyses in flight",
				Value: 4,
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Per-transaction lookup timeout (0 disables)",
				Value:   15 * time.Second,
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to each result (implies JSON output)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("at least one transaction signature is required")
			}

			signatures := c.Args().Slice()
			for _, sig := range signatures {
				if err := detector.ValidateSignature(sig); err != nil {
					return fmt.Errorf("%q: %w", sig, err)
				}
			}

			var jqCode *gojq.Code
			if expr := c.String("jq"); expr != "" {
				code, err := compileJQ(expr)
				if err != nil {
					return err
				}
				jqCode = code
			}

			logger := newLogger(c.App.ErrWriter, c.String("log-level"))

			txLookup, source, err := lookup.New(lookup.Options{
				Provider:     c.String("provider"),
				HeliusAPIKey: c.String("helius-api-key"),
				HeliusAPIURL: c.String("helius-url"),
				RPCURLs:      c.StringSlice("rpc-url"),
			}, nil, logger)
			if err != nil {
				return err
			}

			analyzer := detector.NewAnalyzer(txLookup, source, nil, logger,
				detector.WithLookupTimeout(c.Duration("timeout")),
			)

			outcomes := runAnalyses(c.Context, analyzer, signatures, c.Int("concurrency"))

			failed := 0
			for _, outcome := range outcomes {
				if outcome.Error != nil {
					failed++
				}
				if err := renderOutcome(c.App.Writer, outcome, c.Bool("json"), jqCode); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(outcomes))
			}
			return nil
		},
	}
}

type analyzer interface {
	Analyze(ctx context.Context, signature string) (*detector.AnalysisResult, error)
}

// runAnalyses analyzes every signature with at most limit in flight.
// Outcomes keep the input order; one failure does not cancel the others.
func runAnalyses(ctx context.Context, a analyzer, signatures []string, limit int) []analysisOutcome {
	if limit < 1 {
		limit = 1
	}

	outcomes := make([]analysisOutcome, len(signatures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, sig := range signatures {
		g.Go(func() error {
			outcomes[i].Signature = sig
			result, err := a.Analyze(gctx, sig)
			if err != nil {
				msg := err.Error()
				outcomes[i].Error = &msg
				return nil
			}
			outcomes[i].Analysis = result
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// renderOutcome prints one outcome as text, JSON, or the output of a jq program.
func renderOutcome(w io.Writer, outcome analysisOutcome, jsonOutput bool, jqCode *gojq.Code) error {
	if jqCode != nil {
		return runJQ(w, outcome, jqCode)
	}

	if jsonOutput {
		data, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "Signature: %s\n", outcome.Signature)
	if outcome.Error != nil {
		fmt.Fprintf(w, "  ✗ Error: %s\n\n", *outcome.Error)
		return nil
	}

	result := outcome.Analysis
	fmt.Fprintf(w, "  Classification: %s\n", result.Classification)
	fmt.Fprintf(w, "  Confidence:     %.2f\n", result.ConfidenceScore)
	fmt.Fprintf(w, "  Sender:         %s\n", result.Details.Sender)
	fmt.Fprintf(w, "  Receiver:       %s\n", result.Details.Receiver)
	fmt.Fprintf(w, "  Amount:         %g %s\n", result.Details.Amount, result.Details.TokenMint)
	fmt.Fprintf(w, "  Timestamp:      %s\n", result.Details.Timestamp)
	fmt.Fprintf(w, "  Reasoning:\n")
	for _, reason := range result.Reasoning {
		fmt.Fprintf(w, "    - %s\n", reason)
	}
	fmt.Fprintln(w)
	return nil
}

// runJQ feeds the outcome, as generic JSON, through the jq program and prints each value.
func runJQ(w io.Writer, outcome analysisOutcome, code *gojq.Code) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal jq output: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
}
