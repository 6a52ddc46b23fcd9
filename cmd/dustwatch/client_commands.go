package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/dustwatch/client"
	"github.com/brojonat/dustwatch/service/detector"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the detection API",
		Subcommands: []*cli.Command{
			clientAnalyzeCommand(),
		},
	}
}

func clientAnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Classify a transaction through a running server",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   30 * time.Second,
				Usage:   "Request timeout",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction signature is required")
			}
			signature := c.Args().Get(0)
			if err := detector.ValidateSignature(signature); err != nil {
				return err
			}

			timeout := c.Duration("timeout")
			logger := newLogger(c.App.ErrWriter, c.String("log-level"))
			cl := client.NewClient(c.String("server-url"), &http.Client{Timeout: timeout}, logger)

			ctx, cancel := context.WithTimeout(c.Context, timeout)
			defer cancel()

			resp, err := cl.Analyze(ctx, signature)
			if err != nil {
				return fmt.Errorf("failed to analyze transaction: %w", err)
			}

			if c.Bool("json") {
				data, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal response: %w", err)
				}
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}

			result := resp.Analysis
			fmt.Fprintf(c.App.Writer, "Signature: %s\n", resp.TransactionSignature)
			fmt.Fprintf(c.App.Writer, "  Classification: %s\n", result.Classification)
			fmt.Fprintf(c.App.Writer, "  Confidence:     %.2f\n", result.ConfidenceScore)
			fmt.Fprintf(c.App.Writer, "  Receiver:       %s\n", result.Details.Receiver)
			for _, reason := range result.Reasoning {
				fmt.Fprintf(c.App.Writer, "    - %s\n", reason)
			}
			return nil
		},
	}
}
