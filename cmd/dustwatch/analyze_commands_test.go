package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/dustwatch/service/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sigA = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
	sigB = "2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG"
)

// fakeAnalyzer returns canned results and tracks peak concurrency.
type fakeAnalyzer struct {
	results  map[string]*detector.AnalysisResult
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, signature string) (*detector.AnalysisResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.delay)

	if r, ok := f.results[signature]; ok {
		return r, nil
	}
	return nil, errors.New("failed to analyze transaction via fake: Transaction not found or fake returned empty data")
}

func TestRunAnalyses_OrderAndFailures(t *testing.T) {
	fake := &fakeAnalyzer{
		results: map[string]*detector.AnalysisResult{
			sigA: {Classification: detector.ClassificationDusting, ConfidenceScore: 0.7},
		},
	}

	outcomes := runAnalyses(context.Background(), fake, []string{sigA, sigB}, 2)

	require.Len(t, outcomes, 2)
	assert.Equal(t, sigA, outcomes[0].Signature)
	require.NotNil(t, outcomes[0].Analysis)
	assert.Nil(t, outcomes[0].Error)
	assert.Equal(t, detector.ClassificationDusting, outcomes[0].Analysis.Classification)

	assert.Equal(t, sigB, outcomes[1].Signature)
	assert.Nil(t, outcomes[1].Analysis)
	require.NotNil(t, outcomes[1].Error)
	assert.Contains(t, *outcomes[1].Error, "Transaction not found")
}

func TestRunAnalyses_RespectsLimit(t *testing.T) {
	fake := &fakeAnalyzer{delay: 20 * time.Millisecond}
	sigs := make([]string, 10)
	for i := range sigs {
		sigs[i] = sigA
	}

	runAnalyses(context.Background(), fake, sigs, 3)

	assert.LessOrEqual(t, fake.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, fake.peak.Load(), int32(1))
}

func TestRenderOutcome(t *testing.T) {
	outcome := analysisOutcome{
		Signature: sigA,
		Analysis: &detector.AnalysisResult{
			Classification:  detector.ClassificationAddressPoisoning,
			ConfidenceScore: 0.8,
			Reasoning:       []string{"Initial analysis complete.", "Transaction amount is extremely small and receiver is unknown."},
			Details:         detector.TransactionDetails{Sender: "W1", Receiver: "unknown", Amount: 0.000001, TokenMint: "M1"},
		},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderOutcome(&buf, outcome, false, nil))
		assert.Contains(t, buf.String(), "ADDRESS_POISONING_SUSPECTED")
		assert.Contains(t, buf.String(), "0.80")
		assert.Contains(t, buf.String(), "- Transaction amount is extremely small and receiver is unknown.")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderOutcome(&buf, outcome, true, nil))
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, sigA, decoded["transaction_signature"])
		assert.Nil(t, decoded["error"])
	})

	t.Run("jq", func(t *testing.T) {
		code, err := compileJQ(`.analysis.classification, .analysis.confidence_score`)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, renderOutcome(&buf, outcome, false, code))
		assert.Equal(t, "\"ADDRESS_POISONING_SUSPECTED\"\n0.8\n", buf.String())
	})

	t.Run("jq error", func(t *testing.T) {
		code, err := compileJQ(`error("boom")`)
		require.NoError(t, err)
		var buf bytes.Buffer
		assert.Error(t, renderOutcome(&buf, outcome, false, code))
	})

	t.Run("failed outcome", func(t *testing.T) {
		msg := "lookup failed"
		var buf bytes.Buffer
		require.NoError(t, renderOutcome(&buf, analysisOutcome{Signature: sigB, Error: &msg}, false, nil))
		assert.Contains(t, buf.String(), "Error: lookup failed")
	})
}

func TestCompileJQ_Invalid(t *testing.T) {
	_, err := compileJQ(`.analysis[`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestAnalyzeCommand_Helius(t *testing.T) {
	heliusServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/transactions/", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api-key"))

		var body struct {
			Transactions []string `json:"transactions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		if len(body.Transactions) == 1 && body.Transactions[0] == sigA {
			w.Write([]byte(`[{"signature":"` + sigA + `","feePayer":"W1","description":"Claim now","timestamp":1700000000,
				"tokenTransfers":[{"toUserAccount":"W2","tokenAmount":1,"mint":"M1"}]}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer heliusServer.Close()

	t.Run("jq projection", func(t *testing.T) {
		out, err := runApp(t, "analyze", "--provider", "helius", "--helius-api-key", "test-key",
			"--helius-url", heliusServer.URL, "--jq", ".analysis.classification", sigA)
		require.NoError(t, err)
		assert.Equal(t, "\"DUSTING_SUSPECTED\"\n", out)
	})

	t.Run("partial failure", func(t *testing.T) {
		out, err := runApp(t, "--json", "analyze", "--provider", "helius", "--helius-api-key", "test-key",
			"--helius-url", heliusServer.URL, sigA, sigB)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 analyses failed")

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "DUSTING_SUSPECTED")
		assert.Contains(t, lines[1], "Transaction not found or helius returned empty data")
	})

	t.Run("invalid signature", func(t *testing.T) {
		_, err := runApp(t, "analyze", "--helius-api-key", "test-key", "not-base58!")
		require.Error(t, err)
		assert.True(t, errors.Is(err, detector.ErrInvalidInput))
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := runApp(t, "analyze", "--helius-api-key", "test-key")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one transaction signature is required")
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("HELIUS_API_KEY", "")
		_, err := runApp(t, "analyze", "--provider", "helius", sigA)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires an API key")
	})
}
