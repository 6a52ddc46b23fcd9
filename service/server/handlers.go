package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/dustwatch/service/detector"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB; a signature request is tiny

	rootMessage = "Solana Dusting & Poisoning Detection API is running!"

	invalidRequestMessage = "Missing or invalid transaction_signature field in request body."
	analysisErrorMessage  = "Internal server error during analysis."
	redactedErrorDetails  = "Internal server error."
)

type analyzeRequest struct {
	TransactionSignature json.RawMessage `json:"transaction_signature"`
}

// analyzeResponse is the envelope for every /api/analyze response.
// TransactionSignature echoes whatever the caller sent, or null.
type analyzeResponse struct {
	TransactionSignature json.RawMessage          `json:"transaction_signature"`
	Analysis             *detector.AnalysisResult `json:"analysis"`
	Error                *apiError                `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// handleAnalyze returns a handler that classifies one transaction.
// POST /api/analyze {"transaction_signature": "..."}
// Bad input is a 400; any analysis failure, including a missing transaction, is a 500.
// In production the 500 details are redacted.
func handleAnalyze(analyzer Analyzer, production bool, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFromContext(r.Context())

		rawSig, signature, err := decodeAnalyzeRequest(w, r)
		if err != nil {
			logger.DebugContext(r.Context(), "invalid analyze request",
				"request_id", requestID,
				"error", err,
			)
			writeJSON(w, analyzeResponse{
				TransactionSignature: rawSig,
				Error:                &apiError{Message: invalidRequestMessage, Details: err.Error()},
			}, http.StatusBadRequest)
			return
		}

		result, err := analyzer.Analyze(r.Context(), signature)
		if err != nil {
			logger.ErrorContext(r.Context(), "analysis failed",
				"request_id", requestID,
				"signature", signature,
				"not_found", errors.Is(err, detector.ErrNotFound),
				"lookup_failed", errors.Is(err, detector.ErrLookupFailed),
				"error", err,
			)
			details := err.Error()
			if production {
				details = redactedErrorDetails
			}
			writeJSON(w, analyzeResponse{
				TransactionSignature: rawSig,
				Error:                &apiError{Message: analysisErrorMessage, Details: details},
			}, http.StatusInternalServerError)
			return
		}

		writeJSON(w, analyzeResponse{
			TransactionSignature: rawSig,
			Analysis:             result,
		}, http.StatusOK)
	})
}

// decodeAnalyzeRequest reads and validates the request body. The returned raw
// value is what the caller sent for transaction_signature, or nil when the
// body could not be parsed at all.
func decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (json.RawMessage, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, "", &validationError{msg: "request body too large"}
		}
		return nil, "", &validationError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}

	raw := req.TransactionSignature
	if len(raw) == 0 || string(raw) == "null" {
		return nil, "", &validationError{msg: "transaction_signature is required"}
	}

	var signature string
	if err := json.Unmarshal(raw, &signature); err != nil {
		return raw, "", &validationError{msg: "transaction_signature must be a string"}
	}

	signature = strings.TrimSpace(signature)
	if err := detector.ValidateSignature(signature); err != nil {
		return raw, "", err
	}

	return raw, signature, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
