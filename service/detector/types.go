package detector

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Classification is the risk category assigned to a transaction.
type Classification string

const (
	ClassificationLegitimate       Classification = "LEGITIMATE"
	ClassificationDusting          Classification = "DUSTING_SUSPECTED"
	ClassificationAddressPoisoning Classification = "ADDRESS_POISONING_SUSPECTED"
	ClassificationUnknown          Classification = "UNKNOWN"
)

// RawTransaction is the enriched transaction record returned by an indexer.
// Every field is optional; the Normalizer decides what to do when one is missing.
type RawTransaction struct {
	Signature      string          `json:"signature,omitempty"`
	FeePayer       *string         `json:"feePayer,omitempty"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers,omitempty"`
	Instructions   []Instruction   `json:"instructions,omitempty"`
	Timestamp      Number          `json:"timestamp"`
	Description    *string         `json:"description,omitempty"`
	Type           *string         `json:"type,omitempty"`
	Source         *string         `json:"source,omitempty"`
}

// TokenTransfer is a single token movement inside a RawTransaction.
type TokenTransfer struct {
	FromUserAccount *string `json:"fromUserAccount,omitempty"`
	ToUserAccount   *string `json:"toUserAccount,omitempty"`
	TokenAmount     Number  `json:"tokenAmount"`
	Mint            *string `json:"mint,omitempty"`
}

// Instruction is a program invocation with its resolved account keys.
type Instruction struct {
	ProgramID string   `json:"programId,omitempty"`
	Accounts  []string `json:"accounts,omitempty"`
}

// TransactionDetails is the canonical, always fully populated view of a transaction.
type TransactionDetails struct {
	Sender      string  `json:"sender"`
	Receiver    string  `json:"receiver"`
	Amount      float64 `json:"amount"`
	TokenMint   string  `json:"token_mint"`
	Timestamp   string  `json:"timestamp"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
}

// AnalysisResult is the outcome of classifying a transaction.
type AnalysisResult struct {
	Classification  Classification     `json:"classification"`
	ConfidenceScore float64            `json:"confidence_score"`
	Reasoning       []string           `json:"reasoning"`
	Details         TransactionDetails `json:"details"`
}

// Number is an optional JSON number. Decoding never fails: numbers and numeric
// strings are kept, anything else (null, objects, garbage strings) is absent.
type Number struct {
	value float64
	valid bool
}

// NewNumber returns a present Number.
func NewNumber(v float64) Number {
	return Number{value: v, valid: true}
}

// Get returns the value and whether it is present and finite.
func (n Number) Get() (float64, bool) {
	if !n.valid || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
		return 0, false
	}
	return n.value, true
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*n = NewNumber(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	v, ok := n.Get()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
