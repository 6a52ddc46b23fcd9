package detector

import (
	"math"
	"time"
)

// Fallback values used when the raw record does not carry a field.
const (
	UnknownValue  = "unknown"
	NativeSOLMint = "SOL"
)

// TimestampLayout renders instants as ISO-8601 with millisecond precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// maxDateMillis is the largest absolute epoch offset an ISO-8601 calendar date can represent.
const maxDateMillis = 8.64e15

// Normalizer maps raw indexer records onto TransactionDetails.
// The clock is only consulted when the raw timestamp is unusable.
type Normalizer struct {
	now func() time.Time
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock overrides the wall clock used for the timestamp fallback.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer creates a Normalizer that falls back to time.Now.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts a raw record into canonical details.
// A nil record means the lookup produced nothing and yields ErrNotFound.
// Each field resolves through its own fallback chain; the first present value wins.
func (n *Normalizer) Normalize(raw *RawTransaction) (TransactionDetails, error) {
	if raw == nil {
		return TransactionDetails{}, ErrNotFound
	}

	var first *TokenTransfer
	if len(raw.TokenTransfers) > 0 {
		first = &raw.TokenTransfers[0]
	}

	return TransactionDetails{
		Sender:      firstOf(UnknownValue, raw.FeePayer),
		Receiver:    firstOf(UnknownValue, transferRecipient(first), instructionAccount(raw.Instructions, 0, 1)),
		Amount:      transferAmount(first),
		TokenMint:   firstOf(NativeSOLMint, transferMint(first)),
		Timestamp:   n.timestamp(raw.Timestamp),
		Description: firstOf("", raw.Description),
		Type:        firstOf(UnknownValue, raw.Type),
	}, nil
}

// timestamp converts UNIX seconds to an ISO-8601 string.
// Zero, absent, non-finite, or out-of-range values use the clock instead.
func (n *Normalizer) timestamp(raw Number) string {
	seconds, ok := raw.Get()
	if ok && seconds != 0 {
		millis := seconds * 1000
		if math.Abs(millis) <= maxDateMillis {
			t := time.UnixMilli(int64(millis)).UTC()
			if y := t.Year(); y >= 0 && y <= 9999 {
				return t.Format(TimestampLayout)
			}
		}
	}
	return n.now().UTC().Format(TimestampLayout)
}

// firstOf returns the first non-nil, non-empty candidate, or def.
func firstOf(def string, candidates ...*string) string {
	for _, c := range candidates {
		if c != nil && *c != "" {
			return *c
		}
	}
	return def
}

func transferRecipient(t *TokenTransfer) *string {
	if t == nil {
		return nil
	}
	return t.ToUserAccount
}

func transferMint(t *TokenTransfer) *string {
	if t == nil {
		return nil
	}
	return t.Mint
}

func transferAmount(t *TokenTransfer) float64 {
	if t == nil {
		return 0
	}
	v, ok := t.TokenAmount.Get()
	if !ok {
		return 0
	}
	return v
}

// instructionAccount returns accounts[account] of instructions[index], if present.
func instructionAccount(instructions []Instruction, index, account int) *string {
	if index >= len(instructions) {
		return nil
	}
	accounts := instructions[index].Accounts
	if account >= len(accounts) {
		return nil
	}
	return &accounts[account]
}
