package detector

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"
)

var (
	// ErrInvalidInput is returned when a caller supplies an unusable signature.
	ErrInvalidInput = errors.New("invalid transaction signature")

	// ErrLookupFailed is returned when the transaction lookup itself fails.
	ErrLookupFailed = errors.New("transaction lookup failed")

	// ErrNotFound is returned when the lookup succeeds but yields no record.
	ErrNotFound = errors.New("transaction not found")
)

const maxSignatureLength = 128 // base58 signatures are 87-88 chars

var validSignatureRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// ValidateSignature checks a transaction signature before it reaches Analyze.
func ValidateSignature(signature string) error {
	if signature == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidInput)
	}

	if len(signature) > maxSignatureLength {
		return fmt.Errorf("%w: signature too long: maximum length is %d characters", ErrInvalidInput, maxSignatureLength)
	}

	for _, r := range signature {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control characters not allowed", ErrInvalidInput)
		}
	}

	if !validSignatureRegex.MatchString(signature) {
		return fmt.Errorf("%w: must contain only valid base58 characters", ErrInvalidInput)
	}

	return nil
}

// NotFoundError reports an empty lookup result. It matches ErrNotFound.
type NotFoundError struct {
	Source string
}

func (e *NotFoundError) Error() string {
	source := e.Source
	if source == "" {
		source = "lookup"
	}
	return fmt.Sprintf("Transaction not found or %s returned empty data", source)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
