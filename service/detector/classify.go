package detector

import "strings"

// BaselineReason is always the first reasoning entry of a result.
const BaselineReason = "Initial analysis complete."

// Thresholds and confidences for the built-in rules.
const (
	DustingConfidence          = 0.7
	AddressPoisoningConfidence = 0.8
	PoisoningAmountThreshold   = 0.00001
)

// Rule pairs a predicate over canonical details with the verdict it asserts.
// A matching rule overwrites classification and confidence and appends Reason.
type Rule struct {
	Name           string
	Matches        func(TransactionDetails) bool
	Classification Classification
	Confidence     float64
	Reason         string
}

// DefaultRules returns the built-in rule table in evaluation order.
// Later rules win when several match.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:           "dusting",
			Matches:        mentionsAirdropOrClaim,
			Classification: ClassificationDusting,
			Confidence:     DustingConfidence,
			Reason:         "Transaction description mentions airdrop/claim.",
		},
		{
			Name:           "address_poisoning",
			Matches:        isDustToUnknownReceiver,
			Classification: ClassificationAddressPoisoning,
			Confidence:     AddressPoisoningConfidence,
			Reason:         "Transaction amount is extremely small and receiver is unknown.",
		},
	}
}

func mentionsAirdropOrClaim(d TransactionDetails) bool {
	desc := strings.ToLower(d.Description)
	return strings.Contains(desc, "airdrop") || strings.Contains(desc, "claim")
}

func isDustToUnknownReceiver(d TransactionDetails) bool {
	return d.Amount <= PoisoningAmountThreshold && d.Receiver == UnknownValue
}

// Classifier evaluates an ordered rule table against transaction details.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules   []Rule
	onMatch func(Rule)
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRules replaces the rule table.
func WithRules(rules ...Rule) ClassifierOption {
	return func(c *Classifier) {
		c.rules = append([]Rule(nil), rules...)
	}
}

// WithMatchObserver registers a callback invoked for every rule that matches.
func WithMatchObserver(fn func(Rule)) ClassifierOption {
	return func(c *Classifier) {
		c.onMatch = fn
	}
}

// NewClassifier creates a Classifier using DefaultRules unless overridden.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{rules: DefaultRules()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules returns a copy of the rule table.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify folds the rule table over the details, starting from UNKNOWN/0.0.
// It never fails.
func (c *Classifier) Classify(details TransactionDetails) AnalysisResult {
	result := AnalysisResult{
		Classification:  ClassificationUnknown,
		ConfidenceScore: 0.0,
		Reasoning:       []string{BaselineReason},
		Details:         details,
	}

	for _, rule := range c.rules {
		if rule.Matches == nil || !rule.Matches(details) {
			continue
		}
		result.Classification = rule.Classification
		result.ConfidenceScore = rule.Confidence
		result.Reasoning = append(result.Reasoning, rule.Reason)
		if c.onMatch != nil {
			c.onMatch(rule)
		}
	}

	return result
}
