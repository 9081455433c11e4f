package rules

import (
	"fmt"
	"strings"
)

// Reason codes carried by validation errors so callers can highlight the
// offending rule and field without parsing reason text.
const (
	CodeEmpty           = "empty"
	CodePageOutOfRange  = "page-out-of-range"
	CodeBadRange        = "bad-range"
	CodeNotPermutation  = "not-a-permutation"
	CodeOutOfBounds     = "out-of-bounds"
	CodeBadEnum         = "bad-enum"
	CodeBadValue        = "bad-value"
	CodeNoOpRule        = "no-op-rule"
	CodeMissingField    = "missing-field"
	CodeUnknownSource   = "unknown-source"
	CodeRemovesAllPages = "removes-all-pages"
)

// ValidationError describes one structural problem with a rule. RuleIndex is
// -1 for standalone validation and set to the list position by List.Validate.
type ValidationError struct {
	RuleIndex int    `json:"rule_index"`
	Kind      Kind   `json:"kind"`
	Field     string `json:"field,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.RuleIndex >= 0 {
		fmt.Fprintf(&b, "rule %d ", e.RuleIndex)
	}
	fmt.Fprintf(&b, "(%s)", e.Kind)
	if e.Field != "" {
		fmt.Fprintf(&b, " %s", e.Field)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// ValidationErrors aggregates every problem found in one rule or list.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return strings.Join(parts, "; ")
}

func verr(k Kind, field, code, reason string) ValidationError {
	return ValidationError{RuleIndex: -1, Kind: k, Field: field, Code: code, Reason: reason}
}
