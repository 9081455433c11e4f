package rules

import (
	"github.com/wudi/pdfstudio/document"
)

// ListItem pairs a rule with the stable id the authoring UI uses for
// reordering and removal. The id is not part of the semantic contract and is
// stripped before fingerprinting and execution.
type ListItem struct {
	ID   string
	Rule Rule
}

// List is an ordered execution plan. Rules execute strictly in list order and
// later rules observe the output of earlier rules.
type List []ListItem

// NewList wraps rules into a list, minting an id per item.
func NewList(rs ...Rule) List {
	out := make(List, len(rs))
	for i, r := range rs {
		out[i] = ListItem{ID: document.NewID(), Rule: r}
	}
	return out
}

// Rules returns the ordered rules with ids stripped.
func (l List) Rules() []Rule {
	out := make([]Rule, len(l))
	for i, item := range l {
		out[i] = item.Rule
	}
	return out
}

// Validate runs the fail-fast preflight of an execution plan: each rule is
// checked structurally and against the projected document state at the point
// it would execute, so a rule after a merge or split is judged against the
// post-merge or post-split page count. The walk stops at the first rule that
// fails, returning all of that rule's errors with RuleIndex set.
func (l List) Validate(meta document.Meta, lookup MetaLookup) ValidationErrors {
	running := meta.Clone()
	for i, item := range l {
		errs := Validate(running, item.Rule)
		if len(errs) > 0 {
			for j := range errs {
				errs[j].RuleIndex = i
			}
			return errs
		}
		next, err := item.Rule.Project(running, lookup)
		if err != nil {
			return ValidationErrors{{
				RuleIndex: i,
				Kind:      item.Rule.Kind(),
				Code:      CodeUnknownSource,
				Reason:    err.Error(),
			}}
		}
		running = next
	}
	return nil
}
