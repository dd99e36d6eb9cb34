// Package categorize assigns categories to statement rows from keyword
// rules and pushes reviewed category edits back to the ledger.
package categorize

import (
	"strings"

	"github.com/finoob/finoob/internal/model"
)

// Engine matches descriptions against an ordered rule set. Categories are
// tried in order and, within a category, keywords in order; the first
// keyword contained in the description wins.
type Engine struct {
	rules         []compiledRule
	caseSensitive bool
}

type compiledRule struct {
	category string
	label    string
	keyword  string // lower-cased unless case-sensitive
}

// NewEngine builds an Engine. Empty keywords are ignored.
func NewEngine(rules model.RuleSet, caseSensitive bool) *Engine {
	e := &Engine{caseSensitive: caseSensitive}
	for _, c := range rules {
		for _, r := range c.Rules {
			if r.Keyword == "" {
				continue
			}
			e.rules = append(e.rules, compiledRule{
				category: c.Category,
				label:    r.Label,
				keyword:  e.fold(r.Keyword),
			})
		}
	}
	return e
}

func (e *Engine) fold(s string) string {
	if e.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// Match returns the first matching category and label.
func (e *Engine) Match(description string) (category, label string, ok bool) {
	desc := e.fold(description)
	for _, r := range e.rules {
		if strings.Contains(desc, r.keyword) {
			return r.category, r.label, true
		}
	}
	return "", "", false
}

// Apply returns a copy of rows with Category and Label assigned. Rows with
// no match get empty values, left for manual review.
func (e *Engine) Apply(rows []model.StatementRow) []model.StatementRow {
	out := make([]model.StatementRow, len(rows))
	for i, r := range rows {
		r.Category, r.Label, _ = e.Match(r.Description)
		out[i] = r
	}
	return out
}
