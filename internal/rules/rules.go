// Package rules loads and saves the category rule file: a mapping of
// category name to an ordered list of {keyword, label} pairs.
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/finoob/finoob/internal/mapfile"
	"github.com/finoob/finoob/internal/model"
)

type ruleDoc struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Label   string `json:"label" yaml:"label"`
}

// Store caches the rule file after the first read. Call Invalidate after the
// file changes outside the Store.
type Store struct {
	path string

	mu     sync.Mutex
	cached model.RuleSet
	loaded bool

	writeMu sync.Mutex
}

// NewStore returns a Store for the rule file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the rule file location.
func (s *Store) Path() string { return s.path }

// RuleSet returns the rule set in file order.
func (s *Store) RuleSet() (model.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.cached, nil
	}
	rs, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.cached, s.loaded = rs, true
	return rs, nil
}

// Categories returns category names in evaluation order.
func (s *Store) Categories() ([]string, error) {
	rs, err := s.RuleSet()
	if err != nil {
		return nil, err
	}
	return rs.Categories(), nil
}

// Save writes rs wholesale and drops the cache, whether or not the write
// succeeded.
func (s *Store) Save(rs model.RuleSet) error {
	defer s.Invalidate()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return Write(s.path, rs)
}

// Invalidate drops the cached rule set.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.cached = nil
}

// Load reads a rule file. A missing file is an empty rule set.
func Load(path string) (model.RuleSet, error) {
	entries, err := mapfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}

	rs := make(model.RuleSet, 0, len(entries))
	for _, e := range entries {
		var docs []ruleDoc
		if err := e.Decode(&docs); err != nil {
			return nil, fmt.Errorf("loading category rules: category %q: %w", e.Key, err)
		}
		cat := model.CategoryRules{Category: e.Key, Rules: make([]model.Rule, 0, len(docs))}
		for _, d := range docs {
			cat.Rules = append(cat.Rules, model.Rule{Keyword: d.Keyword, Label: d.Label})
		}
		rs = append(rs, cat)
	}
	return rs, nil
}

// Write saves rs to path, keeping category order.
func Write(path string, rs model.RuleSet) error {
	kvs := make([]mapfile.KV, 0, len(rs))
	for _, c := range rs {
		docs := make([]ruleDoc, 0, len(c.Rules))
		for _, r := range c.Rules {
			docs = append(docs, ruleDoc{Keyword: r.Keyword, Label: r.Label})
		}
		kvs = append(kvs, mapfile.KV{Key: c.Category, Value: docs})
	}
	if err := mapfile.Write(path, kvs); err != nil {
		return fmt.Errorf("saving category rules: %w", err)
	}
	return nil
}

// Summary counts keyword-level differences between two versions of a
// category's rules.
type Summary struct {
	Added    int
	Deleted  int
	Modified int // same keyword, different label
}

// Empty reports whether nothing changed.
func (s Summary) Empty() bool {
	return s.Added == 0 && s.Deleted == 0 && s.Modified == 0
}

func (s Summary) String() string {
	var parts []string
	if s.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", s.Added))
	}
	if s.Deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", s.Deleted))
	}
	if s.Modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", s.Modified))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// ChangeSummary compares two rule lists using the keyword as identity.
// Position changes alone are not counted. When a keyword repeats, its last
// label wins.
func ChangeSummary(old, updated []model.Rule) Summary {
	oldByKey := make(map[string]string, len(old))
	for _, r := range old {
		oldByKey[r.Keyword] = r.Label
	}
	newByKey := make(map[string]string, len(updated))
	for _, r := range updated {
		newByKey[r.Keyword] = r.Label
	}

	var s Summary
	for k, label := range newByKey {
		prev, ok := oldByKey[k]
		switch {
		case !ok:
			s.Added++
		case prev != label:
			s.Modified++
		}
	}
	for k := range oldByKey {
		if _, ok := newByKey[k]; !ok {
			s.Deleted++
		}
	}
	return s
}

// Starter is the rule set written by "finoob init".
func Starter() model.RuleSet {
	return model.RuleSet{
		{Category: "Groceries", Rules: []model.Rule{
			{Keyword: "TESCO", Label: "Tesco"},
			{Keyword: "LIDL", Label: "Lidl"},
			{Keyword: "ALDI", Label: "Aldi"},
		}},
		{Category: "Transport", Rules: []model.Rule{
			{Keyword: "LUAS", Label: "Luas"},
			{Keyword: "LEAP", Label: "Leap Card"},
		}},
		{Category: "Subscriptions", Rules: []model.Rule{
			{Keyword: "NETFLIX", Label: "Netflix"},
			{Keyword: "SPOTIFY", Label: "Spotify"},
		}},
		{Category: "Reimbursement", Rules: []model.Rule{}},
	}
}
