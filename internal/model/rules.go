package model

// Rule maps a description keyword to a label.
type Rule struct {
	Keyword string
	Label   string
}

// CategoryRules is one category and its keywords, in evaluation order.
type CategoryRules struct {
	Category string
	Rules    []Rule
}

// RuleSet is an ordered list of categories. Order is significant: the first
// matching keyword wins.
type RuleSet []CategoryRules

// Categories returns category names in evaluation order.
func (rs RuleSet) Categories() []string {
	names := make([]string, len(rs))
	for i, c := range rs {
		names[i] = c.Category
	}
	return names
}

// Rules returns the rules for a category.
func (rs RuleSet) Rules(category string) ([]Rule, bool) {
	for _, c := range rs {
		if c.Category == category {
			return c.Rules, true
		}
	}
	return nil, false
}

// WithRules returns a copy of rs with category's rules replaced, appending
// the category if it is new.
func (rs RuleSet) WithRules(category string, rules []Rule) RuleSet {
	out := make(RuleSet, 0, len(rs)+1)
	found := false
	for _, c := range rs {
		if c.Category == category {
			c = CategoryRules{Category: category, Rules: rules}
			found = true
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, CategoryRules{Category: category, Rules: rules})
	}
	return out
}

// Without returns a copy of rs with category removed.
func (rs RuleSet) Without(category string) RuleSet {
	out := make(RuleSet, 0, len(rs))
	for _, c := range rs {
		if c.Category != category {
			out = append(out, c)
		}
	}
	return out
}
