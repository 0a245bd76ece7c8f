package pattern

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/spiceflow/internal/model"
)

// MatcherImpl implements Matcher over a fixed rule set.
type MatcherImpl struct {
	compiledRegex map[int64]*regexp.Regexp
	rules         []Rule
}

// NewMatcher creates a matcher for rules. Regex patterns are compiled once;
// a pattern that fails to compile never matches.
func NewMatcher(rules []Rule) *MatcherImpl {
	m := &MatcherImpl{
		rules:         append([]Rule(nil), rules...),
		compiledRegex: make(map[int64]*regexp.Regexp),
	}

	sort.SliceStable(m.rules, func(i, j int) bool {
		return m.rules[i].ID < m.rules[j].ID
	})

	for _, rule := range m.rules {
		if rule.MatchType != model.MatchRegex {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			slog.Warn("Skipping rule with invalid regex", "rule_id", rule.ID, "pattern", rule.Pattern, "error", err)
			continue
		}
		m.compiledRegex[rule.ID] = re
	}

	return m
}

// Len returns the number of rules the matcher holds.
func (m *MatcherImpl) Len() int {
	return len(m.rules)
}

// Match implements Matcher.
func (m *MatcherImpl) Match(txn *model.Transaction) (*Rule, bool) {
	if txn == nil {
		return nil, false
	}
	fields := txn.SearchableText()

	for i := range m.rules {
		if m.matchesRule(&m.rules[i], fields) {
			rule := m.rules[i]
			return &rule, true
		}
	}
	return nil, false
}

func (m *MatcherImpl) matchesRule(rule *Rule, fields []string) bool {
	for _, field := range fields {
		switch rule.MatchType {
		case model.MatchContains:
			// Case-sensitive, like the bulk apply scan.
			if strings.Contains(field, rule.Pattern) {
				return true
			}
		case model.MatchRegex:
			if re, ok := m.compiledRegex[rule.ID]; ok && re.MatchString(field) {
				return true
			}
		}
	}
	return false
}

// OfType returns the subset of rules with the given match type.
func OfType(rules []Rule, matchType model.MatchType) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.MatchType == matchType {
			out = append(out, r)
		}
	}
	return out
}
