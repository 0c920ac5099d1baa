package exclude

import (
	"github.com/shinji-kodama/release-packager/internal/model"
)

// Matcher decides whether a project-relative path is excluded.
// It is immutable once built and safe to share.
type Matcher struct {
	rules []Rule
}

// NewMatcher creates a Matcher from built-in rules followed by user rules.
// Order does not change the outcome (any match excludes) but is kept for
// listings and for reporting which rule matched first.
func NewMatcher(builtin, user []Rule) *Matcher {
	rules := make([]Rule, 0, len(builtin)+len(user))
	rules = append(rules, builtin...)
	rules = append(rules, user...)
	return &Matcher{rules: rules}
}

// Rules returns a copy of the rules in evaluation order.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// UserRules returns the rules that came from the ignore file.
func (m *Matcher) UserRules() []Rule {
	var out []Rule
	for _, r := range m.rules {
		if r.Origin == model.OriginUser {
			out = append(out, r)
		}
	}
	return out
}

// Match returns the first rule that matches rel, if any.
// Backslashes in rel are converted to forward slashes first.
func (m *Matcher) Match(rel string) (Rule, bool) {
	path := model.NormalizePath(rel)
	for _, r := range m.rules {
		if r.Matches(path) {
			return r, true
		}
	}
	return Rule{}, false
}

// Excluded reports whether any rule matches rel.
func (m *Matcher) Excluded(rel string) bool {
	_, ok := m.Match(rel)
	return ok
}

// SkipDir reports whether a directory can be pruned from the walk.
//
// Only built-in rules are considered: they are all anchored at the start
// of the path, so a match on the directory is also a match on every path
// below it. User rules are unanchored and may behave differently on the
// directory than on its files, so they are only ever applied to files.
func (m *Matcher) SkipDir(rel string) bool {
	path := model.NormalizePath(rel)
	for _, r := range m.rules {
		if r.Origin == model.OriginBuiltin && r.Matches(path) {
			return true
		}
	}
	return false
}
