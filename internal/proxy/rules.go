package proxy

import (
	"net/url"
	"strings"
)

// RuleKind selects how a Rule matches a request path.
type RuleKind int

const (
	// KindPrefix matches paths that start with Value.
	KindPrefix RuleKind = iota

	// KindExact matches paths equal to Value.
	KindExact

	// KindPredicate delegates to the Match func; Value is a label for
	// logs and diagnostics.
	KindPredicate
)

// Rule is one entry in the ordered set of patterns that identify
// bundler-owned request paths.
type Rule struct {
	Kind  RuleKind
	Value string
	Match func(path string) bool
}

func (r Rule) matches(path string) bool {
	switch r.Kind {
	case KindPrefix:
		return strings.HasPrefix(path, r.Value)
	case KindExact:
		return path == r.Value
	case KindPredicate:
		return r.Match != nil && r.Match(path)
	}
	return false
}

// Classifier decides whether a request path belongs to the bundler's dev
// server or to the backend's own routes. The rule set is fixed at
// construction; classification never depends on whether a dev server is
// currently running.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over the given rules. Rules are
// evaluated in order and the first match wins.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Matches reports whether rawPath is bundler-owned. The path is tested in
// both its percent-decoded and raw form, because module-loader paths use
// the "@" marker and browsers disagree on whether to encode it.
func (c *Classifier) Matches(rawPath string) bool {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		decoded = rawPath
	}
	for _, rule := range c.rules {
		if rule.matches(decoded) {
			return true
		}
		if decoded != rawPath && rule.matches(rawPath) {
			return true
		}
	}
	return false
}

// Rules returns a copy of the rule set, for diagnostics.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// DefaultRules returns the built-in rule set for a bundler family.
// sourceDirs are project directories served as source modules by the dev
// server (e.g. "src", "public"); each becomes a prefix rule. Extra rules
// from configuration should be appended after these.
func DefaultRules(family string, sourceDirs []string) []Rule {
	var rules []Rule
	switch family {
	case "vite":
		rules = []Rule{
			{Kind: KindPrefix, Value: "/@vite/"},
			{Kind: KindPrefix, Value: "/@id/"},
			{Kind: KindPrefix, Value: "/@fs/"},
			{Kind: KindExact, Value: "/@react-refresh"},
			{Kind: KindPrefix, Value: "/node_modules/"},
			{Kind: KindExact, Value: "/__vite_ping"},
		}
	}
	for _, dir := range sourceDirs {
		dir = strings.Trim(dir, "/")
		if dir == "" {
			continue
		}
		rules = append(rules, Rule{Kind: KindPrefix, Value: "/" + dir + "/"})
	}
	if family == "vite" {
		// Plugins register loader endpoints under "/@" beyond the fixed
		// set above (/@custom-plugin/...), so a catch-all comes last.
		rules = append(rules, Rule{
			Kind:  KindPredicate,
			Value: "vite-loader-path",
			Match: func(path string) bool { return strings.HasPrefix(path, "/@") },
		})
	}
	return rules
}

// PrefixRules converts plain prefix strings from configuration into rules.
func PrefixRules(prefixes []string) []Rule {
	rules := make([]Rule, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		rules = append(rules, Rule{Kind: KindPrefix, Value: p})
	}
	return rules
}

// ExactRules converts exact path strings from configuration into rules.
func ExactRules(paths []string) []Rule {
	rules := make([]Rule, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		rules = append(rules, Rule{Kind: KindExact, Value: p})
	}
	return rules
}
