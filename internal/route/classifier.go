// Package route classifies request paths into access classes.
// The classifier is a pure function over a fixed ordered rule table:
// first matching rule wins, unmatched paths are protected (fail closed).
package route

import "strings"

// Class is the access class of a path.
type Class int

const (
	// Public pages render for anyone; the gate never looks up a session.
	Public Class = iota
	// AuthOnly pages (login/register) are reachable only while logged out.
	AuthOnly
	// Protected pages require an authenticated session with an active
	// organization. This is the default for unknown paths.
	Protected
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case AuthOnly:
		return "auth-only"
	case Protected:
		return "protected"
	}
	return "protected"
}

// Rule maps a path pattern to a class. A pattern ending in "/*" matches
// the prefix itself and everything below it; any other pattern matches
// exactly.
type Rule struct {
	Pattern string
	Class   Class
}

// defaultRules is the built-in table for the ZenBilling frontend.
// Order matters: first match wins, so explicit entries come before
// wildcard ones.
var defaultRules = []Rule{
	{"/", Public},
	{"/pricing", Public},
	{"/assets/*", Public},
	{"/favicon.ico", Public},
	{"/login", AuthOnly},
	{"/register", AuthOnly},
	{"/forgot-password", AuthOnly},
	{"/reset-password", AuthOnly},
	{"/reset-password/*", AuthOnly},
	{"/select-organization", Protected},
	{"/onboarding/*", Protected},
	{"/invoices/*", Protected},
	{"/quotes/*", Protected},
	{"/customers/*", Protected},
	{"/settings/*", Protected},
}

// Classifier holds the ordered rule table. Built once at startup,
// never mutated afterwards.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier with extra rules prepended to the
// defaults, so operator-supplied rules take precedence.
func NewClassifier(extra []Rule) *Classifier {
	rules := make([]Rule, 0, len(extra)+len(defaultRules))
	rules = append(rules, extra...)
	rules = append(rules, defaultRules...)
	return &Classifier{rules: rules}
}

// Classify returns the access class for a request path. It is total:
// any input yields a class, and anything unmatched is Protected.
func (c *Classifier) Classify(path string) Class {
	path = Normalize(path)
	for _, r := range c.rules {
		if match(r.Pattern, path) {
			return r.Class
		}
	}
	return Protected
}

// ParseRules parses the ROUTE_RULES config value: a comma-separated
// list of "pattern=class" entries. Malformed entries are skipped rather
// than failing startup.
func ParseRules(s string) []Rule {
	var rules []Rule
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || !strings.HasPrefix(kv[0], "/") {
			continue
		}
		var class Class
		switch strings.TrimSpace(kv[1]) {
		case "public":
			class = Public
		case "auth-only":
			class = AuthOnly
		case "protected":
			class = Protected
		default:
			continue
		}
		rules = append(rules, Rule{Pattern: kv[0], Class: class})
	}
	return rules
}

// Normalize strips any query string and trailing slash (except root).
// Classify applies it internally; callers comparing paths against the
// canonical page paths should apply it too, so "/select-organization/"
// and "/select-organization" behave identically.
func Normalize(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func match(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}
