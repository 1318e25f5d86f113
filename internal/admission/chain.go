package admission

import "net/http"

// Chain composes one gate per rule around the terminal handler. Suffix
// gates are folded in first, then exact-path gates around the result, so
// at dispatch time every exact-path predicate is evaluated before any
// suffix predicate: an exact match always wins when a path matches both.
// Within each class the first-listed rule sits outermost. Rules with no
// match values are skipped.
func Chain(rules []Rule, terminal http.Handler) http.Handler {
	handler := terminal
	for i := len(rules) - 1; i >= 0; i-- {
		rule := rules[i]
		if rule.empty() || rule.exact() {
			continue
		}
		handler = newGate(rule, handler)
	}
	for i := len(rules) - 1; i >= 0; i-- {
		rule := rules[i]
		if rule.empty() || !rule.exact() {
			continue
		}
		handler = newGate(rule, handler)
	}
	return handler
}
