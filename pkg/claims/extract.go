package claims

import (
	"encoding/json"
	"strconv"
)

// Values holds what Extract found at the end of a path.
type Values []any

// Strings returns the string members of v in order, skipping everything else.
func (v Values) Strings() []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Contains reports whether v holds the exact string s.
func (v Values) Contains(s string) bool {
	for _, item := range v {
		if str, ok := item.(string); ok && str == s {
			return true
		}
	}
	return false
}

// Extract walks p through c. It returns ok == false when any segment is missing,
// when an intermediate node cannot be traversed, or when the terminal node is an
// object or null. A terminal scalar is wrapped in a one-element slice; a terminal
// list is returned as-is.
func Extract(c TokenClaims, p Path) (Values, bool) {
	if c.root == nil || p.IsZero() {
		return nil, false
	}

	var node any = c.root
	for _, seg := range p.segments {
		next, ok := step(node, seg)
		if !ok {
			return nil, false
		}
		node = next
	}

	return terminal(node)
}

// step descends one level. Objects are indexed by key, arrays by a
// non-negative decimal index.
func step(node any, seg string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		child, ok := n[seg]
		return child, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, false
		}
		return n[idx], true
	default:
		return nil, false
	}
}

func terminal(node any) (Values, bool) {
	switch n := node.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return nil, false
	case []any:
		out := make(Values, len(n))
		copy(out, n)
		return out, true
	case string, bool, float64, json.Number, int, int64:
		return Values{n}, true
	default:
		return nil, false
	}
}
