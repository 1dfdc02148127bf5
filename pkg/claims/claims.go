package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TokenClaims is an immutable claim tree decoded from an access token.
// The zero value is an empty claim set.
type TokenClaims struct {
	root map[string]any
}

// FromMap builds a claim set from an already decoded map. The map is deep-copied
// so later changes by the caller are not observed.
func FromMap(m map[string]any) TokenClaims {
	if m == nil {
		return TokenClaims{}
	}
	return TokenClaims{root: copyValue(m).(map[string]any)}
}

// FromJSON decodes a JSON object into a claim set.
func FromJSON(data []byte) (TokenClaims, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return TokenClaims{}, fmt.Errorf("failed to decode claims: %w", err)
	}
	return TokenClaims{root: m}, nil
}

// Len returns the number of top-level claims.
func (c TokenClaims) Len() int {
	return len(c.root)
}

// String returns the top-level claim with the given name when it is a string.
func (c TokenClaims) String(name string) (string, bool) {
	s, ok := c.root[name].(string)
	return s, ok
}

// Map returns a deep copy of the claim tree.
func (c TokenClaims) Map() map[string]any {
	if c.root == nil {
		return map[string]any{}
	}
	return copyValue(c.root).(map[string]any)
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = copyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = copyValue(child)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}
