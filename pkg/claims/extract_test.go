package claims

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonNumber(s string) json.Number {
	return json.Number(s)
}

func mustJSON(t *testing.T, s string) TokenClaims {
	t.Helper()
	tc, err := FromJSON([]byte(s))
	require.NoError(t, err)
	return tc
}

func TestExtract(t *testing.T) {
	tc := mustJSON(t, `{
		"groups": ["Test", "Other", 3],
		"email": "jane@example.com",
		"email_verified": true,
		"auth_time": 1700000000,
		"resource_access": {
			"vault": {"roles": ["admin"]},
			"scalar": "x"
		},
		"nested": [{"name": "first"}, {"name": "second"}],
		"nothing": null,
		"empty": []
	}`)

	tests := []struct {
		name   string
		path   string
		want   Values
		wantOK bool
	}{
		{name: "top level list", path: "/groups", want: Values{"Test", "Other", jsonNumber("3")}, wantOK: true},
		{name: "scalar string", path: "/email", want: Values{"jane@example.com"}, wantOK: true},
		{name: "scalar bool", path: "email_verified", want: Values{true}, wantOK: true},
		{name: "scalar number", path: "/auth_time", want: Values{jsonNumber("1700000000")}, wantOK: true},
		{name: "nested list", path: "/resource_access/vault/roles", want: Values{"admin"}, wantOK: true},
		{name: "array index", path: "/nested/1/name", want: Values{"second"}, wantOK: true},
		{name: "empty list is present", path: "/empty", want: Values{}, wantOK: true},
		{name: "missing key", path: "/roles"},
		{name: "missing nested key", path: "/resource_access/other/roles"},
		{name: "terminal object", path: "/resource_access/vault"},
		{name: "terminal null", path: "/nothing"},
		{name: "traverse through scalar", path: "/resource_access/scalar/roles"},
		{name: "traverse through string", path: "/email/domain"},
		{name: "non numeric array index", path: "/nested/first/name"},
		{name: "negative array index", path: "/nested/-1/name"},
		{name: "out of range array index", path: "/nested/5/name"},
		{name: "empty path", path: ""},
		{name: "root only", path: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tc, ParsePath(tt.path, ""))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestExtract_EmptyClaims(t *testing.T) {
	got, ok := Extract(TokenClaims{}, ParsePath("/groups", ""))
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestExtract_KeysAreCaseSensitive(t *testing.T) {
	tc := FromMap(map[string]any{"Groups": []any{"Test"}})

	_, ok := Extract(tc, ParsePath("/groups", ""))
	assert.False(t, ok)

	got, ok := Extract(tc, ParsePath("/Groups", ""))
	require.True(t, ok)
	assert.Equal(t, []string{"Test"}, got.Strings())
}

func TestExtract_DoesNotAliasClaims(t *testing.T) {
	tc := FromMap(map[string]any{"groups": []any{"Test"}})

	got, ok := Extract(tc, ParsePath("/groups", ""))
	require.True(t, ok)
	got[0] = "Mutated"

	again, ok := Extract(tc, ParsePath("/groups", ""))
	require.True(t, ok)
	assert.Equal(t, Values{"Test"}, again)
}

func TestValues_Strings(t *testing.T) {
	v := Values{"a", 1.0, true, nil, "b", map[string]any{}}
	assert.Equal(t, []string{"a", "b"}, v.Strings())
	assert.True(t, v.Contains("a"))
	assert.False(t, v.Contains("A"))
	assert.Empty(t, Values(nil).Strings())
}

func TestParsePath(t *testing.T) {
	p := ParsePath("/resource_access/{client_id}/roles", "vaultwarden")
	assert.Equal(t, "/resource_access/vaultwarden/roles", p.String())
	assert.False(t, p.IsZero())

	p = ParsePath("//groups//", "")
	assert.False(t, p.IsZero())
	got, ok := Extract(FromMap(map[string]any{"groups": []any{"Test"}}), p)
	require.True(t, ok)
	assert.Equal(t, []string{"Test"}, got.Strings())

	assert.True(t, ParsePath("", "x").IsZero())
	assert.True(t, Path{}.IsZero())
}

func TestFromMap_CopiesInput(t *testing.T) {
	src := map[string]any{
		"groups": []string{"Test"},
		"nested": map[string]any{"k": "v"},
	}
	tc := FromMap(src)

	src["groups"] = []string{"Changed"}
	src["nested"].(map[string]any)["k"] = "changed"

	got, ok := Extract(tc, ParsePath("/groups", ""))
	require.True(t, ok)
	assert.Equal(t, []string{"Test"}, got.Strings())

	got, ok = Extract(tc, ParsePath("/nested/k", ""))
	require.True(t, ok)
	assert.Equal(t, []string{"v"}, got.Strings())
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte(`["not", "an", "object"]`))
	require.Error(t, err)

	_, err = FromJSON([]byte(`{`))
	require.Error(t, err)
}
