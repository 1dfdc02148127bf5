package claims

import "strings"

// ClientIDPlaceholder is replaced by the configured client id in path templates.
const ClientIDPlaceholder = "{client_id}"

// Path is a parsed, slash-delimited claim location such as
// "/resource_access/my-client/roles".
type Path struct {
	raw      string
	segments []string
}

// ParsePath substitutes the client id placeholder and splits the template into
// segments. Empty segments (leading, trailing or doubled slashes) are dropped.
func ParsePath(template, clientID string) Path {
	raw := strings.ReplaceAll(template, ClientIDPlaceholder, clientID)

	var segments []string
	for _, seg := range strings.Split(raw, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return Path{raw: raw, segments: segments}
}

// IsZero reports whether the path has no segments. A zero path never resolves.
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

func (p Path) String() string {
	return p.raw
}
