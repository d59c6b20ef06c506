package authz

import (
	"strings"

	"github.com/google/uuid"
)

// ExtractResourceID returns the identifier immediately following the given
// resource segment in the request path, if it parses as a UUID. Absence of a
// match yields no context.
func ExtractResourceID(path, segment string) (string, bool) {
	if segment == "" {
		return "", false
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part != segment || i+1 >= len(parts) {
			continue
		}
		id, err := uuid.Parse(parts[i+1])
		if err != nil {
			continue
		}
		return id.String(), true
	}
	return "", false
}
