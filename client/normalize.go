package client

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeIdentifier trims and NFKC-normalizes a user-supplied account
// identifier so that visually identical input always serializes to the
// same bytes, matching the server's own normalization.
func normalizeIdentifier(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}
