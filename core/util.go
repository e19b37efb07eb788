package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NormalizeEmail folds compatibility characters (e.g. fullwidth "＠") with NFKC,
// then trims and lowers `email`. It never fails; garbage in, garbage out.
func NormalizeEmail(email string) string {
	return CleanString(norm.NFKC.String(email), true /* lower */)
}
