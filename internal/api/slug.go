package api

import (
	"strings"
	"unicode"
)

// Slugify converts a human name to a URL-safe slug: lowercase, runs of
// non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	prevHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevHyphen = false
		} else if !prevHyphen {
			b.WriteByte('-')
			prevHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
