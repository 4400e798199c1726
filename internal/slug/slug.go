// Package slug normalizes user-supplied names so per-user uniqueness checks
// ignore case, spacing, and punctuation.
package slug

import (
	"regexp"
	"strings"
)

var reSlug = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

// IsSlug returns true if s matches ^[a-z0-9_]{1,48}$
func IsSlug(s string) bool {
	return reSlug.MatchString(s)
}

// Slugify converts s to a slug: lowercase, non [a-z0-9_] -> '_', collapse repeats, trim to 48, and trim leading/trailing '_'.
func Slugify(s string) string {
	if s == "" {
		return s
	}
	out := make([]rune, 0, len(s))
	prevUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			if r == '_' {
				if prevUnderscore {
					continue
				}
				prevUnderscore = true
			} else {
				prevUnderscore = false
			}
			out = append(out, r)
		} else {
			if !prevUnderscore {
				out = append(out, '_')
				prevUnderscore = true
			}
		}
		if len(out) >= 48 {
			break
		}
	}
	return strings.Trim(string(out), "_")
}
