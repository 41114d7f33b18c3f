package store

import (
	"slices"
	"strings"
)

// CleanTag strips JSON debris (brackets, quotes, backslashes) left by
// clients that sent a tag list as an encoded string, trims and lowercases.
// It returns "" when nothing usable is left.
func CleanTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if strings.HasPrefix(tag, "[") || strings.HasPrefix(tag, `"`) {
		tag = strings.Map(func(r rune) rune {
			switch r {
			case '[', ']', '"', '\\':
				return -1
			}
			return r
		}, tag)
		tag = strings.TrimSpace(tag)
	}
	return strings.ToLower(tag)
}

// NormalizeTags cleans every tag, drops empties and removes duplicates while
// keeping first-seen order. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		c := CleanTag(t)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
