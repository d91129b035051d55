package utils

import (
	"regexp"
	"strings"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips HTML-like tags from user supplied text and collapses
// the surrounding whitespace. Applying it twice yields the same result as
// applying it once.
func SanitizeText(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// ParseTags splits a comma separated tag string, trims each entry, drops
// empties and caps the list at max entries.
func ParseTags(raw string, max int) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := SanitizeText(p)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == max {
			break
		}
	}
	return tags
}
