package stringutils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const runIDPrefix = "chaos-"

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// GetRunID returns a fresh run identifier, chaos-<8 hex characters>
func GetRunID() string {
	id := uuid.New()
	return runIDPrefix + strings.ReplaceAll(id.String(), "-", "")[:8]
}

// Slugify lowercases the input and joins its alphanumeric words with '_',
// the result is truncated to maxLen characters when maxLen > 0
func Slugify(input string, maxLen int) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(input), "_"), "_")
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "_")
	}
	if slug == "" {
		return "experiment"
	}
	return slug
}
