package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkessler/libmirror/internal/domain"
)

// maxNameLength bounds sanitized names so nested destination paths stay
// below platform path limits.
const maxNameLength = 150

// placeholders for absent metadata fields. Always substituted, never
// omitted, so every exported filename has the same shape.
const (
	placeholderYear   = "0000"
	placeholderAuthor = "NoAuthor"
	placeholderTitle  = "NoTitle"
)

var yearPattern = regexp.MustCompile(`[0-9]{4}`)

// Sanitize normalizes arbitrary text into a filesystem-safe name:
// characters illegal on common filesystems become spaces, runs of
// whitespace collapse to one space, and the result is trimmed and
// capped at maxNameLength runes. Empty or all-illegal input yields
// "Untitled". Sanitize is idempotent.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")

	if runes := []rune(cleaned); len(runes) > maxNameLength {
		cleaned = strings.TrimRight(string(runes[:maxNameLength]), " ")
	}

	if cleaned == "" {
		return "Untitled"
	}
	return cleaned
}

// DisplayName builds the canonical "[YEAR] Author - Title" name from
// raw item metadata. The result is not yet filesystem-safe; callers
// pass it through Sanitize before use.
func DisplayName(meta domain.ItemMetadata) string {
	year := extractYear(meta.Date)

	author := meta.AuthorSurname
	if author == "" {
		author = placeholderAuthor
	}

	title := meta.Title
	if title == "" {
		title = placeholderTitle
	}

	return fmt.Sprintf("[%s] %s - %s", year, author, title)
}

// extractYear returns the first run of four consecutive digits found
// anywhere in a raw date string, or the year placeholder.
func extractYear(date string) string {
	if match := yearPattern.FindString(date); match != "" {
		return match
	}
	return placeholderYear
}
