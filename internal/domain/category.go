package domain

import "strings"

// CategoryOther is the catch-all bucket for unmatched extensions.
const CategoryOther = "Other"

// CategoryRule maps one category label to the extensions it claims.
// Rules are evaluated in order, so an extension claimed twice goes to
// the earlier rule.
type CategoryRule struct {
	Label      string   `yaml:"label"`
	Extensions []string `yaml:"extensions"`
}

// DefaultCategoryRules returns the built-in classification table.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Label: "PDF", Extensions: []string{".pdf"}},
		{Label: "Word", Extensions: []string{".doc", ".docx"}},
	}
}

// Classify maps a file extension (with leading dot) to a category
// label. Matching is case-insensitive on the extension; anything
// unmatched falls into CategoryOther.
func Classify(ext string, rules []CategoryRule) string {
	ext = strings.ToLower(ext)
	for _, rule := range rules {
		for _, e := range rule.Extensions {
			if ext == strings.ToLower(e) {
				return rule.Label
			}
		}
	}
	return CategoryOther
}
