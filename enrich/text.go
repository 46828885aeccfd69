package enrich

import (
	"strings"
)

const (
	searchTextMaxChars    = 4000
	embeddingTextMaxChars = 8000
	embeddingBodyPreview  = 500
)

// BuildSearchText flattens the descriptive fields into one keyword-dense
// string for full-text search.
func BuildSearchText(name, description, tagline string, tags, keyFeatures, techStack []string) string {
	parts := []string{name, tagline, description}
	parts = append(parts, tags...)
	parts = append(parts, keyFeatures...)
	parts = append(parts, techStack...)
	return truncate(strings.Join(parts, " "), searchTextMaxChars)
}

// BuildEmbeddingText composes the text handed to the embedding model:
// labeled metadata lines followed by a collapsed body preview.
func BuildEmbeddingText(name, description, tagline, category string, tags, keyFeatures, techStack []string, body string) string {
	parts := []string{name, tagline, description}

	if category != "" {
		parts = append(parts, "Category: "+category)
	}
	if len(tags) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(tags, ", "))
	}
	if len(keyFeatures) > 0 {
		parts = append(parts, "Features: "+strings.Join(keyFeatures, ", "))
	}
	if len(techStack) > 0 {
		parts = append(parts, "Tech: "+strings.Join(techStack, ", "))
	}
	if body != "" {
		preview := strings.Join(strings.Fields(truncate(body, embeddingBodyPreview)), " ")
		parts = append(parts, preview)
	}

	return truncate(strings.Join(parts, "\n"), embeddingTextMaxChars)
}
