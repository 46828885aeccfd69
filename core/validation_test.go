package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWorkItem(t *testing.T) {
	valid := &WorkItem{RepoFullName: "acme/tools", SHA: "abc123"}
	assert.NoError(t, ValidateWorkItem(valid))

	tests := []struct {
		name    string
		item    *WorkItem
		wantErr error
	}{
		{"nil item", nil, ErrInvalidWorkItem},
		{"missing owner", &WorkItem{RepoFullName: "/tools", SHA: "abc"}, ErrEmptyRepoName},
		{"missing repo", &WorkItem{RepoFullName: "acme/", SHA: "abc"}, ErrEmptyRepoName},
		{"no slash", &WorkItem{RepoFullName: "acme", SHA: "abc"}, ErrEmptyRepoName},
		{"empty sha", &WorkItem{RepoFullName: "acme/tools"}, ErrEmptySHA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkItem(tt.item)
			assert.ErrorIs(t, err, ErrInvalidWorkItem)
			if tt.item != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnrichment(t *testing.T) {
	tags := []string{"pdf", "extraction"}
	features := []string{"extract text", "merge documents"}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateEnrichment("Extracts text from PDF files", tags, features))
	})

	t.Run("short tagline", func(t *testing.T) {
		err := ValidateEnrichment("pdf", tags, features)
		assert.ErrorIs(t, err, ErrShortTagline)
	})

	t.Run("whitespace tagline", func(t *testing.T) {
		err := ValidateEnrichment("         ", tags, features)
		assert.ErrorIs(t, err, ErrShortTagline)
	})

	t.Run("one tag rejected", func(t *testing.T) {
		err := ValidateEnrichment("Extracts text from PDF files", []string{"pdf"}, features)
		assert.ErrorIs(t, err, ErrTooFewTags)
	})

	t.Run("one feature rejected", func(t *testing.T) {
		err := ValidateEnrichment("Extracts text from PDF files", tags, []string{"extract"})
		assert.ErrorIs(t, err, ErrTooFewFeatures)
	})
}

func TestValidSeverity(t *testing.T) {
	assert.True(t, ValidSeverity(SeverityHigh))
	assert.True(t, ValidSeverity(SeverityLow))
	assert.False(t, ValidSeverity(Severity("critical")))
}

func TestValidFindingType(t *testing.T) {
	assert.True(t, ValidFindingType(FindingPromptInjection))
	assert.True(t, ValidFindingType(FindingOther))
	assert.False(t, ValidFindingType(FindingType("weird")))
}
