package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarker(t *testing.T) {
	content := `---
name: pdf-tools
description: Work with PDF files
license: MIT
compatibility: claude
allowed-tools:
  - Bash
  - Read
custom: extra value
---
# PDF Tools

Body text here.
`
	fm, body, err := ParseMarker(content)
	require.NoError(t, err)

	assert.Equal(t, "pdf-tools", fm.Name)
	assert.Equal(t, "Work with PDF files", fm.Description)
	assert.Equal(t, "MIT", fm.License)
	assert.Equal(t, "claude", fm.Compatibility)
	assert.Equal(t, []string{"Bash", "Read"}, fm.AllowedTools)
	assert.Equal(t, "extra value", fm.Extra["custom"])
	assert.True(t, strings.HasPrefix(body, "# PDF Tools"))
}

func TestParseMarkerAllowedToolsString(t *testing.T) {
	content := "---\nname: x1\ndescription: d\nallowed-tools: Bash, Read Write\n---\nbody\n"
	fm, _, err := ParseMarker(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bash", "Read", "Write"}, fm.AllowedTools)
}

func TestParseMarkerCRLF(t *testing.T) {
	content := "---\r\nname: x\r\ndescription: d\r\n---\r\nbody\r\n"
	fm, body, err := ParseMarker(content)
	require.NoError(t, err)
	assert.Equal(t, "x", fm.Name)
	assert.Equal(t, "body\r\n", body)
}

func TestParseMarkerViolations(t *testing.T) {
	longBody := strings.Repeat("x", 150001)
	manyLines := strings.Repeat("line\n", 3001)

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"no frontmatter", "# just markdown\n", ErrNoFrontmatter},
		{"unterminated fence", "---\nname: x\n", ErrNoFrontmatter},
		{"invalid yaml", "---\nname: [unclosed\n---\nbody\n", ErrBadFrontmatter},
		{"scalar yaml", "---\njust a string\n---\nbody\n", ErrBadFrontmatter},
		{"missing name", "---\ndescription: d\n---\nbody\n", ErrMissingName},
		{"blank name", "---\nname: \"  \"\ndescription: d\n---\nbody\n", ErrMissingName},
		{"missing description", "---\nname: x\n---\nbody\n", ErrMissingDescription},
		{"empty body", "---\nname: x\ndescription: d\n---\n\n", ErrEmptyBody},
		{"body too long", "---\nname: x\ndescription: d\n---\n" + longBody, ErrBodyTooLong},
		{"too many lines", "---\nname: x\ndescription: d\n---\n" + manyLines, ErrBodyTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseMarker(tt.content)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsSkip(err), "marker violations are skips, not failures")
		})
	}
}
