package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/skillscan/core"
)

func validRecord() *core.EnrichedSkill {
	skill := &core.EnrichedSkill{
		Name:        "pdf-tools",
		Description: "Work with PDF files",
		Tagline:     "Automates PDF manipulation tasks",
		SearchText:  "pdf-tools Automates PDF manipulation tasks",
	}
	skill.RepoFullName = "acme/tools"
	skill.SkillPath = "skills/pdf"
	return skill
}

func TestValidateRecord(t *testing.T) {
	assert.NoError(t, ValidateRecord(validRecord()))
}

func TestValidateRecordOptionalFieldsMayBeEmpty(t *testing.T) {
	skill := validRecord()
	skill.Tagline = ""
	skill.SearchText = ""
	assert.NoError(t, ValidateRecord(skill))
}

func TestValidateRecordViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.EnrichedSkill)
		field  string
		reason error
	}{
		{
			name:   "missing repo name",
			mutate: func(s *core.EnrichedSkill) { s.RepoFullName = "" },
			field:  "repo_full_name",
			reason: ErrFieldMissing,
		},
		{
			name:   "repo name over ceiling",
			mutate: func(s *core.EnrichedSkill) { s.RepoFullName = strings.Repeat("a", 201) },
			field:  "repo_full_name",
			reason: ErrFieldTooLong,
		},
		{
			name:   "missing name",
			mutate: func(s *core.EnrichedSkill) { s.Name = "" },
			field:  "name",
			reason: ErrFieldMissing,
		},
		{
			name:   "name over ceiling",
			mutate: func(s *core.EnrichedSkill) { s.Name = strings.Repeat("n", 501) },
			field:  "name",
			reason: ErrFieldTooLong,
		},
		{
			name:   "description over ceiling",
			mutate: func(s *core.EnrichedSkill) { s.Description = strings.Repeat("d", 5001) },
			field:  "description",
			reason: ErrFieldTooLong,
		},
		{
			name:   "tagline over ceiling",
			mutate: func(s *core.EnrichedSkill) { s.Tagline = strings.Repeat("t", 501) },
			field:  "tagline",
			reason: ErrFieldTooLong,
		},
		{
			name:   "search text over ceiling",
			mutate: func(s *core.EnrichedSkill) { s.SearchText = strings.Repeat("s", 10001) },
			field:  "search_text",
			reason: ErrFieldTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skill := validRecord()
			tt.mutate(skill)

			err := ValidateRecord(skill)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.ErrorIs(t, err, tt.reason)

			var fieldErr *FieldError
			require.True(t, errors.As(err, &fieldErr))
			assert.Equal(t, tt.field, fieldErr.Field)
		})
	}
}
