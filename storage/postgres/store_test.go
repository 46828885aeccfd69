package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/storage"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.ErrorIs(t, err, ErrDSNRequired)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{nil, false},
		{errors.New("dial tcp 10.0.0.1:5432: connection refused"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("conn closed"), true},
		{errors.New("failed to connect to `host=db`"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("unexpected EOF"), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New(`duplicate key value violates unique constraint "skills_pkey"`), false},
		{errors.New("syntax error at or near SELECT"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.retryable, isRetryable(tt.err), "error: %v", tt.err)
	}
}

func enrichedFixture() *core.EnrichedSkill {
	skill := &core.EnrichedSkill{
		Name:        "pdf-tools",
		Description: "Work with PDF files",
		License:     "MIT",
		Tagline:     "Automates PDF manipulation tasks",
		Category:    "coding",
		Tags:        []string{"pdf", "automation"},
		KeyFeatures: []string{"Merge PDFs", "Extract text"},
		SearchText:  "pdf-tools automation",
	}
	skill.RepoFullName = "acme/tools"
	skill.SkillPath = "skills/pdf"
	skill.SHA = "sha-pdf"
	skill.RepoURL = "https://github.com/acme/tools"
	skill.DefaultBranch = "main"
	skill.FilePath = "skills/pdf/SKILL.md"
	skill.Stars = 12
	skill.MarkerContent = "---\nname: pdf-tools\n---\nbody"
	return skill
}

func TestUpsertRejectsInvalidRecordWithoutConnecting(t *testing.T) {
	// A zero-value store has no pool; validation must fail first.
	store := &Store{logger: slog.Default()}

	skill := enrichedFixture()
	skill.Name = strings.Repeat("n", 501)

	err := store.Upsert(context.Background(), skill)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidRecord)
	assert.ErrorIs(t, err, storage.ErrFieldTooLong)
}

func TestUpsertArgs(t *testing.T) {
	skill := enrichedFixture()
	skill.PushedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	skill.Vector = []float32{0.1, 0.2}
	skill.EmbeddingModel = "text-embedding-3-small"

	args, err := upsertArgs(skill)
	require.NoError(t, err)
	require.Len(t, args, 36)

	assert.Equal(t, "acme/tools", args[0])
	assert.Equal(t, "skills/pdf", args[1])
	assert.Equal(t, "pdf", args[2], "slug is the terminal path segment")
	assert.Equal(t, "pdf-tools", args[3])
	assert.JSONEq(t, `["pdf","automation"]`, string(args[11].([]byte)))
	assert.Equal(t, "https://github.com/acme/tools/blob/main/skills/pdf/SKILL.md", args[25])
	assert.Equal(t, `[0.1,0.2]`, args[30])
	assert.Equal(t, "text-embedding-3-small", args[31])
	assert.Equal(t, skill.PushedAt, args[33], "skill_updated_at mirrors the repo push time")
}

// fakeRow replays an upsert parameter list through the shape Get scans,
// standing in for a live database round trip.
type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		v := r.values[i]
		if v == nil {
			continue
		}
		switch ptr := d.(type) {
		case *string:
			*ptr = v.(string)
		case **string:
			s := v.(string)
			*ptr = &s
		case *bool:
			*ptr = v.(bool)
		case *int:
			*ptr = v.(int)
		case *[]byte:
			*ptr = v.([]byte)
		case **time.Time:
			ts := v.(time.Time)
			*ptr = &ts
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// getColumns maps getSQL's select list onto upsertArgs positions.
var getColumns = []int{
	0, 1, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14,
	15, 16, 17, 18, 19, 20, 22, 23, 24, 26, 27, 28, 29, 30, 31,
}

func TestRecordRoundTripsThroughStoreShape(t *testing.T) {
	skill := enrichedFixture()
	skill.Compatibility = "claude"
	skill.AllowedTools = []string{"Bash", "Read"}
	skill.Frontmatter = map[string]any{"name": "pdf-tools", "license": "MIT"}
	skill.TechStack = []string{"Python", "Ghostscript"}
	skill.FileTree = []core.TreeEntry{
		{Path: "scripts", Type: "dir"},
		{Path: "scripts/run.sh", Type: "file", Size: 8},
	}
	skill.Findings = []core.SecurityFinding{{
		File:        "scripts/run.sh",
		Line:        3,
		Severity:    core.SeverityHigh,
		Type:        core.FindingMaliciousCode,
		Description: "pipes a remote script into bash",
	}}
	skill.HasScripts = true
	skill.ScriptCount = 1
	skill.TotalFiles = 2
	skill.PushedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	skill.EmbeddingText = "pdf-tools automates pdf manipulation"
	skill.Vector = []float32{0.5, 0.25}
	skill.EmbeddingModel = "text-embedding-3-small"

	args, err := upsertArgs(skill)
	require.NoError(t, err)

	values := make([]any, len(getColumns))
	for i, idx := range getColumns {
		values[i] = args[idx]
	}

	loaded, err := scanRecord(fakeRow{values: values})
	require.NoError(t, err)

	assert.Equal(t, skill.Key(), loaded.Key())
	assert.Equal(t, skill.Name, loaded.Name)
	assert.Equal(t, skill.Description, loaded.Description)
	assert.Equal(t, skill.License, loaded.License)
	assert.Equal(t, skill.Compatibility, loaded.Compatibility)
	assert.Equal(t, skill.Tagline, loaded.Tagline)
	assert.Equal(t, skill.Category, loaded.Category)
	assert.Equal(t, skill.MarkerContent, loaded.MarkerContent)
	assert.Equal(t, skill.SHA, loaded.SHA)
	assert.Equal(t, skill.RepoURL, loaded.RepoURL)
	assert.Equal(t, skill.Stars, loaded.Stars)
	assert.Equal(t, skill.PushedAt, loaded.PushedAt)
	assert.Equal(t, skill.SearchText, loaded.SearchText)
	assert.Equal(t, skill.EmbeddingText, loaded.EmbeddingText)
	assert.Equal(t, skill.EmbeddingModel, loaded.EmbeddingModel)
	assert.Equal(t, skill.HasScripts, loaded.HasScripts)
	assert.Equal(t, skill.ScriptCount, loaded.ScriptCount)
	assert.Equal(t, skill.TotalFiles, loaded.TotalFiles)

	assert.Equal(t, skill.AllowedTools, loaded.AllowedTools, "array order survives")
	assert.Equal(t, skill.Tags, loaded.Tags, "array order survives")
	assert.Equal(t, skill.KeyFeatures, loaded.KeyFeatures)
	assert.Equal(t, skill.TechStack, loaded.TechStack)
	assert.Equal(t, skill.FileTree, loaded.FileTree)
	assert.Equal(t, skill.Findings, loaded.Findings)
	assert.Equal(t, skill.Frontmatter, loaded.Frontmatter)
	assert.Equal(t, skill.Vector, loaded.Vector)
}

func TestGetRejectsMalformedKeyWithoutConnecting(t *testing.T) {
	store := &Store{logger: slog.Default()}

	_, err := store.Get(context.Background(), "no-colon-in-key")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpsertArgsEmptyEmbedding(t *testing.T) {
	args, err := upsertArgs(enrichedFixture())
	require.NoError(t, err)

	assert.Nil(t, args[30], "no vector means NULL embedding")
	assert.Nil(t, args[31])
	assert.Nil(t, args[32])
	assert.Nil(t, args[24], "zero push time means NULL repo_pushed_at")
}
