package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		id1 := IDFromKey("owner/repo:skills/pdf")
		id2 := IDFromKey("owner/repo:skills/pdf")
		assert.Equal(t, id1, id2)
	})

	t.Run("different keys produce different IDs", func(t *testing.T) {
		id1 := IDFromKey("owner/repo:skills/pdf")
		id2 := IDFromKey("owner/repo:skills/excel")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("empty key is valid", func(t *testing.T) {
		id := IDFromKey("")
		assert.NotZero(t, id)
	})

	t.Run("string form is fixed-width hex", func(t *testing.T) {
		s := IDFromKey("owner/repo:skills/pdf").String()
		assert.Len(t, s, 16)
		assert.Regexp(t, "^[0-9a-f]{16}$", s)
		assert.Equal(t, s, IDFromKey("owner/repo:skills/pdf").String())
	})
}

func TestWorkItemKey(t *testing.T) {
	item := WorkItem{RepoFullName: "acme/tools", SkillPath: "skills/pdf"}
	assert.Equal(t, "acme/tools:skills/pdf", item.Key())

	root := WorkItem{RepoFullName: "acme/tools"}
	assert.Equal(t, "acme/tools:", root.Key())
}

func TestWorkItemSlug(t *testing.T) {
	tests := []struct {
		name string
		item WorkItem
		want string
	}{
		{
			name: "nested path uses terminal segment",
			item: WorkItem{RepoFullName: "acme/tools", SkillPath: "skills/pdf-extract"},
			want: "pdf-extract",
		},
		{
			name: "single segment path",
			item: WorkItem{RepoFullName: "acme/tools", SkillPath: "pdf"},
			want: "pdf",
		},
		{
			name: "root marker uses repo name",
			item: WorkItem{RepoFullName: "acme/pdf-skill", SkillPath: ""},
			want: "pdf-skill",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Slug())
		})
	}
}

func TestWorkItemDownloadURL(t *testing.T) {
	item := WorkItem{
		RepoURL:       "https://github.com/acme/tools",
		DefaultBranch: "main",
		FilePath:      "skills/pdf/SKILL.md",
	}
	assert.Equal(t, "https://github.com/acme/tools/blob/main/skills/pdf/SKILL.md", item.DownloadURL())
}

func TestCheckpoint(t *testing.T) {
	t.Run("add and has", func(t *testing.T) {
		cp := NewCheckpoint(time.Now())
		assert.False(t, cp.Has("a:1"))

		cp.Add("a:1", "b:2")
		assert.True(t, cp.Has("a:1"))
		assert.True(t, cp.Has("b:2"))
		assert.Equal(t, 2, cp.Len())
	})

	t.Run("duplicates ignored", func(t *testing.T) {
		cp := NewCheckpoint(time.Now())
		cp.Add("a:1")
		cp.Add("a:1")
		assert.Equal(t, 1, cp.Len())
		assert.Len(t, cp.ProcessedKeys, 1)
	})

	t.Run("json round trip preserves keys", func(t *testing.T) {
		cp := NewCheckpoint(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
		cp.Add("a:1", "b:2", "c:3")

		data, err := json.Marshal(cp)
		require.NoError(t, err)

		var restored Checkpoint
		require.NoError(t, json.Unmarshal(data, &restored))

		assert.Equal(t, PhaseInProgress, restored.Phase)
		assert.True(t, restored.Has("a:1"))
		assert.True(t, restored.Has("c:3"))
		assert.Equal(t, 3, restored.Len())
		assert.Equal(t, cp.StartedAt, restored.StartedAt)
	})

	t.Run("complete transitions phase", func(t *testing.T) {
		cp := NewCheckpoint(time.Now())
		cp.Complete()
		assert.Equal(t, PhaseCompleted, cp.Phase)
	})

	t.Run("sorted returns deterministic order", func(t *testing.T) {
		cp := NewCheckpoint(time.Now())
		cp.Add("c:3", "a:1", "b:2")
		assert.Equal(t, []string{"a:1", "b:2", "c:3"}, cp.Sorted())
	})
}
