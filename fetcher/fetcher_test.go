package fetcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/github"
	"github.com/poiesic/skillscan/retry"
)

// fakeClient implements ContentClient with function fields.
type fakeClient struct {
	getContentFunc func(ctx context.Context, owner, repo, path string) (*github.FileData, error)
	getTreeFunc    func(ctx context.Context, owner, repo, ref string) ([]github.TreeItem, error)
}

func (f *fakeClient) GetContent(ctx context.Context, owner, repo, path string) (*github.FileData, error) {
	return f.getContentFunc(ctx, owner, repo, path)
}

func (f *fakeClient) GetTree(ctx context.Context, owner, repo, ref string) ([]github.TreeItem, error) {
	if f.getTreeFunc == nil {
		return nil, nil
	}
	return f.getTreeFunc(ctx, owner, repo, ref)
}

func testItem() core.WorkItem {
	return core.WorkItem{
		RepoFullName:  "acme/tools",
		SkillPath:     "skills/pdf",
		FilePath:      "skills/pdf/SKILL.md",
		SHA:           "sha-pdf",
		RepoURL:       "https://github.com/acme/tools",
		Stars:         10,
		DefaultBranch: "main",
	}
}

func contentStore(files map[string]string) func(ctx context.Context, owner, repo, path string) (*github.FileData, error) {
	return func(_ context.Context, _, _, path string) (*github.FileData, error) {
		content, ok := files[path]
		if !ok {
			return nil, github.ErrNotFound
		}
		return &github.FileData{Path: path, Content: content, Size: int64(len(content))}, nil
	}
}

func fastPolicy() Option {
	return WithRetryPolicy(retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	})
}

func TestFetcherRequiresClient(t *testing.T) {
	_, err := NewFetcher(nil)
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestFetcherHappyPath(t *testing.T) {
	client := &fakeClient{
		getContentFunc: contentStore(map[string]string{
			"skills/pdf/SKILL.md":       "# PDF skill",
			"skills/pdf/scripts/run.sh": "echo hi",
			"skills/pdf/references/doc.md": "reference text",
		}),
		getTreeFunc: func(context.Context, string, string, string) ([]github.TreeItem, error) {
			return []github.TreeItem{
				{Path: "README.md", Type: "blob", Size: 10},
				{Path: "skills/pdf/SKILL.md", Type: "blob", Size: 11},
				{Path: "skills/pdf/scripts", Type: "tree"},
				{Path: "skills/pdf/scripts/run.sh", Type: "blob", Size: 7},
				{Path: "skills/pdf/references", Type: "tree"},
				{Path: "skills/pdf/references/doc.md", Type: "blob", Size: 14},
				{Path: "skills/pdf/assets/logo.png", Type: "blob", Size: 900},
			}, nil
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	fetched, err := fetcher.Fetch(context.Background(), testItem())
	require.NoError(t, err)

	assert.Equal(t, "# PDF skill", fetched.MarkerContent)

	// Tree is relative to the skill directory; marker and out-of-tree
	// entries dropped.
	paths := make([]string, 0, len(fetched.FileTree))
	for _, e := range fetched.FileTree {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{
		"scripts", "scripts/run.sh", "references", "references/doc.md", "assets/logo.png",
	}, paths)

	assert.True(t, fetched.HasScripts)
	assert.True(t, fetched.HasReferences)
	assert.True(t, fetched.HasAssets)
	assert.Equal(t, 1, fetched.ScriptCount)
	assert.Equal(t, 3, fetched.TotalFiles)

	// Binary asset excluded from sibling content.
	siblings := make([]string, 0, len(fetched.Files))
	for _, f := range fetched.Files {
		siblings = append(siblings, f.Path)
	}
	assert.ElementsMatch(t, []string{"scripts/run.sh", "references/doc.md"}, siblings)
}

func TestFetcherMarkerTooLarge(t *testing.T) {
	client := &fakeClient{
		getContentFunc: func(context.Context, string, string, string) (*github.FileData, error) {
			return &github.FileData{Content: "x", Size: 200000}, nil
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy(), WithMarkerMaxBytes(90000))
	require.NoError(t, err)
	defer fetcher.Close()

	_, err = fetcher.Fetch(context.Background(), testItem())
	assert.ErrorIs(t, err, ErrMarkerTooLarge)
	assert.True(t, IsSkip(err))
}

func TestFetcherMarkerMissing(t *testing.T) {
	client := &fakeClient{
		getContentFunc: func(context.Context, string, string, string) (*github.FileData, error) {
			return nil, github.ErrNotFound
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	_, err = fetcher.Fetch(context.Background(), testItem())
	assert.ErrorIs(t, err, ErrMarkerMissing)
	assert.True(t, IsSkip(err))
}

func TestFetcherRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		getContentFunc: func(_ context.Context, _, _, path string) (*github.FileData, error) {
			if calls.Add(1) < 3 {
				return nil, &github.StatusError{StatusCode: 503}
			}
			return &github.FileData{Path: path, Content: "ok", Size: 2}, nil
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	fetched, err := fetcher.Fetch(context.Background(), testItem())
	require.NoError(t, err)
	assert.Equal(t, "ok", fetched.MarkerContent)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcherRetriesSecondaryRateLimits(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		getContentFunc: func(_ context.Context, _, _, path string) (*github.FileData, error) {
			if calls.Add(1) < 3 {
				return nil, &github.StatusError{StatusCode: 429}
			}
			return &github.FileData{Path: path, Content: "ok", Size: 2}, nil
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	fetched, err := fetcher.Fetch(context.Background(), testItem())
	require.NoError(t, err)
	assert.Equal(t, "ok", fetched.MarkerContent)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcherNonRetryableFailsFast(t *testing.T) {
	var calls atomic.Int32
	client := &fakeClient{
		getContentFunc: func(context.Context, string, string, string) (*github.FileData, error) {
			calls.Add(1)
			return nil, &github.StatusError{StatusCode: 500, Body: "boom"}
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	_, err = fetcher.Fetch(context.Background(), testItem())
	require.Error(t, err)
	assert.False(t, IsSkip(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcherSiblingSelection(t *testing.T) {
	files := map[string]string{"skills/pdf/SKILL.md": "# marker"}
	tree := []github.TreeItem{
		{Path: "skills/pdf/SKILL.md", Type: "blob", Size: 8},
		{Path: "skills/pdf/big.txt", Type: "blob", Size: 200000},
		{Path: "skills/pdf/logo.png", Type: "blob", Size: 50},
	}
	for i := 0; i < 30; i++ {
		p := fmt.Sprintf("skills/pdf/f%02d.md", i)
		files[p] = "content"
		tree = append(tree, github.TreeItem{Path: p, Type: "blob", Size: 7})
	}

	client := &fakeClient{
		getContentFunc: contentStore(files),
		getTreeFunc: func(context.Context, string, string, string) ([]github.TreeItem, error) {
			return tree, nil
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy(), WithSiblingLimits(20, 100000))
	require.NoError(t, err)
	defer fetcher.Close()

	fetched, err := fetcher.Fetch(context.Background(), testItem())
	require.NoError(t, err)

	// Cap of 20, oversized and binary entries never selected.
	assert.Len(t, fetched.Files, 20)
	for _, f := range fetched.Files {
		assert.NotEqual(t, "big.txt", f.Path)
		assert.NotEqual(t, "logo.png", f.Path)
	}
}

func TestFetcherSiblingFailuresAreDropped(t *testing.T) {
	client := &fakeClient{
		getContentFunc: func(_ context.Context, _, _, path string) (*github.FileData, error) {
			switch path {
			case "skills/pdf/SKILL.md":
				return &github.FileData{Content: "# marker", Size: 8}, nil
			case "skills/pdf/good.md":
				return &github.FileData{Content: "fine", Size: 4}, nil
			default:
				return nil, &github.StatusError{StatusCode: 500}
			}
		},
		getTreeFunc: func(context.Context, string, string, string) ([]github.TreeItem, error) {
			return []github.TreeItem{
				{Path: "skills/pdf/SKILL.md", Type: "blob", Size: 8},
				{Path: "skills/pdf/good.md", Type: "blob", Size: 4},
				{Path: "skills/pdf/bad.md", Type: "blob", Size: 4},
			}, nil
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	fetched, err := fetcher.Fetch(context.Background(), testItem())
	require.NoError(t, err)
	require.Len(t, fetched.Files, 1)
	assert.Equal(t, "good.md", fetched.Files[0].Path)
}

func TestFetcherTreeFailureDegrades(t *testing.T) {
	client := &fakeClient{
		getContentFunc: contentStore(map[string]string{
			"skills/pdf/SKILL.md": "# marker",
		}),
		getTreeFunc: func(context.Context, string, string, string) ([]github.TreeItem, error) {
			return nil, &github.StatusError{StatusCode: 500}
		},
	}

	fetcher, err := NewFetcher(client, fastPolicy())
	require.NoError(t, err)
	defer fetcher.Close()

	fetched, err := fetcher.Fetch(context.Background(), testItem())
	require.NoError(t, err)
	assert.Equal(t, "# marker", fetched.MarkerContent)
	assert.Empty(t, fetched.FileTree)
	assert.Empty(t, fetched.Files)
}
