package github

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *TokenPool) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	pool := newTestPool(t, "tok-test")
	client := NewClient(pool, WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	return client, pool
}

func TestClientSearchCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/code", r.URL.Path)
		assert.Equal(t, "filename:SKILL.md", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer tok-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total_count": 2,
			"items": [
				{"repository": {"full_name": "acme/tools"}},
				{"repository": {"full_name": "beta/kit"}}
			]
		}`))
	}))

	page, err := client.SearchCode(context.Background(), "filename:SKILL.md", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, []string{"acme/tools", "beta/kit"}, page.Repos)
	assert.Equal(t, 2, page.Count)
}

func TestClientGetTree(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/tools/git/trees/main", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("recursive"))

		w.Write([]byte(`{
			"tree": [
				{"path": "skills/pdf/SKILL.md", "type": "blob", "sha": "abc", "size": 120},
				{"path": "skills/pdf", "type": "tree", "sha": "def"}
			]
		}`))
	}))

	tree, err := client.GetTree(context.Background(), "acme", "tools", "main")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "skills/pdf/SKILL.md", tree[0].Path)
	assert.Equal(t, "blob", tree[0].Type)
	assert.Equal(t, int64(120), tree[0].Size)
}

func TestClientGetContent(t *testing.T) {
	t.Run("decodes base64", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte("# hello"))
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/acme/tools/contents/skills/pdf/SKILL.md", r.URL.Path)
			w.Write([]byte(`{
				"type": "file", "path": "skills/pdf/SKILL.md", "sha": "abc",
				"size": 7, "encoding": "base64", "content": "` + encoded + `"
			}`))
		}))

		file, err := client.GetContent(context.Background(), "acme", "tools", "skills/pdf/SKILL.md")
		require.NoError(t, err)
		assert.Equal(t, "# hello", file.Content)
		assert.Equal(t, int64(7), file.Size)
	})

	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		}))

		_, err := client.GetContent(context.Background(), "acme", "tools", "missing.md")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("directory maps to ErrNotFound", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"type": "dir", "path": "skills"}`))
		}))

		_, err := client.GetContent(context.Background(), "acme", "tools", "skills")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClientQuotaSync(t *testing.T) {
	client, pool := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", "1750000000")
		w.Write([]byte(`{"full_name": "acme/tools", "stargazers_count": 7, "default_branch": "main"}`))
	}))

	info, err := client.GetRepo(context.Background(), "acme", "tools")
	require.NoError(t, err)
	assert.Equal(t, 7, info.Stars)

	// Server-reported quota overrides the optimistic counter.
	assert.Equal(t, 42, pool.TotalRemaining())
}

func TestClientAuthFailureMarksTokenInvalid(t *testing.T) {
	client, pool := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	}))

	_, err := client.GetRepo(context.Background(), "acme", "tools")
	require.Error(t, err)
	assert.Equal(t, 0, pool.ValidCount())
}

func TestClientProbeToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		w.Write([]byte(`{"resources": {"core": {"remaining": 4999, "reset": 1750000000}}}`))
	}))

	remaining, reset, err := client.ProbeToken(context.Background(), "tok-test")
	require.NoError(t, err)
	assert.Equal(t, 4999, remaining)
	assert.Equal(t, int64(1750000000), reset.Unix())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&StatusError{StatusCode: 502}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 503}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 504}))
	assert.True(t, IsRetryable(&StatusError{StatusCode: 429}),
		"secondary rate limits back off through the retry policy")
	assert.True(t, IsRetryable(&StatusError{StatusCode: 403, Body: "secondary rate limit hit"}))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 403, Body: "forbidden"}))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 404}))
	assert.False(t, IsRetryable(&StatusError{StatusCode: 401}))
	assert.False(t, IsRetryable(nil))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 429}))
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 403, Body: "API rate limit exceeded"}))
	assert.False(t, IsRateLimited(&StatusError{StatusCode: 403, Body: "Forbidden"}))
	assert.False(t, IsRateLimited(&StatusError{StatusCode: 500}))
}
