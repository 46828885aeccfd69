package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Client is a minimal wrapper around GitHub's REST API v3, covering just the
// endpoints the pipeline requires: code search, git trees, file contents,
// repository metadata, and the rate-limit probe. Every request draws its
// credential from the token pool.
type Client struct {
	http    *http.Client
	pool    *TokenPool
	baseURL string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL (useful for tests and GitHub
// Enterprise deployments).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

// NewClient returns a ready-to-use GitHub API client backed by the pool.
func NewClient(pool *TokenPool, opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		pool:    pool,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RepoInfo is repository metadata needed by discovery.
type RepoInfo struct {
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	Stars         int    `json:"stargazers_count"`
	PushedAt      string `json:"pushed_at"`
	DefaultBranch string `json:"default_branch"`
}

// TreeItem is one entry of a recursive git tree listing.
type TreeItem struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob" or "tree"
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// FileData is a decoded file from the contents API.
type FileData struct {
	Path    string
	SHA     string
	Size    int64
	Content string
}

// CodeSearchPage is one page of code search results, reduced to the
// repository names that matched.
type CodeSearchPage struct {
	TotalCount int
	Repos      []string
	Count      int // number of items on this page
}

// ProbeToken queries /rate_limit with a specific token, bypassing the pool.
// Used by TokenPool.Validate to check credentials and read true quota.
func (c *Client) ProbeToken(ctx context.Context, token string) (int, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rate_limit", nil)
	if err != nil {
		return 0, time.Time{}, err
	}
	c.addHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, time.Time{}, statusError(resp)
	}

	var payload struct {
		Resources struct {
			Core struct {
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, time.Time{}, err
	}

	return payload.Resources.Core.Remaining, time.Unix(payload.Resources.Core.Reset, 0), nil
}

// SearchCode runs one page of a code search query and returns the matching
// repository names. GitHub caps code search at roughly 10 pages of 100.
func (c *Client) SearchCode(ctx context.Context, query string, page, perPage int) (*CodeSearchPage, error) {
	u := fmt.Sprintf("%s/search/code?q=%s&per_page=%d&page=%d",
		c.baseURL, url.QueryEscape(query), perPage, page)

	var payload struct {
		TotalCount int `json:"total_count"`
		Items      []struct {
			Repository struct {
				FullName string `json:"full_name"`
			} `json:"repository"`
		} `json:"items"`
	}
	if err := c.get(ctx, u, &payload); err != nil {
		return nil, err
	}

	result := &CodeSearchPage{
		TotalCount: payload.TotalCount,
		Count:      len(payload.Items),
	}
	for _, item := range payload.Items {
		result.Repos = append(result.Repos, item.Repository.FullName)
	}
	return result, nil
}

// GetRepo fetches repository metadata.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	u := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	var info RepoInfo
	if err := c.get(ctx, u, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetTree fetches the full recursive tree for a ref.
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) ([]TreeItem, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=true",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))

	var payload struct {
		Tree      []TreeItem `json:"tree"`
		Truncated bool       `json:"truncated"`
	}
	if err := c.get(ctx, u, &payload); err != nil {
		return nil, err
	}
	return payload.Tree, nil
}

// GetContent fetches and decodes a single file. Returns ErrNotFound for
// missing paths and for paths that resolve to directories.
func (c *Client) GetContent(ctx context.Context, owner, repo, path string) (*FileData, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))

	var payload struct {
		Type     string `json:"type"`
		Path     string `json:"path"`
		SHA      string `json:"sha"`
		Size     int64  `json:"size"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.get(ctx, u, &payload); err != nil {
		return nil, err
	}

	if payload.Type != "file" {
		return nil, fmt.Errorf("%s is not a file: %w", path, ErrNotFound)
	}

	content := payload.Content
	if payload.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		content = string(decoded)
	}

	return &FileData{
		Path:    payload.Path,
		SHA:     payload.SHA,
		Size:    payload.Size,
		Content: content,
	}, nil
}

// get acquires a credential, executes the request, resynchronizes quota from
// the response headers, and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, rawURL string, v any) error {
	token, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.syncQuota(token, resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		c.pool.MarkInvalid(token)
		return statusError(resp)
	case resp.StatusCode >= 300:
		return statusError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// syncQuota feeds server-reported rate limit headers back to the pool.
func (c *Client) syncQuota(token string, resp *http.Response) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	reset := resp.Header.Get("X-RateLimit-Reset")
	if remaining == "" || reset == "" {
		return
	}
	rem, err1 := strconv.Atoi(remaining)
	rst, err2 := strconv.ParseInt(reset, 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	c.pool.UpdateQuota(token, rem, time.Unix(rst, 0))
}

// addHeaders sets authentication and Accept headers.
func (c *Client) addHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "skillscan")
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// escapePath escapes each segment of a repo-relative path while preserving
// the separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
