// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package discovery

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/github"
)

const (
	defaultQuery            = "filename:SKILL.md"
	defaultMaxPages         = 10 // GitHub caps code search results
	defaultPerPage          = 100
	defaultMaxSkillsPerRepo = 50
	markerFile              = "SKILL.md"
)

// IndexLoader loads the canonical index of everything already persisted.
type IndexLoader interface {
	LoadIndex(ctx context.Context) (*core.CanonicalIndex, error)
}

// Searcher is the slice of the GitHub client the engine uses.
type Searcher interface {
	SearchCode(ctx context.Context, query string, page, perPage int) (*github.CodeSearchPage, error)
	GetRepo(ctx context.Context, owner, repo string) (*github.RepoInfo, error)
	GetTree(ctx context.Context, owner, repo, ref string) ([]github.TreeItem, error)
}

// Result is the outcome of one discovery pass.
type Result struct {
	Items []core.WorkItem

	// SeenKeys holds the identity key of every marker file observed during
	// the scan, including unchanged ones. Used for staleness reporting after
	// the run.
	SeenKeys map[string]struct{}

	ReposScanned      int
	NewCount          int
	UpdatedCount      int
	UnchangedCount    int
	DuplicatesSkipped int
}

// Engine walks GitHub code search results, scans candidate repository trees
// for marker files, and filters them against the persisted canonical index.
type Engine struct {
	client           Searcher
	store            IndexLoader
	query            string
	maxPages         int
	perPage          int
	maxSkillsPerRepo int
	repoLimit        int // 0 means unlimited
	skillLimit       int // 0 means unlimited
	force            bool
	logger           *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithQuery overrides the code search query.
func WithQuery(query string) Option {
	return func(e *Engine) {
		if query != "" {
			e.query = query
		}
	}
}

// WithMaxSkillsPerRepo sets the marker-file count above which a repository
// is treated as noise and skipped entirely.
func WithMaxSkillsPerRepo(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSkillsPerRepo = n
		}
	}
}

// WithRepoLimit caps how many repositories are scanned. Zero means no cap.
// Intended for controlled development runs.
func WithRepoLimit(n int) Option {
	return func(e *Engine) {
		e.repoLimit = n
	}
}

// WithSkillLimit caps how many work items are emitted. Zero means no cap.
// Intended for controlled development runs.
func WithSkillLimit(n int) Option {
	return func(e *Engine) {
		e.skillLimit = n
	}
}

// WithForce bypasses the unchanged-content drop so every surviving
// candidate is reprocessed.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a discovery engine.
func NewEngine(client Searcher, store IndexLoader, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	e := &Engine{
		client:           client,
		store:            store,
		query:            defaultQuery,
		maxPages:         defaultMaxPages,
		perPage:          defaultPerPage,
		maxSkillsPerRepo: defaultMaxSkillsPerRepo,
		logger:           slog.Default().With("component", "discovery"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes a full discovery pass and returns the filtered work list.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	index, err := e.store.LoadIndex(ctx)
	if err != nil {
		// A missing or unreadable index degrades to "everything is new"
		// rather than aborting the run.
		e.logger.Warn("failed to load canonical index, treating store as empty", "error", err)
		index = core.NewCanonicalIndex()
	}
	e.logger.Info("loaded canonical index",
		"skills", len(index.ByKey), "slugs", len(index.BySlug))

	repos, err := e.searchRepos(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("code search complete", "repos", len(repos))

	if e.repoLimit > 0 && len(repos) > e.repoLimit {
		repos = repos[:e.repoLimit]
		e.logger.Info("repo limit applied", "repos", len(repos))
	}

	result := &Result{SeenKeys: make(map[string]struct{})}

	// Best version per canonical group accepted in this run. On equal
	// popularity the first identity seen keeps ownership.
	runBest := make(map[string]core.SlugOwner)

	for _, repoName := range repos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.scanRepo(ctx, repoName, index, runBest, result)
	}

	if result.DuplicatesSkipped > 0 {
		e.logger.Info("suppressed duplicate or forked skills",
			"count", result.DuplicatesSkipped)
	}

	if e.skillLimit > 0 && len(result.Items) > e.skillLimit {
		e.logger.Info("skill limit applied",
			"limit", e.skillLimit, "discovered", len(result.Items))
		result.Items = result.Items[:e.skillLimit]
	}

	e.logger.Info("discovery complete",
		"items", len(result.Items),
		"new", result.NewCount,
		"updated", result.UpdatedCount,
		"unchanged", result.UnchangedCount)

	return result, nil
}

// searchRepos pages through code search and returns the unique repository
// names, sorted for deterministic scan order.
func (e *Engine) searchRepos(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	for page := 1; page <= e.maxPages; page++ {
		result, err := e.client.SearchCode(ctx, e.query, page, e.perPage)
		if err != nil {
			if len(seen) == 0 {
				return nil, err
			}
			// Partial results beat an aborted run.
			e.logger.Warn("code search page failed, continuing with partial results",
				"page", page, "error", err)
			break
		}

		for _, name := range result.Repos {
			seen[name] = struct{}{}
		}
		e.logger.Debug("code search page",
			"page", page, "matches", result.Count, "repos", len(seen))

		if result.Count < e.perPage {
			break
		}
	}

	repos := make([]string, 0, len(seen))
	for name := range seen {
		repos = append(repos, name)
	}
	sort.Strings(repos)
	return repos, nil
}

// scanRepo fetches one repository's metadata and tree, then classifies every
// marker file it contains. Inaccessible repositories are skipped.
func (e *Engine) scanRepo(ctx context.Context, repoName string, index *core.CanonicalIndex, runBest map[string]core.SlugOwner, result *Result) {
	owner, repo, ok := splitRepoName(repoName)
	if !ok {
		return
	}

	info, err := e.client.GetRepo(ctx, owner, repo)
	if err != nil {
		e.logger.Debug("skipping inaccessible repo", "repo", repoName, "error", err)
		return
	}

	tree, err := e.client.GetTree(ctx, owner, repo, info.DefaultBranch)
	if err != nil {
		e.logger.Debug("skipping repo, tree unavailable", "repo", repoName, "error", err)
		return
	}
	result.ReposScanned++

	markers := markerFiles(tree)
	if len(markers) == 0 {
		return
	}
	if len(markers) > e.maxSkillsPerRepo {
		e.logger.Info("skipping repo, too many markers",
			"repo", repoName, "markers", len(markers), "max", e.maxSkillsPerRepo)
		return
	}

	pushedAt, _ := time.Parse(time.RFC3339, info.PushedAt)

	for _, marker := range markers {
		item := core.WorkItem{
			RepoFullName:  repoName,
			SkillPath:     skillPath(marker.Path),
			FilePath:      marker.Path,
			SHA:           marker.SHA,
			RepoURL:       info.HTMLURL,
			Stars:         info.Stars,
			PushedAt:      pushedAt,
			DefaultBranch: info.DefaultBranch,
		}

		key := item.Key()
		result.SeenKeys[key] = struct{}{}

		slug := item.Slug()
		if e.isDuplicate(slug, repoName, info.Stars, index, runBest) {
			result.DuplicatesSkipped++
			continue
		}

		// This identity now owns the canonical group unless a strictly more
		// popular one shows up later.
		if best, ok := runBest[slug]; !ok || info.Stars > best.Stars {
			runBest[slug] = core.SlugOwner{RepoFullName: repoName, Stars: info.Stars}
		}

		persisted, known := index.ByKey[key]
		switch {
		case !known:
			result.NewCount++
		case persisted.SHA != item.SHA:
			result.UpdatedCount++
		case e.force:
			// Reprocess despite unchanged content.
		default:
			result.UnchangedCount++
			continue
		}

		result.Items = append(result.Items, item)
	}
}

// isDuplicate reports whether a different identity already owns this
// canonical group at equal or better popularity, either in the persisted
// index or earlier in this run.
func (e *Engine) isDuplicate(slug, repoName string, stars int, index *core.CanonicalIndex, runBest map[string]core.SlugOwner) bool {
	if best, ok := index.BySlug[slug]; ok &&
		best.RepoFullName != repoName && best.Stars >= stars {
		return true
	}
	if best, ok := runBest[slug]; ok &&
		best.RepoFullName != repoName && best.Stars >= stars {
		return true
	}
	return false
}

// markerFiles returns every blob in the tree whose file name is the marker.
func markerFiles(tree []github.TreeItem) []github.TreeItem {
	var out []github.TreeItem
	for _, item := range tree {
		if item.Type != "blob" {
			continue
		}
		if item.Path == markerFile || strings.HasSuffix(item.Path, "/"+markerFile) {
			out = append(out, item)
		}
	}
	return out
}

// skillPath strips the marker file name, leaving the containing directory.
// Empty for a repo-root marker.
func skillPath(filePath string) string {
	if i := strings.LastIndex(filePath, "/"); i >= 0 {
		return filePath[:i]
	}
	return ""
}

func splitRepoName(full string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(full, "/")
	return owner, repo, ok && owner != "" && repo != ""
}
