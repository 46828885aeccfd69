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

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/github"
	"github.com/poiesic/skillscan/retry"
)

const (
	defaultMarkerMaxBytes  = 90000
	defaultMaxSiblingFiles = 20
	defaultSiblingMaxBytes = 100000
	defaultInnerWorkers    = 5

	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// binaryExtensions lists file extensions excluded from sibling fetching.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".ico": {}, ".webp": {}, ".svg": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".rar": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {},
	".pyc": {}, ".class": {}, ".o": {},
}

// ContentClient is the slice of the GitHub client the fetcher uses.
type ContentClient interface {
	GetContent(ctx context.Context, owner, repo, path string) (*github.FileData, error)
	GetTree(ctx context.Context, owner, repo, ref string) ([]github.TreeItem, error)
}

// Fetcher retrieves raw skill content. Network calls retry transient
// failures with exponential backoff; sibling files are fetched through a
// small inner worker pool independent of the batch-level concurrency.
type Fetcher struct {
	client          ContentClient
	markerMaxBytes  int64
	maxSiblingFiles int
	siblingMaxBytes int64
	pool            *ants.Pool
	policy          retry.Policy
	logger          *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher) error

// WithMarkerMaxBytes sets the marker document size ceiling.
func WithMarkerMaxBytes(n int64) Option {
	return func(f *Fetcher) error {
		if n > 0 {
			f.markerMaxBytes = n
		}
		return nil
	}
}

// WithSiblingLimits bounds sibling-file selection: at most maxFiles files,
// each at most maxBytes.
func WithSiblingLimits(maxFiles int, maxBytes int64) Option {
	return func(f *Fetcher) error {
		if maxFiles > 0 {
			f.maxSiblingFiles = maxFiles
		}
		if maxBytes > 0 {
			f.siblingMaxBytes = maxBytes
		}
		return nil
	}
}

// WithInnerWorkers sets the sibling-fetch pool size.
func WithInnerWorkers(size int) Option {
	return func(f *Fetcher) error {
		if size < 1 {
			size = 1
		}
		if f.pool != nil {
			f.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		f.pool = pool
		return nil
	}
}

// WithRetryPolicy overrides the network retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(f *Fetcher) error {
		if policy.Retryable == nil {
			policy.Retryable = github.IsRetryable
		}
		f.policy = policy
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) error {
		if logger != nil {
			f.logger = logger
		}
		return nil
	}
}

// NewFetcher creates a content fetcher.
func NewFetcher(client ContentClient, opts ...Option) (*Fetcher, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	pool, err := ants.NewPool(defaultInnerWorkers)
	if err != nil {
		return nil, err
	}

	f := &Fetcher{
		client:          client,
		markerMaxBytes:  defaultMarkerMaxBytes,
		maxSiblingFiles: defaultMaxSiblingFiles,
		siblingMaxBytes: defaultSiblingMaxBytes,
		pool:            pool,
		policy: retry.Policy{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelay,
			Retryable:   github.IsRetryable,
		},
		logger: slog.Default().With("component", "fetcher"),
	}

	for _, opt := range opts {
		if err := opt(f); err != nil {
			f.pool.Release()
			return nil, err
		}
	}
	return f, nil
}

// Close releases the inner worker pool.
func (f *Fetcher) Close() {
	f.pool.Release()
}

// Fetch retrieves the marker document, derives the skill's file tree, and
// fetches sibling context files for one work item.
func (f *Fetcher) Fetch(ctx context.Context, item core.WorkItem) (*core.FetchedSkill, error) {
	owner, repo, ok := strings.Cut(item.RepoFullName, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidWorkItem, item.RepoFullName)
	}

	marker, err := f.getContent(ctx, owner, repo, item.FilePath)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", item.Key(), ErrMarkerMissing)
		}
		return nil, fmt.Errorf("fetch marker %s: %w", item.Key(), err)
	}
	if marker.Size > f.markerMaxBytes {
		f.logger.Warn("marker document too large",
			"item", item.Key(), "size", marker.Size, "max", f.markerMaxBytes)
		return nil, fmt.Errorf("%s (%d bytes): %w", item.Key(), marker.Size, ErrMarkerTooLarge)
	}

	tree, err := f.getTree(ctx, owner, repo, item.DefaultBranch)
	if err != nil {
		// A missing tree degrades the enrichment context but does not lose
		// the marker document.
		f.logger.Warn("tree unavailable", "item", item.Key(), "error", err)
		tree = nil
	}

	subtree := filterSubtree(tree, item.SkillPath)

	fetched := &core.FetchedSkill{
		WorkItem:      item,
		MarkerContent: marker.Content,
		FileTree:      relativeTree(subtree, item),
	}
	classifyTree(fetched)

	fetched.Files = f.fetchSiblings(ctx, owner, repo, item, subtree)

	return fetched, nil
}

// fetchSiblings selects and concurrently retrieves context files. Per-file
// failures are logged and dropped.
func (f *Fetcher) fetchSiblings(ctx context.Context, owner, repo string, item core.WorkItem, subtree []github.TreeItem) []core.FileContent {
	var candidates []github.TreeItem
	for _, entry := range subtree {
		if entry.Type != "blob" || entry.Path == item.FilePath {
			continue
		}
		if isBinary(entry.Path) || entry.Size > f.siblingMaxBytes {
			continue
		}
		candidates = append(candidates, entry)
		if len(candidates) == f.maxSiblingFiles {
			break
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	prefix := ""
	if item.SkillPath != "" {
		prefix = item.SkillPath + "/"
	}

	results := make([]*core.FileContent, len(candidates))
	var wg sync.WaitGroup

	for i, entry := range candidates {
		wg.Add(1)
		i, entry := i, entry
		submitErr := f.pool.Submit(func() {
			defer wg.Done()

			data, err := f.getContent(ctx, owner, repo, entry.Path)
			if err != nil {
				f.logger.Debug("sibling fetch failed",
					"item", item.Key(), "path", entry.Path, "error", err)
				return
			}
			results[i] = &core.FileContent{
				Path:    strings.TrimPrefix(entry.Path, prefix),
				Content: data.Content,
				Size:    data.Size,
			}
		})
		if submitErr != nil {
			wg.Done()
		}
	}
	wg.Wait()

	files := make([]core.FileContent, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			files = append(files, *r)
		}
	}
	return files
}

func (f *Fetcher) getContent(ctx context.Context, owner, repo, filePath string) (*github.FileData, error) {
	var data *github.FileData
	err := retry.Do(ctx, f.policy, func() error {
		var err error
		data, err = f.client.GetContent(ctx, owner, repo, filePath)
		return err
	})
	return data, err
}

func (f *Fetcher) getTree(ctx context.Context, owner, repo, ref string) ([]github.TreeItem, error) {
	var tree []github.TreeItem
	err := retry.Do(ctx, f.policy, func() error {
		var err error
		tree, err = f.client.GetTree(ctx, owner, repo, ref)
		return err
	})
	return tree, err
}

// filterSubtree keeps only entries under the skill directory.
func filterSubtree(tree []github.TreeItem, skillPath string) []github.TreeItem {
	if skillPath == "" {
		return tree
	}
	prefix := skillPath + "/"
	var out []github.TreeItem
	for _, item := range tree {
		if strings.HasPrefix(item.Path, prefix) {
			out = append(out, item)
		}
	}
	return out
}

// relativeTree converts subtree entries into tree nodes with paths relative
// to the skill directory. The marker document itself is excluded since its
// content is stored separately.
func relativeTree(subtree []github.TreeItem, item core.WorkItem) []core.TreeEntry {
	prefix := ""
	if item.SkillPath != "" {
		prefix = item.SkillPath + "/"
	}

	var out []core.TreeEntry
	for _, entry := range subtree {
		rel := strings.TrimPrefix(entry.Path, prefix)
		if rel == "" || entry.Path == item.FilePath {
			continue
		}
		kind := "file"
		if entry.Type == "tree" {
			kind = "dir"
		}
		out = append(out, core.TreeEntry{Path: rel, Type: kind, Size: entry.Size})
	}
	return out
}

// classifyTree derives structural flags from the relative file tree.
func classifyTree(fetched *core.FetchedSkill) {
	for _, entry := range fetched.FileTree {
		if entry.Type != "file" {
			continue
		}
		fetched.TotalFiles++
		if strings.HasPrefix(entry.Path, "scripts/") ||
			strings.HasSuffix(entry.Path, ".sh") ||
			strings.HasSuffix(entry.Path, ".py") {
			fetched.HasScripts = true
			fetched.ScriptCount++
		}
		if strings.HasPrefix(entry.Path, "references/") {
			fetched.HasReferences = true
		}
		if strings.HasPrefix(entry.Path, "assets/") ||
			strings.HasPrefix(entry.Path, "templates/") {
			fetched.HasAssets = true
		}
	}
}

func isBinary(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	_, ok := binaryExtensions[ext]
	return ok
}
