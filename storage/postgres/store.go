// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/retry"
	"github.com/poiesic/skillscan/storage"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 3 * time.Second
)

const upsertSQL = `
INSERT INTO skills (
	repo_full_name, skill_path, skill_slug,
	name, description, license, compatibility, allowed_tools, frontmatter,
	tagline, category, tags, key_features, tech_stack,
	file_tree, has_scripts, has_references, has_assets, script_count, total_files,
	security_warnings, security_analyzed_at,
	repo_url, repo_stars, repo_pushed_at, download_url,
	skill_md_content, skill_md_sha,
	search_text, embedding_text, embedding, embedding_model, embedding_updated_at,
	skill_updated_at, ingested_at, last_checked_at
) VALUES (
	$1, $2, $3,
	$4, $5, $6, $7, $8, $9,
	$10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20,
	$21, $22,
	$23, $24, $25, $26,
	$27, $28,
	$29, $30, $31, $32, $33,
	$34, $35, $36
)
ON CONFLICT (repo_full_name, skill_path) DO UPDATE SET
	skill_slug = EXCLUDED.skill_slug,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	license = EXCLUDED.license,
	compatibility = EXCLUDED.compatibility,
	allowed_tools = EXCLUDED.allowed_tools,
	frontmatter = EXCLUDED.frontmatter,
	tagline = EXCLUDED.tagline,
	category = EXCLUDED.category,
	tags = EXCLUDED.tags,
	key_features = EXCLUDED.key_features,
	tech_stack = EXCLUDED.tech_stack,
	file_tree = EXCLUDED.file_tree,
	has_scripts = EXCLUDED.has_scripts,
	has_references = EXCLUDED.has_references,
	has_assets = EXCLUDED.has_assets,
	script_count = EXCLUDED.script_count,
	total_files = EXCLUDED.total_files,
	security_warnings = EXCLUDED.security_warnings,
	security_analyzed_at = EXCLUDED.security_analyzed_at,
	repo_url = EXCLUDED.repo_url,
	repo_stars = EXCLUDED.repo_stars,
	repo_pushed_at = EXCLUDED.repo_pushed_at,
	download_url = EXCLUDED.download_url,
	skill_md_content = EXCLUDED.skill_md_content,
	skill_md_sha = EXCLUDED.skill_md_sha,
	search_text = EXCLUDED.search_text,
	embedding_text = EXCLUDED.embedding_text,
	embedding = EXCLUDED.embedding,
	embedding_model = EXCLUDED.embedding_model,
	embedding_updated_at = EXCLUDED.embedding_updated_at,
	skill_updated_at = EXCLUDED.skill_updated_at,
	ingested_at = EXCLUDED.ingested_at,
	last_checked_at = EXCLUDED.last_checked_at`

const indexSQL = `
SELECT repo_full_name, skill_path, skill_slug, skill_md_sha, repo_stars
FROM skills`

const getSQL = `
SELECT
	repo_full_name, skill_path, name, description, license, compatibility,
	allowed_tools, frontmatter, tagline, category, tags, key_features,
	tech_stack, file_tree, has_scripts, has_references, has_assets,
	script_count, total_files, security_warnings, repo_url, repo_stars,
	repo_pushed_at, skill_md_content, skill_md_sha, search_text,
	embedding_text, embedding, embedding_model
FROM skills
WHERE repo_full_name = $1 AND skill_path = $2`

// Store implements storage.SkillStore on a pgx connection pool.
type Store struct {
	dsn    string
	policy retry.Policy
	logger *slog.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

var _ storage.SkillStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithRetryPolicy overrides the default connection retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Store) {
		if policy.Retryable == nil {
			policy.Retryable = isRetryable
		}
		s.policy = policy
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore connects to PostgreSQL and returns a skill store.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, ErrDSNRequired
	}

	s := &Store{
		dsn: dsn,
		policy: retry.Policy{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelay,
			Retryable:   isRetryable,
		},
		logger: slog.Default().With("component", "skillstore"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// connect returns the current pool, creating one if needed.
func (s *Store) connect(ctx context.Context) (*pgxpool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return s.pool, nil
	}

	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s.pool = pool
	return pool, nil
}

// resetPool discards the current pool so the next attempt dials fresh.
func (s *Store) resetPool() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// Upsert validates and writes one enriched skill. Connection-level failures
// are retried with a recreated pool; validation failures are terminal.
func (s *Store) Upsert(ctx context.Context, skill *core.EnrichedSkill) error {
	if err := storage.ValidateRecord(skill); err != nil {
		return fmt.Errorf("%s: %w", skill.Key(), err)
	}

	args, err := upsertArgs(skill)
	if err != nil {
		return fmt.Errorf("%s: %w", skill.Key(), err)
	}

	attempt := 0
	err = retry.Do(ctx, s.policy, func() error {
		attempt++
		pool, err := s.connect(ctx)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, upsertSQL, args...); err != nil {
			if isRetryable(err) {
				s.logger.Warn("upsert failed, recreating pool",
					"item", skill.Key(), "attempt", attempt, "error", err)
				s.resetPool()
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", skill.Key(), err)
	}
	return nil
}

// Get reads one persisted record by its identity key "repo:path".
func (s *Store) Get(ctx context.Context, key string) (*core.EnrichedSkill, error) {
	repoFullName, skillPath, ok := strings.Cut(key, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, key)
	}

	pool, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	skill, err := scanRecord(pool.QueryRow(ctx, getSQL, repoFullName, skillPath))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return skill, nil
}

// LoadIndex reads the canonical index of everything persisted: marker SHA
// per identity key and the highest-starred owner per canonical group.
func (s *Store) LoadIndex(ctx context.Context) (*core.CanonicalIndex, error) {
	pool, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, indexSQL)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	defer rows.Close()

	index := core.NewCanonicalIndex()
	for rows.Next() {
		var repoFullName, skillPath, slug, sha string
		var stars int
		if err := rows.Scan(&repoFullName, &skillPath, &slug, &sha, &stars); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}

		key := repoFullName + ":" + skillPath
		index.ByKey[key] = core.IndexEntry{SHA: sha, Slug: slug, Stars: stars}

		if owner, ok := index.BySlug[slug]; !ok || stars > owner.Stars {
			index.BySlug[slug] = core.SlugOwner{RepoFullName: repoFullName, Stars: stars}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	s.logger.Debug("canonical index loaded", "keys", len(index.ByKey))
	return index, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.resetPool()
	return nil
}

// upsertArgs flattens an enriched skill into the upsert parameter list.
// Structured fields travel as JSON; empty optional strings become NULL.
func upsertArgs(skill *core.EnrichedSkill) ([]any, error) {
	now := time.Now().UTC()

	structured := map[string]any{
		"allowed_tools":     skill.AllowedTools,
		"frontmatter":       skill.Frontmatter,
		"tags":              skill.Tags,
		"key_features":      skill.KeyFeatures,
		"tech_stack":        skill.TechStack,
		"file_tree":         skill.FileTree,
		"security_warnings": skill.Findings,
	}
	encoded := make(map[string][]byte, len(structured))
	for name, value := range structured {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		encoded[name] = data
	}

	var embedding, embeddingModel, embeddingUpdatedAt any
	if len(skill.Vector) > 0 {
		data, err := json.Marshal(skill.Vector)
		if err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
		embedding = string(data)
		embeddingModel = skill.EmbeddingModel
		embeddingUpdatedAt = now
	}

	skillUpdatedAt := skill.PushedAt
	if skillUpdatedAt.IsZero() {
		skillUpdatedAt = now
	}

	return []any{
		skill.RepoFullName, skill.SkillPath, skill.Slug(),
		skill.Name, skill.Description, nullable(skill.License), nullable(skill.Compatibility),
		encoded["allowed_tools"], encoded["frontmatter"],
		skill.Tagline, skill.Category,
		encoded["tags"], encoded["key_features"], encoded["tech_stack"],
		encoded["file_tree"], skill.HasScripts, skill.HasReferences, skill.HasAssets,
		skill.ScriptCount, skill.TotalFiles,
		encoded["security_warnings"], now,
		skill.RepoURL, skill.Stars, nullableTime(skill.PushedAt), skill.DownloadURL(),
		skill.MarkerContent, skill.SHA,
		skill.SearchText, skill.EmbeddingText,
		embedding, embeddingModel, embeddingUpdatedAt,
		skillUpdatedAt, now, now,
	}, nil
}

// scanRecord rebuilds an enriched skill from one row of getSQL. It is the
// inverse of upsertArgs for everything the table stores.
func scanRecord(row pgx.Row) (*core.EnrichedSkill, error) {
	var (
		skill          core.EnrichedSkill
		license        *string
		compatibility  *string
		pushedAt       *time.Time
		embedding      *string
		embeddingModel *string

		allowedTools, frontmatter, tags  []byte
		keyFeatures, techStack, fileTree []byte
		findings                         []byte
	)

	if err := row.Scan(
		&skill.RepoFullName, &skill.SkillPath, &skill.Name, &skill.Description,
		&license, &compatibility,
		&allowedTools, &frontmatter, &skill.Tagline, &skill.Category,
		&tags, &keyFeatures, &techStack, &fileTree,
		&skill.HasScripts, &skill.HasReferences, &skill.HasAssets,
		&skill.ScriptCount, &skill.TotalFiles, &findings,
		&skill.RepoURL, &skill.Stars, &pushedAt,
		&skill.MarkerContent, &skill.SHA, &skill.SearchText,
		&skill.EmbeddingText, &embedding, &embeddingModel,
	); err != nil {
		return nil, err
	}

	structured := map[string]struct {
		data   []byte
		target any
	}{
		"allowed_tools":     {allowedTools, &skill.AllowedTools},
		"frontmatter":       {frontmatter, &skill.Frontmatter},
		"tags":              {tags, &skill.Tags},
		"key_features":      {keyFeatures, &skill.KeyFeatures},
		"tech_stack":        {techStack, &skill.TechStack},
		"file_tree":         {fileTree, &skill.FileTree},
		"security_warnings": {findings, &skill.Findings},
	}
	for name, column := range structured {
		if len(column.data) == 0 {
			continue
		}
		if err := json.Unmarshal(column.data, column.target); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}

	if license != nil {
		skill.License = *license
	}
	if compatibility != nil {
		skill.Compatibility = *compatibility
	}
	if pushedAt != nil {
		skill.PushedAt = *pushedAt
	}
	if embedding != nil {
		if err := json.Unmarshal([]byte(*embedding), &skill.Vector); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	if embeddingModel != nil {
		skill.EmbeddingModel = *embeddingModel
	}
	return &skill, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
