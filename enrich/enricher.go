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

package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/skillscan/ai"
	"github.com/poiesic/skillscan/core"
)

const (
	taglineMaxChars = 200
	tagsMax         = 7
	keyFeaturesMax  = 5
	techStackMax    = 10

	// One regeneration on validation failure before the item fails.
	defaultMaxGenerations = 2

	defaultRegenDelay = time.Second
	regenDelayMax     = 10 * time.Second
)

// Completer is the slice of the LLM client the enricher uses. The queue,
// concurrency ceiling, and network retries all live behind it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*ai.Completion, error)
}

// Enricher derives structured metadata and security findings for fetched
// skills. Validation failures trigger a fresh generation (distinct from the
// client's network retry) up to a small ceiling.
type Enricher struct {
	client         Completer
	maxGenerations int
	regenDelay     time.Duration
	logger         *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithMaxGenerations sets the total number of generation attempts per item,
// including the first. Minimum 1.
func WithMaxGenerations(n int) Option {
	return func(e *Enricher) {
		if n >= 1 {
			e.maxGenerations = n
		}
	}
}

// WithRegenerateDelay sets the base delay before a regeneration attempt.
func WithRegenerateDelay(d time.Duration) Option {
	return func(e *Enricher) {
		if d >= 0 {
			e.regenDelay = d
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnricher creates an enricher over the given LLM client.
func NewEnricher(client Completer, opts ...Option) (*Enricher, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	e := &Enricher{
		client:         client,
		maxGenerations: defaultMaxGenerations,
		regenDelay:     defaultRegenDelay,
		logger:         slog.Default().With("component", "enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich produces an EnrichedSkill for one fetched item. Marker-contract
// violations return skip-class errors before any LLM call is made.
func (e *Enricher) Enrich(ctx context.Context, fetched *core.FetchedSkill) (*core.EnrichedSkill, error) {
	fm, body, err := ParseMarker(fetched.MarkerContent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fetched.Key(), err)
	}

	refs := make([]fileRef, len(fetched.Files))
	for i, f := range fetched.Files {
		refs[i] = fileRef{path: f.Path, content: f.Content, size: f.Size}
	}
	prompt := buildPrompt(fm, body, selectPromptFiles(refs))

	meta, err := e.generate(ctx, fetched.Key(), prompt)
	if err != nil {
		return nil, err
	}

	enriched := &core.EnrichedSkill{
		FetchedSkill: *fetched,

		Name:          fm.Name,
		Description:   fm.Description,
		License:       fm.License,
		Compatibility: fm.Compatibility,
		AllowedTools:  fm.AllowedTools,
		Frontmatter:   fm.Extra,
		Body:          body,

		Tagline:     meta.tagline,
		Category:    meta.category,
		Tags:        meta.tags,
		KeyFeatures: meta.keyFeatures,
		TechStack:   meta.techStack,
		Findings:    meta.findings,
	}

	enriched.SearchText = BuildSearchText(
		fm.Name, fm.Description, meta.tagline, meta.tags, meta.keyFeatures, meta.techStack)
	enriched.EmbeddingText = BuildEmbeddingText(
		fm.Name, fm.Description, meta.tagline, meta.category,
		meta.tags, meta.keyFeatures, meta.techStack, body)

	return enriched, nil
}

type metadata struct {
	tagline     string
	category    string
	tags        []string
	keyFeatures []string
	techStack   []string
	findings    []core.SecurityFinding
}

// generate runs the completion-parse-validate loop. Network failures
// propagate immediately (the client already retried them); validation
// failures re-drive a fresh completion.
func (e *Enricher) generate(ctx context.Context, key, prompt string) (*metadata, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxGenerations; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}

		completion, err := e.client.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm call for %s: %w", key, err)
		}

		meta, err := parseMetadata(completion.Content)
		if err != nil {
			lastErr = err
			e.logger.Warn("enrichment output rejected",
				"item", key, "attempt", attempt,
				"maxGenerations", e.maxGenerations, "error", err)
			continue
		}
		return meta, nil
	}

	return nil, fmt.Errorf("%s: %w: %w", key, ErrGenerationExhausted, lastErr)
}

// parseMetadata extracts and validates one completion. Tagline, tags, and
// key features are mandatory with minimum content; category falls back to
// "other"; tech stack and findings may be empty.
func parseMetadata(content string) (*metadata, error) {
	response := ParseResponse(content)

	tagline, err := response.MandatoryBlock("tagline")
	if err != nil {
		return nil, err
	}
	tags := response.List("tags")
	keyFeatures := response.List("key_features")

	if err := core.ValidateEnrichment(tagline, tags, keyFeatures); err != nil {
		return nil, err
	}

	category, _ := response.Block("category")
	category = strings.ToLower(strings.TrimSpace(category))
	if !ValidCategory(category) {
		category = CategoryOther
	}

	lowered := make([]string, 0, len(tags))
	for _, tag := range tags {
		lowered = append(lowered, strings.ToLower(tag))
	}

	return &metadata{
		tagline:     truncate(tagline, taglineMaxChars),
		category:    category,
		tags:        clampList(lowered, tagsMax),
		keyFeatures: clampList(keyFeatures, keyFeaturesMax),
		techStack:   clampList(response.List("tech_stack"), techStackMax),
		findings:    response.Findings(),
	}, nil
}

func (e *Enricher) sleep(ctx context.Context, attempt int) error {
	delay := e.regenDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
	}
	if delay > regenDelayMax {
		delay = regenDelayMax
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clampList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
