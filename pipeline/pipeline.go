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


package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/skillscan/ai"
	"github.com/poiesic/skillscan/core"
	"github.com/poiesic/skillscan/discovery"
	"github.com/poiesic/skillscan/enrich"
	"github.com/poiesic/skillscan/fetcher"
	"github.com/poiesic/skillscan/retry"
	"github.com/poiesic/skillscan/storage"
)

const (
	defaultBatchSize      = 100
	defaultFetchWorkers   = 20
	defaultEnrichWorkers  = 5
	defaultEmbedWorkers   = 20
	defaultPersistWorkers = 20

	defaultEmbedAttempts  = 3
	defaultEmbedBaseDelay = 2 * time.Second

	embeddingInputMax = 8000

	progressInterval = 10
)

// Discoverer produces the run's work list.
type Discoverer interface {
	Run(ctx context.Context) (*discovery.Result, error)
}

// ContentFetcher retrieves one work item's content.
type ContentFetcher interface {
	Fetch(ctx context.Context, item core.WorkItem) (*core.FetchedSkill, error)
}

// Enricher derives metadata for one fetched skill.
type Enricher interface {
	Enrich(ctx context.Context, fetched *core.FetchedSkill) (*core.EnrichedSkill, error)
}

// Pipeline runs the full ingestion flow batch by batch.
type Pipeline struct {
	discoverer  Discoverer
	fetcher     ContentFetcher
	enricher    Enricher
	skills      storage.SkillStore
	checkpoints storage.CheckpointStore

	// Optional.
	embedder       ai.Embedder
	embeddingModel string
	resources      storage.ResourceStore

	batchSize   int
	fetchPool   *ants.Pool
	enrichPool  *ants.Pool
	embedPool   *ants.Pool
	persistPool *ants.Pool
	embedPolicy retry.Policy

	progress io.Writer
	logger   *slog.Logger
	stopped  atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchSize sets how many items are processed per checkpoint cycle.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n >= 1 {
			p.batchSize = n
		}
		return nil
	}
}

func resizePool(target **ants.Pool, size int) error {
	if size < 1 {
		return nil
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return err
	}
	(*target).Release()
	*target = pool
	return nil
}

// WithFetchWorkers sets the fetch phase concurrency.
func WithFetchWorkers(n int) Option {
	return func(p *Pipeline) error { return resizePool(&p.fetchPool, n) }
}

// WithEnrichWorkers sets the enrichment phase concurrency. This bounds
// in-flight LLM requests together with the AI client's own ceiling.
func WithEnrichWorkers(n int) Option {
	return func(p *Pipeline) error { return resizePool(&p.enrichPool, n) }
}

// WithEmbedWorkers sets the embedding phase concurrency.
func WithEmbedWorkers(n int) Option {
	return func(p *Pipeline) error { return resizePool(&p.embedPool, n) }
}

// WithPersistWorkers sets the persist phase concurrency.
func WithPersistWorkers(n int) Option {
	return func(p *Pipeline) error { return resizePool(&p.persistPool, n) }
}

// WithEmbedder enables the embedding step. A nil embedder leaves records
// without vectors.
func WithEmbedder(embedder ai.Embedder, model string) Option {
	return func(p *Pipeline) error {
		p.embedder = embedder
		p.embeddingModel = model
		return nil
	}
}

// WithResourceStore enables sibling-file uploads after a successful upsert.
func WithResourceStore(resources storage.ResourceStore) Option {
	return func(p *Pipeline) error {
		p.resources = resources
		return nil
	}
}

// WithEmbedRetryPolicy overrides the embedding retry policy. Only rate and
// server errors are worth retrying; the default classifier covers those.
func WithEmbedRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if policy.Retryable == nil {
			policy.Retryable = embedRetryable
		}
		p.embedPolicy = policy
		return nil
	}
}

// WithProgressWriter sets where per-phase progress lines go. Default is
// io.Discard; the CLI passes os.Stderr.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		if w != nil {
			p.progress = w
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// NewPipeline assembles an orchestrator over the given phases and stores.
func NewPipeline(
	discoverer Discoverer,
	contentFetcher ContentFetcher,
	enricher Enricher,
	skills storage.SkillStore,
	checkpoints storage.CheckpointStore,
	opts ...Option,
) (*Pipeline, error) {
	if discoverer == nil {
		return nil, ErrDiscovererRequired
	}
	if contentFetcher == nil {
		return nil, ErrFetcherRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}
	if skills == nil {
		return nil, ErrSkillStoreRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointStoreRequired
	}

	p := &Pipeline{
		discoverer:  discoverer,
		fetcher:     contentFetcher,
		enricher:    enricher,
		skills:      skills,
		checkpoints: checkpoints,
		batchSize:   defaultBatchSize,
		embedPolicy: retry.Policy{
			MaxAttempts: defaultEmbedAttempts,
			BaseDelay:   defaultEmbedBaseDelay,
			Retryable:   embedRetryable,
		},
		progress: io.Discard,
		logger:   slog.Default().With("component", "pipeline"),
	}

	pools := []struct {
		target **ants.Pool
		size   int
	}{
		{&p.fetchPool, defaultFetchWorkers},
		{&p.enrichPool, defaultEnrichWorkers},
		{&p.embedPool, defaultEmbedWorkers},
		{&p.persistPool, defaultPersistWorkers},
	}
	for _, spec := range pools {
		pool, err := ants.NewPool(spec.size)
		if err != nil {
			p.Release()
			return nil, err
		}
		*spec.target = pool
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	return p, nil
}

// Release frees the worker pools. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	for _, pool := range []*ants.Pool{p.fetchPool, p.enrichPool, p.embedPool, p.persistPool} {
		if pool != nil {
			pool.Release()
		}
	}
}

// Stop requests a graceful shutdown: the current batch finishes and is
// checkpointed, then Run returns. Safe to call from a signal handler.
func (p *Pipeline) Stop() {
	p.stopped.Store(true)
}

// Run executes one full ingestion run and returns its stats. The returned
// error is fatal-class only (discovery failure, checkpoint store failure);
// item-level failures land in the stats instead.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	startTime := time.Now()
	defer func() { stats.Duration = time.Since(startTime) }()

	checkpoint, err := p.checkpoints.Load(ctx)
	if err != nil {
		p.logger.Warn("checkpoint load failed, starting fresh", "error", err)
		checkpoint = nil
	}
	if checkpoint != nil {
		p.logger.Info("resuming from checkpoint", "processed", checkpoint.Len())
	}

	result, err := p.discoverer.Run(ctx)
	if err != nil {
		return stats, err
	}
	stats.Discovered = len(result.Items)
	p.logger.Info("discovery complete",
		"items", len(result.Items),
		"repos", result.ReposScanned,
		"new", result.NewCount,
		"updated", result.UpdatedCount,
		"duplicates", result.DuplicatesSkipped)

	p.reportStale(ctx, result.SeenKeys, stats)

	toProcess := result.Items
	if checkpoint != nil {
		toProcess = toProcess[:0:0]
		for _, item := range result.Items {
			if !checkpoint.Has(item.Key()) {
				toProcess = append(toProcess, item)
			}
		}
		if skipped := len(result.Items) - len(toProcess); skipped > 0 {
			p.logger.Info("skipping already processed items", "count", skipped)
		}
	}

	if len(toProcess) == 0 {
		p.logger.Info("nothing to process")
		if err := p.checkpoints.Delete(ctx); err != nil {
			p.logger.Warn("checkpoint delete failed", "error", err)
		}
		return stats, nil
	}

	if checkpoint == nil {
		checkpoint = core.NewCheckpoint(startTime)
	}

	interrupted := false
	totalBatches := (len(toProcess) + p.batchSize - 1) / p.batchSize

	for batchNum := 0; batchNum < totalBatches; batchNum++ {
		if p.stopped.Load() || ctx.Err() != nil {
			interrupted = true
			break
		}

		start := batchNum * p.batchSize
		end := min(start+p.batchSize, len(toProcess))
		batch := toProcess[start:end]

		p.logger.Info("batch starting",
			"batch", batchNum+1, "of", totalBatches, "items", len(batch))
		p.runBatch(ctx, batch, stats)

		// Checkpoint commit happens here, on the orchestrator goroutine,
		// covering every item of the batch whatever its outcome.
		for _, item := range batch {
			checkpoint.Add(item.Key())
		}
		if err := p.checkpoints.Save(ctx, checkpoint); err != nil {
			p.logger.Error("checkpoint save failed", "error", err)
		}
	}

	if interrupted || ctx.Err() != nil {
		p.logger.Warn("run interrupted, checkpoint retained",
			"processed", checkpoint.Len())
		return stats, ctx.Err()
	}

	checkpoint.Complete()
	if err := p.checkpoints.Delete(ctx); err != nil {
		p.logger.Warn("checkpoint delete failed", "error", err)
	}

	return stats, nil
}

type embeddedSkill struct {
	skill   *core.EnrichedSkill
	fetched *core.FetchedSkill
}

// runBatch drives one batch through all four phases. Phase outputs are
// filtered between phases; a failed item simply drops out.
func (p *Pipeline) runBatch(ctx context.Context, batch []core.WorkItem, stats *Stats) {
	// Fetch
	tracker := NewProgressTracker(p.progress, "Fetch", len(batch), progressInterval)
	fetchResults, fetchErrs := runPhase(ctx, p.fetchPool, batch,
		func(ctx context.Context, item core.WorkItem) (*core.FetchedSkill, error) {
			return p.fetcher.Fetch(ctx, item)
		}, tracker)
	tracker.Finish()

	var fetched []*core.FetchedSkill
	for i, err := range fetchErrs {
		if err != nil {
			if fetcher.IsSkip(err) {
				stats.Skipped++
			} else {
				stats.Failed++
				stats.RecordError("fetch", batch[i].Key(), err)
			}
			continue
		}
		fetched = append(fetched, fetchResults[i])
	}
	stats.Fetched += len(fetched)
	if len(fetched) == 0 {
		return
	}

	// Enrich
	tracker = NewProgressTracker(p.progress, "Enrich", len(fetched), progressInterval)
	enrichResults, enrichErrs := runPhase(ctx, p.enrichPool, fetched,
		func(ctx context.Context, item *core.FetchedSkill) (*core.EnrichedSkill, error) {
			return p.enricher.Enrich(ctx, item)
		}, tracker)
	tracker.Finish()

	var enriched []embeddedSkill
	for i, err := range enrichErrs {
		if err != nil {
			if enrich.IsSkip(err) {
				stats.Skipped++
			} else {
				stats.Failed++
				stats.RecordError("enrich", fetched[i].Key(), err)
			}
			continue
		}
		enriched = append(enriched, embeddedSkill{skill: enrichResults[i], fetched: fetched[i]})
	}
	stats.Enriched += len(enriched)
	if len(enriched) == 0 {
		return
	}

	// Embed. Failures are non-fatal: the record persists without a vector.
	if p.embedder != nil {
		tracker = NewProgressTracker(p.progress, "Embed", len(enriched), progressInterval)
		embedded, _ := runPhase(ctx, p.embedPool, enriched,
			func(ctx context.Context, item embeddedSkill) (bool, error) {
				return p.embed(ctx, item.skill, stats), nil
			}, tracker)
		tracker.Finish()

		for _, ok := range embedded {
			if ok {
				stats.Embedded++
			}
		}
	}

	// Persist
	tracker = NewProgressTracker(p.progress, "Persist", len(enriched), progressInterval)
	_, persistErrs := runPhase(ctx, p.persistPool, enriched,
		func(ctx context.Context, item embeddedSkill) (struct{}, error) {
			return struct{}{}, p.persist(ctx, item)
		}, tracker)
	tracker.Finish()

	for i, err := range persistErrs {
		if err != nil {
			stats.Failed++
			stats.RecordError("persist", enriched[i].skill.Key(), err)
			continue
		}
		stats.Persisted++
	}
}

// embedServerFragments are provider error substrings that read as a 5xx.
var embedServerFragments = []string{
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"status code: 5",
}

// embedRetryable admits rate and server errors only. Anything else, a
// network fault included, surfaces immediately and leaves the record
// without a vector.
func embedRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") {
		return true
	}
	for _, fragment := range embedServerFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// embed fills in the skill's vector, retrying rate and server errors only.
// Returns true when the skill received a vector.
func (p *Pipeline) embed(ctx context.Context, skill *core.EnrichedSkill, stats *Stats) bool {
	text := skill.EmbeddingText
	if text == "" {
		return false
	}
	if len(text) > embeddingInputMax {
		text = text[:embeddingInputMax]
	}

	var vector []float32
	err := retry.Do(ctx, p.embedPolicy, func() error {
		var embedErr error
		vector, embedErr = p.embedder.EmbedText(ctx, text)
		return embedErr
	})
	if err != nil {
		stats.RecordError("embed", skill.Key(), err)
		return false
	}
	if len(vector) == 0 {
		return false
	}

	skill.Vector = vector
	skill.EmbeddingModel = p.embeddingModel
	return true
}

// persist upserts the record and, on success, uploads its sibling files.
func (p *Pipeline) persist(ctx context.Context, item embeddedSkill) error {
	if err := p.skills.Upsert(ctx, item.skill); err != nil {
		return err
	}

	if p.resources != nil && len(item.fetched.Files) > 0 {
		result, err := p.resources.UploadResources(ctx, item.skill.ID().String(), item.fetched.Files)
		if err != nil {
			p.logger.Warn("resource upload failed",
				"item", item.skill.Key(), "error", err)
		} else if result.Failed > 0 {
			p.logger.Debug("some resources failed to upload",
				"item", item.skill.Key(),
				"uploaded", result.Uploaded, "failed", result.Failed)
		}
	}

	return nil
}

// reportStale logs persisted skills whose identity keys were not seen in
// this scan. Report-only: nothing is deleted.
func (p *Pipeline) reportStale(ctx context.Context, seen map[string]struct{}, stats *Stats) {
	if len(seen) == 0 {
		return
	}
	index, err := p.skills.LoadIndex(ctx)
	if err != nil {
		p.logger.Warn("stale check skipped", "error", err)
		return
	}
	for key := range index.ByKey {
		if _, ok := seen[key]; !ok {
			stats.Stale++
		}
	}
	if stats.Stale > 0 {
		p.logger.Info("stale skills detected", "count", stats.Stale)
	}
}
