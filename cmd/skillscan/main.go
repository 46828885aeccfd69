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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/skillscan/ai"
	"github.com/poiesic/skillscan/ai/anthropic"
	"github.com/poiesic/skillscan/ai/googleai"
	"github.com/poiesic/skillscan/ai/ollama"
	"github.com/poiesic/skillscan/ai/openai"
	"github.com/poiesic/skillscan/discovery"
	"github.com/poiesic/skillscan/enrich"
	"github.com/poiesic/skillscan/fetcher"
	"github.com/poiesic/skillscan/github"
	"github.com/poiesic/skillscan/pipeline"
	"github.com/poiesic/skillscan/storage/badger"
	"github.com/poiesic/skillscan/storage/blob"
	"github.com/poiesic/skillscan/storage/postgres"
)

func main() {
	app := &cli.App{
		Name:   "skillscan",
		Usage:  "Discover, enrich, and index SKILL.md skills from public GitHub repositories",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run a full ingestion pass",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "github-tokens",
						Usage:    "Comma-separated GitHub API tokens",
						EnvVars:  []string{"GITHUB_TOKENS"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "query",
						Usage:   "Code search query for marker files",
						EnvVars: []string{"SEARCH_QUERY"},
						Value:   "filename:SKILL.md",
					},
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "PostgreSQL connection string",
						EnvVars:  []string{"DATABASE_URL"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "checkpoint-db",
						Usage:   "Path to the BadgerDB checkpoint directory",
						EnvVars: []string{"CHECKPOINT_DB"},
						Value:   ".skillscan-checkpoint",
					},
					&cli.StringFlag{
						Name:    "provider",
						Usage:   "LLM provider (openai, anthropic, googleai, ollama)",
						EnvVars: []string{"LLM_PROVIDER"},
						Value:   ai.ProviderOpenAI,
					},
					&cli.StringFlag{
						Name:    "model",
						Usage:   "LLM model identifier",
						EnvVars: []string{"LLM_MODEL"},
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "LLM API key",
						EnvVars: []string{"LLM_API_KEY"},
					},
					&cli.StringFlag{
						Name:    "llm-host",
						Usage:   "LLM base URL override",
						EnvVars: []string{"LLM_HOST"},
					},
					&cli.IntFlag{
						Name:    "llm-concurrency",
						Usage:   "Concurrent LLM requests",
						EnvVars: []string{"SKILL_CONCURRENT"},
						Value:   5,
					},
					&cli.DurationFlag{
						Name:  "llm-timeout",
						Usage: "Per-call LLM timeout",
						Value: 60 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "request-interval",
						Usage: "Minimum spacing between LLM request launches",
					},
					&cli.StringFlag{
						Name:    "embedding-host",
						Usage:   "Embedding service base URL (OpenAI-compatible)",
						EnvVars: []string{"EMBEDDING_HOST"},
					},
					&cli.StringFlag{
						Name:    "embedding-model",
						Usage:   "Embedding model identifier",
						EnvVars: []string{"EMBEDDING_MODEL"},
						Value:   "text-embedding-3-small",
					},
					&cli.StringFlag{
						Name:    "embedding-api-key",
						Usage:   "Embedding API key (defaults to the LLM key)",
						EnvVars: []string{"EMBEDDING_API_KEY"},
					},
					&cli.BoolFlag{
						Name:    "no-embedding",
						Usage:   "Skip the embedding phase",
						EnvVars: []string{"EMBEDDING_DISABLED"},
					},
					&cli.StringFlag{
						Name:    "blob-endpoint",
						Usage:   "S3-compatible endpoint for resource uploads (empty disables uploads)",
						EnvVars: []string{"BLOB_ENDPOINT"},
					},
					&cli.StringFlag{
						Name:    "blob-access-key",
						EnvVars: []string{"BLOB_ACCESS_KEY"},
					},
					&cli.StringFlag{
						Name:    "blob-secret-key",
						EnvVars: []string{"BLOB_SECRET_KEY"},
					},
					&cli.StringFlag{
						Name:    "blob-bucket",
						Usage:   "Bucket for resource uploads",
						EnvVars: []string{"BLOB_BUCKET"},
						Value:   "skill-resources",
					},
					&cli.BoolFlag{
						Name:    "blob-secure",
						Usage:   "Use TLS when talking to the blob endpoint",
						EnvVars: []string{"BLOB_SECURE"},
						Value:   true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Items per checkpoint batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "fetch-concurrency",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "embed-concurrency",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "persist-concurrency",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:    "force",
						Usage:   "Re-process skills whose content is unchanged",
						EnvVars: []string{"FORCE_ANALYZE_ALL"},
					},
					&cli.IntFlag{
						Name:    "dev-repo-limit",
						Usage:   "Development cap on scanned repositories (0 = no cap)",
						EnvVars: []string{"DEV_REPO_LIMIT"},
					},
					&cli.IntFlag{
						Name:    "dev-skill-limit",
						Usage:   "Development cap on emitted work items (0 = no cap)",
						EnvVars: []string{"DEV_SKILL_LIMIT"},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	tokens := splitTokens(c.String("github-tokens"))
	pool, err := github.NewTokenPool(tokens)
	if err != nil {
		return cli.Exit(fmt.Sprintf("token pool: %v", err), 1)
	}
	gh := github.NewClient(pool)
	if err := pool.Validate(ctx, gh.ProbeToken); err != nil {
		return cli.Exit(fmt.Sprintf("token validation: %v", err), 1)
	}

	skills, err := postgres.NewStore(ctx, c.String("database-url"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("skill store: %v", err), 1)
	}
	defer skills.Close()

	checkpoints, err := badger.NewCheckpointStore(c.String("checkpoint-db"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("checkpoint store: %v", err), 1)
	}
	defer checkpoints.Close()

	engine, err := discovery.NewEngine(gh, skills,
		discovery.WithQuery(c.String("query")),
		discovery.WithForce(c.Bool("force")),
		discovery.WithRepoLimit(c.Int("dev-repo-limit")),
		discovery.WithSkillLimit(c.Int("dev-skill-limit")),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("discovery: %v", err), 1)
	}

	contentFetcher, err := fetcher.NewFetcher(gh)
	if err != nil {
		return cli.Exit(fmt.Sprintf("fetcher: %v", err), 1)
	}
	defer contentFetcher.Close()

	aiConfig := ai.NewConfig(
		ai.WithProvider(c.String("provider")),
		ai.WithModel(c.String("model")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithHost(c.String("llm-host")),
		ai.WithMaxConcurrent(c.Int("llm-concurrency")),
		ai.WithTimeout(c.Duration("llm-timeout")),
		ai.WithRequestInterval(c.Duration("request-interval")),
		ai.WithEmbedding(c.String("embedding-host"), c.String("embedding-model"),
			c.String("embedding-api-key")),
	)
	if err := aiConfig.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("llm config: %v", err), 1)
	}

	backend, err := newBackend(ctx, aiConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("llm backend: %v", err), 1)
	}
	client, err := ai.NewClient(backend, aiConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("llm client: %v", err), 1)
	}
	defer client.Close()

	enricher, err := enrich.NewEnricher(client)
	if err != nil {
		return cli.Exit(fmt.Sprintf("enricher: %v", err), 1)
	}

	opts := []pipeline.Option{
		pipeline.WithBatchSize(c.Int("batch-size")),
		pipeline.WithFetchWorkers(c.Int("fetch-concurrency")),
		pipeline.WithEnrichWorkers(c.Int("llm-concurrency")),
		pipeline.WithEmbedWorkers(c.Int("embed-concurrency")),
		pipeline.WithPersistWorkers(c.Int("persist-concurrency")),
		pipeline.WithProgressWriter(os.Stderr),
	}

	if !c.Bool("no-embedding") {
		embedder, err := openai.NewEmbedder(aiConfig)
		if err != nil {
			return cli.Exit(fmt.Sprintf("embedder: %v", err), 1)
		}
		opts = append(opts, pipeline.WithEmbedder(embedder, aiConfig.EmbeddingModel))
	}

	if endpoint := c.String("blob-endpoint"); endpoint != "" {
		blobClient, err := blob.Connect(endpoint,
			c.String("blob-access-key"), c.String("blob-secret-key"), c.Bool("blob-secure"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("blob store: %v", err), 1)
		}
		uploader, err := blob.NewUploader(blobClient, blob.WithBucket(c.String("blob-bucket")))
		if err != nil {
			return cli.Exit(fmt.Sprintf("uploader: %v", err), 1)
		}
		defer uploader.Close()
		opts = append(opts, pipeline.WithResourceStore(uploader))
	}

	p, err := pipeline.NewPipeline(engine, contentFetcher, enricher, skills, checkpoints, opts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("pipeline: %v", err), 1)
	}
	defer p.Release()

	// First interrupt finishes the current batch and checkpoints; a second
	// one aborts in-flight work.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		<-signals
		slog.Warn("interrupt received, finishing current batch (interrupt again to abort)")
		p.Stop()
		<-signals
		slog.Warn("second interrupt, aborting")
		cancel()
	}()

	stats, runErr := p.Run(ctx)
	stats.Log(slog.Default())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return cli.Exit(fmt.Sprintf("run failed: %v", runErr), 1)
	}
	if code := stats.ExitCode(); code != 0 {
		return cli.Exit("run produced no successful writes", code)
	}
	return nil
}

// newBackend selects the wire protocol for the configured provider.
func newBackend(ctx context.Context, config *ai.Config) (ai.Backend, error) {
	switch config.Provider {
	case ai.ProviderOpenAI:
		return openai.NewBackend(config)
	case ai.ProviderAnthropic:
		return anthropic.NewBackend(config)
	case ai.ProviderGoogleAI:
		return googleai.NewBackend(ctx, config)
	case ai.ProviderOllama:
		return ollama.NewBackend(config)
	default:
		return nil, fmt.Errorf("%w: %s", ai.ErrUnknownProvider, config.Provider)
	}
}

func splitTokens(raw string) []string {
	var tokens []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
