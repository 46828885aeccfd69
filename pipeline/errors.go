package pipeline

import "errors"

var (
	// ErrDiscovererRequired is returned when NewPipeline is called without
	// a discoverer.
	ErrDiscovererRequired = errors.New("discoverer required")

	// ErrFetcherRequired is returned when NewPipeline is called without a
	// content fetcher.
	ErrFetcherRequired = errors.New("content fetcher required")

	// ErrEnricherRequired is returned when NewPipeline is called without an
	// enricher.
	ErrEnricherRequired = errors.New("enricher required")

	// ErrSkillStoreRequired is returned when NewPipeline is called without
	// a skill store.
	ErrSkillStoreRequired = errors.New("skill store required")

	// ErrCheckpointStoreRequired is returned when NewPipeline is called
	// without a checkpoint store.
	ErrCheckpointStoreRequired = errors.New("checkpoint store required")
)
