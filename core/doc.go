// Package core contains the domain model shared by every stage of the
// skillscan pipeline: work items discovered on GitHub, fetched and enriched
// skill records, security findings, the canonical dedup index, and the run
// checkpoint.
//
// Types here carry no behavior beyond identity derivation and validation;
// the packages that produce and consume them (discovery, fetcher, enrich,
// storage, pipeline) hold the logic.
package core
