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


package storage

import (
	"context"

	"github.com/poiesic/skillscan/core"
)

// SkillStore is the relational store of record for enriched skills.
// Implementations must be safe for concurrent use by the persist phase's
// worker pool.
type SkillStore interface {
	// Upsert writes one enriched skill, keyed by
	// (repo_full_name, skill_path). An existing row with the same key is
	// replaced. The record must pass ValidateRecord before any write is
	// attempted.
	Upsert(ctx context.Context, skill *core.EnrichedSkill) error

	// Get returns the persisted record for one identity key, or
	// ErrNotFound. Scalar fields and array order survive a round trip
	// through Upsert; fields that are derived rather than stored, such as
	// the default branch, come back empty.
	Get(ctx context.Context, key string) (*core.EnrichedSkill, error)

	// LoadIndex returns the canonical index of everything currently
	// persisted: marker SHA and canonical-group ownership per identity key.
	// An empty store yields an empty (non-nil) index.
	LoadIndex(ctx context.Context) (*core.CanonicalIndex, error)

	// Close releases the underlying connection pool.
	Close() error
}

// UploadResult counts the outcome of one resource-upload batch.
type UploadResult struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// ResourceStore uploads a skill's sibling files to blob storage.
// Uploads are idempotent: re-uploading an existing object overwrites it.
type ResourceStore interface {
	// UploadResources writes the allow-listed subset of files under the
	// skill's storage prefix, the hex form of its content-derived ID.
	// Individual file failures are counted in the result, not returned as
	// an error; the error return is reserved for total failures such as an
	// unreachable endpoint.
	UploadResources(ctx context.Context, prefix string, files []core.FileContent) (*UploadResult, error)
}

// CheckpointStore persists the run checkpoint between batches.
type CheckpointStore interface {
	// Load returns the current checkpoint, or (nil, nil) when none exists.
	Load(ctx context.Context) (*core.Checkpoint, error)

	// Save durably replaces the stored checkpoint. The write is atomic:
	// a crash mid-save leaves either the old or the new checkpoint, never
	// a partial one.
	Save(ctx context.Context, checkpoint *core.Checkpoint) error

	// Delete removes the stored checkpoint. Deleting a missing checkpoint
	// is not an error.
	Delete(ctx context.Context) error

	// Close releases the underlying database handle.
	Close() error
}
