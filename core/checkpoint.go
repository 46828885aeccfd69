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


package core

import (
	"sort"
	"time"
)

// CheckpointPhase is the lifecycle state of a run's checkpoint.
// A checkpoint moves Empty -> InProgress -> Completed; a Completed
// checkpoint is deleted by the store and a crashed run resumes from
// whatever InProgress state survived.
type CheckpointPhase string

const (
	PhaseEmpty      CheckpointPhase = "empty"
	PhaseInProgress CheckpointPhase = "in_progress"
	PhaseCompleted  CheckpointPhase = "completed"
)

// Checkpoint records which identity keys have completed processing so a
// crashed run can resume without repeating work. The key set only grows;
// entries are never removed while the run is in progress.
type Checkpoint struct {
	Phase         CheckpointPhase `json:"phase"`
	ProcessedKeys []string        `json:"processedKeys"`
	StartedAt     time.Time       `json:"startedAt"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`

	seen map[string]struct{}
}

// NewCheckpoint creates a fresh in-progress checkpoint for a run starting now.
func NewCheckpoint(startedAt time.Time) *Checkpoint {
	return &Checkpoint{
		Phase:     PhaseInProgress,
		StartedAt: startedAt.UTC(),
		seen:      make(map[string]struct{}),
	}
}

// Has reports whether the given identity key has already been processed.
func (c *Checkpoint) Has(key string) bool {
	c.ensureIndex()
	_, ok := c.seen[key]
	return ok
}

// Add marks identity keys as processed. Duplicates are ignored.
func (c *Checkpoint) Add(keys ...string) {
	c.ensureIndex()
	for _, key := range keys {
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		c.ProcessedKeys = append(c.ProcessedKeys, key)
	}
}

// Len returns the number of processed keys.
func (c *Checkpoint) Len() int {
	c.ensureIndex()
	return len(c.seen)
}

// Complete transitions the checkpoint to the Completed phase.
func (c *Checkpoint) Complete() {
	c.Phase = PhaseCompleted
}

// Sorted returns the processed keys in lexicographic order. Useful for
// deterministic serialization and test assertions.
func (c *Checkpoint) Sorted() []string {
	c.ensureIndex()
	keys := make([]string, 0, len(c.seen))
	for key := range c.seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ensureIndex rebuilds the lookup set after JSON deserialization, where only
// the ProcessedKeys slice survives the round trip.
func (c *Checkpoint) ensureIndex() {
	if c.seen != nil {
		return
	}
	c.seen = make(map[string]struct{}, len(c.ProcessedKeys))
	for _, key := range c.ProcessedKeys {
		c.seen[key] = struct{}{}
	}
}
