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


// Package storage defines the store contracts the pipeline writes through.
//
// Three stores back a run:
//
//   - SkillStore: the relational store of record. One upsert per enriched
//     skill, keyed by (repo_full_name, skill_path), plus the canonical index
//     load that seeds discovery.
//   - ResourceStore: blob storage for a skill's sibling files, filtered by
//     an extension allow-list and written idempotently.
//   - CheckpointStore: the durable run checkpoint that makes a crashed
//     multi-hour batch resumable.
//
// Implementations live in the storage/postgres, storage/blob, and
// storage/badger subpackages. Consumers depend only on the interfaces here,
// so tests substitute in-memory doubles without touching a real backend.
//
// Field-length ceilings are enforced in this package, before any write:
// a record that exceeds a declared cap is rejected with a typed error,
// never silently truncated.
package storage
