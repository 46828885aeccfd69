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


// Package pipeline orchestrates a full ingestion run.
//
// A run discovers work items, subtracts anything a surviving checkpoint
// already covers, then processes the remainder in fixed-size batches. Each
// batch flows Fetch -> Enrich -> Embed -> Persist; every phase fans out over
// its own bounded worker pool, so a slow LLM phase cannot starve fetch
// throughput. An item failing one phase is dropped from the later ones and
// recorded in the run stats; it never aborts the batch.
//
// The checkpoint is mutated only on the orchestrator goroutine: after every
// batch the batch's identity keys are added and the checkpoint is saved
// before the next batch starts. It is deleted only when the whole run
// finishes without a fatal error, so a crash or interrupt resumes where it
// left off.
package pipeline
