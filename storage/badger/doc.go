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


// Package badger implements the checkpoint store on BadgerDB.
//
// The checkpoint is one JSON value behind a fixed key. Every save replaces
// the whole value inside a single transaction, so a crash mid-write leaves
// either the previous checkpoint or the new one, never a torn record.
// Use in-memory mode for tests:
//
//	store, err := badger.NewCheckpointStore("", badger.WithInMemory(true))
package badger
