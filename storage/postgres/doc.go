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


// Package postgres implements the skill store on PostgreSQL via pgx.
//
// Writes are upserts keyed by (repo_full_name, skill_path). Transient
// connection failures are retried with backoff; the connection pool is torn
// down and recreated between attempts, since a pool that has lost its
// backend tends to keep handing out dead connections.
package postgres
