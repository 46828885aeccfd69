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


// Package blob implements the resource store on any S3-compatible endpoint
// via the MinIO client.
//
// Only code and documentation files pass the extension allow-list; binaries
// and unknown formats are skipped before any network call. Uploads overwrite
// existing objects, which makes re-running a batch safe. A single file
// failing to upload is counted, logged, and otherwise ignored.
package blob
