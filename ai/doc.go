// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai defines the LLM and embedding abstractions used by enrichment.
//
// A Backend performs one completion call against a specific provider's wire
// protocol. The Client wraps any Backend with a FIFO request queue, a global
// concurrency ceiling, optional minimum inter-request spacing, per-call
// timeouts, and requeue-with-backoff for retryable failures. Provider
// implementations live in the subpackages (openai, anthropic, googleai,
// ollama); adding another provider touches neither the queue nor the retry
// logic.
package ai
