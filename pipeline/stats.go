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


package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const errorSampleLimit = 10

// Stats accumulates per-phase counts and error samples across a run.
// The count fields are mutated only on the orchestrator goroutine;
// RecordError is safe to call from phase workers.
type Stats struct {
	Discovered int
	Fetched    int
	Enriched   int
	Embedded   int
	Persisted  int
	Skipped    int
	Failed     int
	Stale      int
	Duration   time.Duration

	mu     sync.Mutex
	errors []string
}

// RecordError keeps a short sample of an item-level failure for the run
// summary. Messages are clipped so one pathological error cannot flood the
// report.
func (s *Stats) RecordError(phase, key string, err error) {
	message := fmt.Sprintf("%s %s: %s", phase, key, err)
	if len(message) > 160 {
		message = message[:160]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

// Errors returns all recorded error samples.
func (s *Stats) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}

// ExitCode implements the process exit rule: non-zero only when the run
// produced zero successful writes and at least one failure.
func (s *Stats) ExitCode() int {
	if s.Persisted == 0 && s.Failed > 0 {
		return 1
	}
	return 0
}

// Log writes the run summary.
func (s *Stats) Log(logger *slog.Logger) {
	logger.Info("run summary",
		"duration", s.Duration.Round(time.Second),
		"discovered", s.Discovered,
		"fetched", s.Fetched,
		"enriched", s.Enriched,
		"embedded", s.Embedded,
		"persisted", s.Persisted,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"stale", s.Stale)

	samples := s.Errors()
	shown := samples
	if len(shown) > errorSampleLimit {
		shown = shown[:errorSampleLimit]
	}
	for _, sample := range shown {
		logger.Warn("item failure", "error", sample)
	}
	if extra := len(samples) - len(shown); extra > 0 {
		logger.Warn("additional item failures omitted", "count", extra)
	}
}
