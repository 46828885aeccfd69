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
	"context"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// runPhase maps fn over items using the given worker pool. Workers claim
// the next unclaimed index, so results[i] always corresponds to items[i]
// while completion order across workers stays unspecified. Each item yields
// either a result or an error, never both. A nil tracker disables progress.
func runPhase[I, O any](
	ctx context.Context,
	pool *ants.Pool,
	items []I,
	fn func(context.Context, I) (O, error),
	tracker *ProgressTracker,
) ([]O, []error) {
	results := make([]O, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	var next atomic.Int64
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for {
			index := int(next.Add(1)) - 1
			if index >= len(items) {
				return
			}
			if err := ctx.Err(); err != nil {
				errs[index] = err
			} else {
				results[index], errs[index] = fn(ctx, items[index])
			}
			if tracker != nil {
				tracker.Increment(1)
			}
		}
	}

	workers := pool.Cap()
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		if err := pool.Submit(worker); err != nil {
			// Pool released mid-run; fall back to a plain goroutine so the
			// batch still drains.
			go worker()
		}
	}
	wg.Wait()

	return results, errs
}
