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

package ai

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type result struct {
	completion *Completion
	err        error
}

type request struct {
	ctx      context.Context
	prompt   string
	attempts int
	done     chan result
}

// Client serializes completion calls through a FIFO queue with a global
// concurrency ceiling. Retryable failures are pushed back to the front of
// the queue after an exponential backoff, up to MaxRetries per request.
// The backend never sees more than MaxConcurrent in-flight calls.
type Client struct {
	backend Backend

	timeout     time.Duration
	minInterval time.Duration
	retryDelay  time.Duration
	maxBackoff  time.Duration
	maxRetries  int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*request
	closed bool

	paceMu     sync.Mutex
	lastLaunch time.Time

	workers sync.WaitGroup
	logger  *slog.Logger
}

// NewClient creates a queued LLM client over the backend.
func NewClient(backend Backend, cfg *Config) (*Client, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		backend:     backend,
		timeout:     cfg.Timeout,
		minInterval: cfg.RequestInterval,
		retryDelay:  cfg.RetryDelay,
		maxBackoff:  cfg.MaxBackoff,
		maxRetries:  cfg.MaxRetries,
		logger:      slog.Default().With("component", "llm-client"),
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = 60 * time.Second
	}
	c.cond = sync.NewCond(&c.mu)

	for i := 0; i < cfg.MaxConcurrent; i++ {
		c.workers.Add(1)
		go c.worker()
	}
	return c, nil
}

// Complete enqueues one prompt and waits for its result. The call honors
// ctx: if ctx ends before the request is served, Complete returns the
// context error (the queued request is discarded when a worker reaches it).
func (c *Client) Complete(ctx context.Context, prompt string) (*Completion, error) {
	req := &request{
		ctx:    ctx,
		prompt: prompt,
		done:   make(chan result, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.queue = append(c.queue, req)
	c.cond.Signal()
	c.mu.Unlock()

	select {
	case r := <-req.done:
		return r.completion, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new requests and waits for queued work to drain.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	c.workers.Wait()
}

func (c *Client) worker() {
	defer c.workers.Done()

	for {
		req := c.next()
		if req == nil {
			return
		}

		if err := req.ctx.Err(); err != nil {
			req.done <- result{err: err}
			continue
		}

		c.pace()

		callCtx := req.ctx
		cancel := func() {}
		if c.timeout > 0 {
			callCtx, cancel = context.WithTimeout(req.ctx, c.timeout)
		}
		completion, err := c.backend.Complete(callCtx, req.prompt)
		cancel()

		if err == nil {
			req.done <- result{completion: completion}
			continue
		}

		if IsRetryable(err) && req.attempts < c.maxRetries {
			req.attempts++
			delay := c.backoff(req.attempts)
			c.logger.Warn("llm call failed, requeueing",
				"attempt", req.attempts, "maxRetries", c.maxRetries,
				"delay", delay, "error", err)
			time.AfterFunc(delay, func() { c.requeueFront(req) })
			continue
		}

		req.done <- result{err: err}
	}
}

// next blocks until a request is available. Returns nil once the client is
// closed and the queue has drained.
func (c *Client) next() *request {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.queue) == 0 {
		return nil
	}
	req := c.queue[0]
	c.queue = c.queue[1:]
	return req
}

// pace enforces the minimum spacing between request launches. Launches are
// serialized so the interval holds across all workers.
func (c *Client) pace() {
	if c.minInterval <= 0 {
		return
	}
	c.paceMu.Lock()
	defer c.paceMu.Unlock()

	if wait := c.minInterval - time.Since(c.lastLaunch); wait > 0 {
		time.Sleep(wait)
	}
	c.lastLaunch = time.Now()
}

// requeueFront puts a retrying request at the head of the queue so older
// work is not starved by new arrivals.
func (c *Client) requeueFront(req *request) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		req.done <- result{err: ErrClientClosed}
		return
	}
	c.queue = append([]*request{req}, c.queue...)
	c.cond.Signal()
	c.mu.Unlock()
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if delay > c.maxBackoff {
		delay = c.maxBackoff
	}
	return delay
}
