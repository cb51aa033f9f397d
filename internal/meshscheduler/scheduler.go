// Package meshscheduler implements a bounded cooperative scheduler: a thin
// wrapper over goroutine spawning that enforces a per-agent concurrency
// limit and refuses new work once closed.
package meshscheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ClosedError is returned by Spawn once the scheduler has been closed.
type ClosedError struct{}

func (e *ClosedError) Error() string { return "scheduler closed" }

// Config controls scheduler concurrency.
type Config struct {
	// MaxConcurrency bounds the number of tasks running at once. Values
	// <= 0 fall back to 32.
	MaxConcurrency int
}

// DefaultConfig returns a configuration allowing 32 concurrent tasks.
func DefaultConfig() Config { return Config{MaxConcurrency: 32} }

// Handle represents a spawned task's eventual result.
type Handle[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Wait blocks until the task completes, or ctx is done, and returns its
// result.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Scheduler is a lightweight wrapper around goroutine spawning that
// enforces per-agent concurrency via a buffered-channel semaphore.
type Scheduler struct {
	permits chan struct{}
	closed  atomic.Bool
	config  Config
	wg      sync.WaitGroup
}

// New constructs a scheduler using the provided configuration.
func New(config Config) *Scheduler {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 32
	}
	return &Scheduler{
		permits: make(chan struct{}, config.MaxConcurrency),
		config:  config,
	}
}

// Config returns the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.config }

// IsClosed reports whether the scheduler has been closed.
func (s *Scheduler) IsClosed() bool { return s.closed.Load() }

// Close prevents new tasks from being spawned. In-flight tasks run to
// completion.
func (s *Scheduler) Close() { s.closed.Store(true) }

// Wait blocks until every spawned task has completed.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Spawn runs fn in a new goroutine once a concurrency permit is available,
// returning a handle to its eventual result. Spawn itself does not block
// waiting for a permit; the goroutine acquires one before running fn and
// releases it, including on panic, before completing.
func Spawn[T any](s *Scheduler, fn func(ctx context.Context) (T, error)) (*Handle[T], error) {
	if s.IsClosed() {
		return nil, &ClosedError{}
	}

	handle := &Handle[T]{done: make(chan struct{})}
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(handle.done)

		s.permits <- struct{}{}
		defer func() { <-s.permits }()

		defer func() {
			if r := recover(); r != nil {
				handle.err = fmt.Errorf("scheduled task panicked: %v", r)
			}
		}()

		handle.result, handle.err = fn(context.Background())
	}()

	return handle, nil
}
