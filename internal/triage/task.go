// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/logging"
)

// Task is a background computation. Done never blocks; Wait blocks until
// the result is available. A Task's result is published exactly once.
type Task[T any] struct {
	id      string
	started time.Time
	done    chan struct{}

	mu       sync.RWMutex
	finished time.Time
	result   T
	err      error
}

// startTask runs fn in its own goroutine under a context carrying the task
// ID. A panic in fn is recovered and reported as the task's error.
func startTask[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{
		id:      uuid.NewString(),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	ctx = logging.ContextWithTaskID(ctx, t.id)

	go func() {
		var (
			result T
			err    error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s task panicked: %v", name, r)
				logging.Ctx(ctx).Error().Interface("panic", r).Str("task", name).Msg("Task panicked")
			}
			t.mu.Lock()
			t.result, t.err, t.finished = result, err, time.Now()
			t.mu.Unlock()
			close(t.done)
		}()
		result, err = fn(ctx)
	}()
	return t
}

// ID is the task's unique identifier.
func (t *Task[T]) ID() string { return t.id }

// Started is when the task was launched.
func (t *Task[T]) Started() time.Time { return t.started }

// Finished is when the task completed, and false while it is running.
func (t *Task[T]) Finished() (time.Time, bool) {
	if !t.Done() {
		return time.Time{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finished, true
}

// Done reports whether the result is available.
func (t *Task[T]) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task completes and returns its result.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.err
}

// WaitContext is Wait bounded by ctx.
func (t *Task[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.Wait()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
