package usecases

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

// Acquirer produces the diff of one changeset.
type Acquirer interface {
	Acquire(ctx context.Context, platform domain.Platform, id int64) (*Acquisition, error)
}

var _ Acquirer = (*AcquisitionService)(nil)

// Task is a handle on one background acquisition. Cancel is idempotent and
// safe to call after the task has finished; a finished result is kept.
type Task struct {
	Platform string
	ID       int64

	cancel   context.CancelFunc
	canceled atomic.Bool
	done     chan struct{}
	result   *Acquisition
	err      error
}

func startTask(ctx context.Context, acq Acquirer, platform domain.Platform, id int64) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		Platform: platform.Name,
		ID:       id,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result, t.err = acq.Acquire(ctx, platform, id)
	}()
	return t
}

// Cancel abandons the acquisition if it is still running.
func (t *Task) Cancel() {
	t.canceled.Store(true)
	t.cancel()
}

// Done is closed once the task has a result.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (*Acquisition, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reusable reports whether a new caller may join t: it either finished
// successfully or is still running and was not canceled.
func (t *Task) reusable() bool {
	select {
	case <-t.done:
		return t.err == nil
	default:
		return !t.canceled.Load()
	}
}

// Loader runs acquisitions for a single consumer. Starting a load for a
// different changeset cancels the one in flight; asking again for the same
// changeset returns the existing task unless it failed or was canceled.
type Loader struct {
	acq Acquirer

	mu      sync.Mutex
	current *Task
}

// NewLoader creates a new Loader.
func NewLoader(acq Acquirer) *Loader {
	return &Loader{acq: acq}
}

// Load starts, or joins, the acquisition of id on platform.
func (l *Loader) Load(ctx context.Context, platform domain.Platform, id int64) *Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c := l.current; c != nil {
		if c.Platform == platform.Name && c.ID == id && c.reusable() {
			return c
		}
		c.Cancel()
	}
	l.current = startTask(ctx, l.acq, platform, id)
	return l.current
}

// Close cancels the task in flight, if any.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		l.current.Cancel()
	}
}
