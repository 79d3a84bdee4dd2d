// Package scheduler runs cancellable periodic tasks.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Scheduler starts periodic tasks
type Scheduler interface {
	// Every runs fn once per period until the returned task is cancelled
	Every(period time.Duration, fn func(ctx context.Context)) *Task
}

// Task is the handle of a periodic task. Cancel may be called any number of times, from
// any goroutine, including from inside the task's own tick.
type Task struct {
	id        string
	once      sync.Once
	cancelled atomic.Bool
	runs      atomic.Int64
	done      chan struct{}
	onCancel  func()
}

func newTask(onCancel func(id string)) *Task {
	t := &Task{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	if onCancel != nil {
		t.onCancel = func() { onCancel(t.id) }
	}
	return t
}

// ID returns the task identifier
func (t *Task) ID() string {
	return t.id
}

// Cancel stops the task. Ticks already in flight finish, but none start afterwards.
func (t *Task) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		if t.onCancel != nil {
			t.onCancel()
		}
		close(t.done)
	})
}

// Cancelled reports whether Cancel has been called
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Done is closed once the task is cancelled
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Runs returns how many ticks invoked the task function
func (t *Task) Runs() int64 {
	return t.runs.Load()
}

// run invokes fn unless the task was cancelled before the tick got here
func (t *Task) run(ctx context.Context, fn func(context.Context)) bool {
	if t.Cancelled() {
		return false
	}
	t.runs.Add(1)
	fn(ctx)
	return true
}
