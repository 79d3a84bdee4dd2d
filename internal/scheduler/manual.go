package scheduler

import (
	"context"
	"sync"
	"time"
)

// Manual is a scheduler driven by explicit Tick calls instead of a clock
type Manual struct {
	ctx   context.Context
	mu    sync.Mutex
	tasks map[string]*manualEntry
	order []string
}

type manualEntry struct {
	task *Task
	fn   func(context.Context)
}

// NewManual creates a manual scheduler
func NewManual(ctx context.Context) *Manual {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Manual{ctx: ctx, tasks: make(map[string]*manualEntry)}
}

// Every registers fn; the period is ignored
func (m *Manual) Every(_ time.Duration, fn func(ctx context.Context)) *Task {
	task := newTask(m.remove)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID()] = &manualEntry{task: task, fn: fn}
	m.order = append(m.order, task.ID())
	return task
}

// Tick runs every live task once, in registration order, and returns how many ran
func (m *Manual) Tick() int {
	m.mu.Lock()
	entries := make([]*manualEntry, 0, len(m.order))
	for _, id := range m.order {
		if e, ok := m.tasks[id]; ok {
			entries = append(entries, e)
		}
	}
	m.mu.Unlock()

	fired := 0
	for _, e := range entries {
		if e.task.run(m.ctx, e.fn) {
			fired++
		}
	}
	return fired
}

// Len returns the number of live tasks
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) remove(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	for i, id := range m.order {
		if id == taskID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
