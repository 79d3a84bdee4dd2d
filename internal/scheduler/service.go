package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"novelassist/internal/logging"
)

// Service runs periodic tasks on a cron scheduler. Each tick runs on its own goroutine,
// so a slow tick may overlap the next one.
type Service struct {
	ctx     context.Context
	cron    *cron.Cron
	entries map[string]cron.EntryID // task ID -> cron entry ID
	mu      sync.Mutex
	log     *zap.Logger
}

// NewService creates a scheduler whose tasks receive ctx
func NewService(ctx context.Context, log *zap.Logger) *Service {
	log = logging.OrNop(log)
	cl := cronLogger{log: log.Sugar()}

	// Create cron scheduler with seconds support
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	return &Service{
		ctx:     ctx,
		cron:    c,
		entries: make(map[string]cron.EntryID),
		log:     log,
	}
}

// Start begins dispatching ticks
func (s *Service) Start() {
	s.cron.Start()
	s.log.Debug("Scheduler started")
}

// Stop halts dispatching and waits for running ticks to return
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Debug("Scheduler stopped")
	}
}

// Every schedules fn every period. Periods are rounded down to whole seconds, with a
// minimum of one second.
func (s *Service) Every(period time.Duration, fn func(ctx context.Context)) *Task {
	task := newTask(s.remove)

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := s.cron.Schedule(cron.Every(period), cron.FuncJob(func() {
		task.run(s.ctx, fn)
	}))
	s.entries[task.ID()] = entryID

	s.log.Debug("Scheduled periodic task",
		zap.String("task_id", task.ID()),
		zap.Duration("period", period))
	return task
}

// Len returns the number of scheduled tasks
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) remove(taskID string) {
	s.mu.Lock()
	entryID, exists := s.entries[taskID]
	delete(s.entries, taskID)
	s.mu.Unlock()

	if exists {
		s.cron.Remove(entryID)
		s.log.Debug("Removed periodic task", zap.String("task_id", taskID))
	}
}

// cronLogger routes cron's own logging to zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
