package state

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"novelassist/internal/api"
	"novelassist/internal/models"
	"novelassist/internal/scheduler"
	"novelassist/internal/services/novel"
)

// poll tracks the status polling of one uploaded novel. The first terminal status observed
// wins: later responses, including ticks already in flight, are ignored.
type poll struct {
	novelID string
	jobID   string
	done    atomic.Bool

	mu       sync.Mutex
	final    models.ProcessingStatus
	task     *scheduler.Task
	finished chan struct{}
	once     sync.Once
}

func newPoll(novelID, jobID string) *poll {
	return &poll{novelID: novelID, jobID: jobID, finished: make(chan struct{})}
}

func (p *poll) result() models.ProcessingStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.final
}

func (p *poll) cancelTask() {
	p.mu.Lock()
	task := p.task
	p.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

// finish records the terminal status and releases waiters
func (p *poll) finish(status models.ProcessingStatus) {
	p.mu.Lock()
	p.final = status
	p.mu.Unlock()
	p.markFinished()
}

func (p *poll) markFinished() {
	p.once.Do(func() { close(p.finished) })
}

// abandon stops a poll that was superseded or closed
func (p *poll) abandon() {
	p.done.Store(true)
	p.cancelTask()
	p.markFinished()
}

// UploadNovel submits a novel and starts polling its processing status. Any poll still
// running for an earlier upload is stopped first. Returns the new novel's ID.
func (s *Store) UploadNovel(ctx context.Context, req novel.UploadRequest) (string, error) {
	s.Close()

	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
		st.ProcessingStatus = models.StatusUploading
	})

	source := "file"
	if req.File == nil {
		source = "url"
	}
	jobID := s.startJob(ctx, req.Title, source)

	res, err := s.novels.Upload(ctx, req)
	if err != nil {
		s.update(func(st *State) {
			st.Loading = false
			st.Error = "Failed to upload novel: " + api.UserMessage(err)
			st.ProcessingStatus = models.StatusFailed
		})
		s.recordJob(ctx, jobID, models.StatusFailed, "Upload failed: "+api.UserMessage(err))
		return "", err
	}

	s.update(func(st *State) {
		st.Loading = false
		st.ProcessingStatus = models.StatusProcessing
	})
	if s.jobs != nil && jobID != "" {
		if err := s.jobs.Attach(ctx, jobID, res.ID); err != nil {
			s.log.Warn("Failed to attach novel to upload job", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	s.recordJob(ctx, jobID, models.StatusProcessing, "Processing novel "+res.ID)

	s.startPoll(res.ID, jobID)
	return res.ID, nil
}

// WaitForProcessing blocks until the current poll reaches a terminal status, or ctx ends
func (s *Store) WaitForProcessing(ctx context.Context) (models.ProcessingStatus, error) {
	s.mu.Lock()
	p := s.poll
	s.mu.Unlock()

	if p == nil {
		return s.State().ProcessingStatus, nil
	}

	select {
	case <-p.finished:
		if final := p.result(); final != "" {
			return final, nil
		}
		return s.State().ProcessingStatus, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Store) startPoll(novelID, jobID string) {
	if s.sched == nil {
		s.log.Warn("No scheduler configured, processing status will not be polled", zap.String("novel_id", novelID))
		return
	}

	p := newPoll(novelID, jobID)
	s.mu.Lock()
	s.poll = p
	s.mu.Unlock()

	p.mu.Lock()
	p.task = s.sched.Every(s.interval, func(ctx context.Context) {
		s.tick(ctx, p)
	})
	p.mu.Unlock()

	s.log.Debug("Polling processing status",
		zap.String("novel_id", novelID),
		zap.Duration("interval", s.interval))
}

// tick fetches the status once. Fetch errors are logged and polling continues.
// No poll lock is held while the state changes, so subscribers may call back into the store.
func (s *Store) tick(ctx context.Context, p *poll) {
	if p.done.Load() {
		return
	}

	report, err := s.novels.Status(ctx, p.novelID)
	if err != nil {
		s.log.Warn("Status check failed", zap.String("novel_id", p.novelID), zap.Error(err))
		return
	}
	status := report.ProcessingStatus()

	if !status.IsTerminal() {
		s.update(func(st *State) {
			if p.done.Load() || s.poll != p {
				return
			}
			st.ProcessingStatus = status
		})
		return
	}

	if !p.done.CompareAndSwap(false, true) {
		return
	}
	p.cancelTask()

	s.log.Info("Novel processing finished",
		zap.String("novel_id", p.novelID),
		zap.String("status", string(status)))

	message := terminalError(p.novelID, status, report)
	switch status {
	case models.StatusCompleted:
		s.recordJob(ctx, p.jobID, models.StatusCompleted, "Processing completed")
		if _, err := s.FetchNovelDetail(ctx, p.novelID); err != nil {
			s.log.Warn("Failed to load processed novel", zap.String("novel_id", p.novelID), zap.Error(err))
		}
	default:
		s.recordJob(ctx, p.jobID, models.StatusFailed, message)
	}

	s.commit(func(st *State) {
		if s.poll != p {
			return
		}
		switch status {
		case models.StatusNotFound:
			st.ProcessingStatus = models.StatusFailed
		default:
			st.ProcessingStatus = status
		}
		if message != "" {
			st.Error = message
		}
	}, func() { p.finish(status) })
}

// terminalError is the error recorded for FAILED and NOT_FOUND, empty for COMPLETED
func terminalError(novelID string, status models.ProcessingStatus, report *models.StatusReport) string {
	switch status {
	case models.StatusNotFound:
		reason := report.Error
		if reason == "" {
			reason = "novel not found: " + novelID
		}
		return "Novel processing failed: " + reason
	case models.StatusFailed:
		reason := report.Error
		if reason == "" {
			reason = "backend reported FAILED for novel " + novelID
		}
		return "Novel processing failed: " + reason
	default:
		return ""
	}
}

func (s *Store) startJob(ctx context.Context, title, source string) string {
	if s.jobs == nil {
		return ""
	}
	jobID, err := s.jobs.Start(ctx, title, source)
	if err != nil {
		s.log.Warn("Failed to record upload job", zap.Error(err))
		return ""
	}
	return jobID
}

func (s *Store) recordJob(ctx context.Context, jobID string, status models.ProcessingStatus, message string) {
	if s.jobs == nil || jobID == "" {
		return
	}
	if err := s.jobs.Transition(ctx, jobID, status, message); err != nil {
		s.log.Warn("Failed to record upload job transition", zap.String("job_id", jobID), zap.Error(err))
	}
}
