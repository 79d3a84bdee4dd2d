package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"novelassist/internal/logging"
	"novelassist/internal/models"
)

// ErrJobNotFound is returned for unknown job IDs
var ErrJobNotFound = errors.New("upload job not found")

// JobProgress is the reporting view of an upload job
type JobProgress struct {
	JobID     string   `json:"job_id"`
	NovelID   string   `json:"novel_id"`
	Title     string   `json:"title"`
	Source    string   `json:"source"`
	Status    string   `json:"status"`
	Progress  int      `json:"progress"`
	Messages  []string `json:"messages"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// Service persists upload job history
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewService creates a job history service over a migrated database
func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: logging.OrNop(log)}
}

// Start records a new upload in the UPLOADING state and returns its job ID
func (s *Service) Start(ctx context.Context, title, source string) (string, error) {
	if source == "" {
		source = "file"
	}
	job := &models.UploadJob{
		Title:    title,
		Source:   source,
		Status:   string(models.StatusUploading),
		Progress: models.StatusUploading.Progress(),
		Messages: marshalMessages([]string{"Upload started"}),
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return "", fmt.Errorf("failed to create upload job: %w", err)
	}

	s.log.Debug("Upload job started", zap.String("job_id", job.ID), zap.String("title", title))
	return job.ID, nil
}

// Attach links a job to the novel ID the backend assigned
func (s *Service) Attach(ctx context.Context, jobID, novelID string) error {
	res := s.db.WithContext(ctx).Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Update("novel_id", novelID)
	if res.Error != nil {
		return fmt.Errorf("failed to attach novel to job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Transition moves a job to status and appends message to its log
func (s *Service) Transition(ctx context.Context, jobID string, status models.ProcessingStatus, message string) error {
	var job models.UploadJob
	err := s.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load upload job: %w", err)
	}

	job.Status = string(status)
	job.Progress = status.Progress()
	if message != "" {
		job.Messages = marshalMessages(append(unmarshalMessages(job.Messages), message))
	}

	if err := s.db.WithContext(ctx).Save(&job).Error; err != nil {
		return fmt.Errorf("failed to update upload job: %w", err)
	}

	s.log.Debug("Upload job transition",
		zap.String("job_id", jobID),
		zap.String("status", job.Status),
		zap.Int("progress", job.Progress))
	return nil
}

// Get returns one job
func (s *Service) Get(ctx context.Context, jobID string) (*JobProgress, error) {
	var job models.UploadJob
	err := s.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload job: %w", err)
	}
	p := toProgress(&job)
	return &p, nil
}

// List returns the most recent jobs, newest first. limit <= 0 means 50.
func (s *Service) List(ctx context.Context, limit int) ([]JobProgress, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []models.UploadJob
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list upload jobs: %w", err)
	}

	out := make([]JobProgress, len(jobs))
	for i := range jobs {
		out[i] = toProgress(&jobs[i])
	}
	return out, nil
}

// Summary renders a one-line description of a job
func Summary(job *JobProgress) string {
	if job == nil {
		return ""
	}

	title := job.Title
	if title == "" {
		title = "untitled"
	}
	novel := job.NovelID
	if novel == "" {
		novel = "pending"
	}

	line := fmt.Sprintf("%s [%s, novel %s]: %s %d%%", title, job.Source, novel, job.Status, job.Progress)

	created, errC := time.Parse(time.RFC3339, job.CreatedAt)
	updated, errU := time.Parse(time.RFC3339, job.UpdatedAt)
	if errC == nil && errU == nil && updated.After(created) {
		line += fmt.Sprintf(" after %s", updated.Sub(created).Round(time.Second))
	}
	if n := len(job.Messages); n > 0 {
		line += fmt.Sprintf(" (last: %s)", job.Messages[n-1])
	}
	return line
}

func toProgress(job *models.UploadJob) JobProgress {
	return JobProgress{
		JobID:     job.ID,
		NovelID:   job.NovelID,
		Title:     job.Title,
		Source:    job.Source,
		Status:    job.Status,
		Progress:  job.Progress,
		Messages:  unmarshalMessages(job.Messages),
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// marshalMessages converts a string slice to JSON
func marshalMessages(messages []string) string {
	data, _ := json.Marshal(messages)
	return string(data)
}

// unmarshalMessages converts JSON to a string slice
func unmarshalMessages(messagesJSON string) []string {
	if messagesJSON == "" {
		return []string{}
	}
	var messages []string
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return []string{}
	}
	return messages
}
