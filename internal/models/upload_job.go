package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadJob tracks one novel upload from submission to a terminal processing status
type UploadJob struct {
	ID        string    `gorm:"primaryKey" json:"id"`                     // UUID job ID
	NovelID   string    `gorm:"index;column:novel_id" json:"novel_id"`    // backend novel ID, empty until the upload returns
	Title     string    `json:"title"`
	Source    string    `gorm:"not null;default:file" json:"source"`      // file, url
	Status    string    `gorm:"not null;default:UPLOADING" json:"status"` // ProcessingStatus value
	Progress  int       `gorm:"not null;default:0" json:"progress"`       // 0-100
	Messages  string    `gorm:"type:text" json:"messages"`                // JSON array of strings
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (j *UploadJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// TableName specifies the table name for GORM
func (UploadJob) TableName() string {
	return "upload_jobs"
}
