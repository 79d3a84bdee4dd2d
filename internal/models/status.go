package models

import "strings"

// ProcessingStatus is the backend's ingestion/analysis state for a novel
type ProcessingStatus string

const (
	StatusUploading  ProcessingStatus = "UPLOADING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
	StatusNotFound   ProcessingStatus = "NOT_FOUND"
)

// ParseProcessingStatus normalizes a backend status string
func ParseProcessingStatus(s string) ProcessingStatus {
	return ProcessingStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// IsTerminal reports whether polling must stop at this status
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNotFound:
		return true
	}
	return false
}

// Progress maps the status to the percentage shown in progress bars
func (s ProcessingStatus) Progress() int {
	switch s {
	case StatusUploading:
		return 20
	case StatusProcessing:
		return 60
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

// StatusReport is the payload of GET /novels/{id}/status
type StatusReport struct {
	Status            string `json:"status"`
	Error             string `json:"error,omitempty"`
	ProcessedChapters int    `json:"processedChapters"`
	TotalChapters     int    `json:"totalChapters"`
}

// ProcessingStatus returns the normalized status of the report
func (r *StatusReport) ProcessingStatus() ProcessingStatus {
	return ParseProcessingStatus(r.Status)
}

// UploadResult identifies the novel created by an upload
type UploadResult struct {
	ID string `json:"id"`
}

// UploadResultFrom reads the novel identifier from an upload response (id, else novelId)
func UploadResultFrom(payload map[string]any) (*UploadResult, bool) {
	for _, key := range []string{"id", "novelId"} {
		v, ok := payload[key]
		if !ok {
			continue
		}
		if id := stringOf(v); id != "" && id != "0" {
			return &UploadResult{ID: id}, true
		}
	}
	return nil, false
}
