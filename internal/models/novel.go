package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Canonical keys of a normalized novel record
const (
	FieldID                = "id"
	FieldTitle             = "title"
	FieldAuthor            = "author"
	FieldStatus            = "status"
	FieldProcessingStatus  = "processingStatus"
	FieldDescription       = "description"
	FieldChapterCount      = "chapterCount"
	FieldTotalChapters     = "totalChapters"
	FieldProcessedChapters = "processedChapters"
	FieldWordCount         = "wordCount"
	FieldCreatedAt         = "createdAt"
	FieldUpdatedAt         = "updatedAt"
)

// CreatedFields are the aliases the backend uses for the creation time, in priority order
var CreatedFields = []string{"createdAt", "created_at", "created", "createTime", "uploadDate"}

// UpdatedFields are the aliases the backend uses for the last update time, in priority order
var UpdatedFields = []string{"updatedAt", "updated_at", "updated", "updateTime"}

// TimestampLayout is the canonical timestamp format of normalized date fields (always UTC)
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NovelRecord is a novel as returned by the backend after normalization. It stays a map
// so fields the client does not know about survive the round trip.
type NovelRecord map[string]any

// ID returns the novel identifier as a string ("" when absent)
func (n NovelRecord) ID() string {
	return stringOf(n[FieldID])
}

func (n NovelRecord) Title() string       { return stringOf(n[FieldTitle]) }
func (n NovelRecord) Author() string      { return stringOf(n[FieldAuthor]) }
func (n NovelRecord) Description() string { return stringOf(n[FieldDescription]) }

// Status returns the processing status, preferring status over processingStatus
func (n NovelRecord) Status() ProcessingStatus {
	if s := stringOf(n[FieldStatus]); s != "" {
		return ParseProcessingStatus(s)
	}
	return ParseProcessingStatus(stringOf(n[FieldProcessingStatus]))
}

func (n NovelRecord) ChapterCount() int      { return intOf(n[FieldChapterCount]) }
func (n NovelRecord) TotalChapters() int     { return intOf(n[FieldTotalChapters]) }
func (n NovelRecord) ProcessedChapters() int { return intOf(n[FieldProcessedChapters]) }
func (n NovelRecord) WordCount() int         { return intOf(n[FieldWordCount]) }

// CreatedAt parses the canonical creation timestamp
func (n NovelRecord) CreatedAt() (time.Time, bool) {
	return timeOf(n[FieldCreatedAt])
}

// UpdatedAt parses the canonical update timestamp
func (n NovelRecord) UpdatedAt() (time.Time, bool) {
	return timeOf(n[FieldUpdatedAt])
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func intOf(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		if f, err := x.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(x); err == nil {
			return i
		}
	}
	return 0
}

func timeOf(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
