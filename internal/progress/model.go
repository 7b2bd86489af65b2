// Package progress tracks per-topic study completion and serves the
// dashboard and subject aggregations built on it.
package progress

import (
	"errors"
	"math"
	"time"
)

// Progress is one user's completion state for one topic.
type Progress struct {
	UserID         string     `json:"userId"`
	TopicID        string     `json:"topicId"`
	SubjectID      *string    `json:"subjectId"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completedAt"`
	ReviewCount    int        `json:"reviewCount"`
	LastReviewedAt *time.Time `json:"lastReviewedAt"`
}

// Toggle is a completion event for one topic.
type Toggle struct {
	UserID    string
	TopicID   string
	SubjectID *string
	Completed bool
	At        time.Time
}

var (
	ErrNotFound     = errors.New("topic not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Percent returns part/total as a whole percentage, 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(part) / float64(total) * 100))
	if p > 100 {
		return 100
	}
	return p
}
