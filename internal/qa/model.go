// Package qa answers study questions using the caller's own topics as
// context and keeps a log of every exchange.
package qa

import (
	"errors"
	"time"
)

// History is one logged question and answer. TopicID and SubjectID point at
// the best-ranked context topic and are nil when no context was used.
type History struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	TopicID   *string   `json:"topicId"`
	SubjectID *string   `json:"subjectId"`
	Language  string    `json:"language"`
	AskedAt   time.Time `json:"askedAt"`
}

var (
	ErrInvalidInput = errors.New("invalid input")
)
