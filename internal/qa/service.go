package qa

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"medstudy-backend/internal/ai"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/topics"
)

const (
	maxQuestionRunes   = 2000
	defaultHistorySize = 50
)

// TopicLister returns every topic an owner has.
type TopicLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]topics.Topic, error)
}

// Service answers questions against the caller's topics.
type Service struct {
	Topics  TopicLister
	AI      ai.Capability
	History HistoryRepo
	Now     func() time.Time
}

// AskResult is the stored exchange plus the topics used as context.
type AskResult struct {
	History
	ContextTopicIDs []string `json:"contextTopicIds"`
}

// Ask retrieves context, asks the assistant and logs the exchange. An AI
// failure still produces a logged, apologetic answer.
func (s *Service) Ask(ctx context.Context, userID, question string, lang ai.Language) (AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" || utf8.RuneCountInString(question) > maxQuestionRunes {
		return AskResult{}, ErrInvalidInput
	}

	owned, err := s.Topics.ListByOwner(ctx, userID)
	if err != nil {
		return AskResult{}, fmt.Errorf("list topics: %w", err)
	}
	selected := Retrieve(question, owned)
	answer := s.AI.Answer(ctx, question, lang, BuildContext(selected))

	h := History{
		ID:       uuid.NewString(),
		UserID:   userID,
		Question: question,
		Answer:   answer.Text,
		Language: string(lang),
		AskedAt:  s.now(),
	}
	ids := make([]string, 0, len(selected))
	for _, st := range selected {
		ids = append(ids, st.Topic.ID)
	}
	if len(selected) > 0 {
		top := selected[0].Topic
		topicID := top.ID
		h.TopicID = &topicID
		if top.SubjectID != nil {
			subjectID := *top.SubjectID
			h.SubjectID = &subjectID
		}
	}
	if err := s.History.Create(ctx, h); err != nil {
		return AskResult{}, fmt.Errorf("store qa history: %w", err)
	}
	telemetry.Info("qa.answered", map[string]any{
		"user_id":        userID,
		"language":       h.Language,
		"context_topics": len(ids),
		"ai_fallback":    answer.Fallback,
	})
	return AskResult{History: h, ContextTopicIDs: ids}, nil
}

// ListHistory returns the caller's exchanges newest first.
func (s *Service) ListHistory(ctx context.Context, userID string, limit int) ([]History, error) {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	return s.History.ListByUser(ctx, userID, limit)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
