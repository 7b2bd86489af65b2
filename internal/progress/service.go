package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/subjects"
	"medstudy-backend/internal/topics"
)

const recentUploads = 5

// TopicSource reads the caller's topics.
type TopicSource interface {
	Get(ctx context.Context, ownerID, topicID string) (topics.Topic, error)
	ListByOwner(ctx context.Context, ownerID string) ([]topics.Topic, error)
}

// DocumentSource reads the caller's documents.
type DocumentSource interface {
	ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]documents.Document, error)
	CountBySubject(ctx context.Context, ownerID string) (int, []documents.SubjectCount, error)
}

// SubjectLister lists the subject catalogue.
type SubjectLister interface {
	List(ctx context.Context) ([]subjects.Subject, error)
}

// Service records completion toggles and computes study aggregates.
type Service struct {
	Repo      Repo
	Topics    TopicSource
	Documents DocumentSource
	Subjects  SubjectLister
	Now       func() time.Time
}

// Stats summarizes the progress rows of one user.
type Stats struct {
	OverallProgress int `json:"overallProgress"`
	TotalTopics     int `json:"totalTopics"`
	CompletedTopics int `json:"completedTopics"`
}

// DashboardStats summarizes a user's library.
type DashboardStats struct {
	TotalDocuments  int `json:"totalDocuments"`
	TotalTopics     int `json:"totalTopics"`
	CompletedTopics int `json:"completedTopics"`
	OverallProgress int `json:"overallProgress"`
}

// SubjectStat is one subject with the caller's counts.
type SubjectStat struct {
	subjects.Subject
	DocumentCount   int `json:"documentCount"`
	TopicCount      int `json:"topicCount"`
	CompletedTopics int `json:"completedTopics"`
	Progress        int `json:"progress"`
}

// TopicProgress pairs a topic with the caller's state for it.
type TopicProgress struct {
	Topic       topics.TopicResponse `json:"topic"`
	Completed   bool                 `json:"completed"`
	ReviewCount int                  `json:"reviewCount"`
}

// SubjectProgress is the per-subject drill-down of the progress page.
type SubjectProgress struct {
	Subject         subjects.Subject `json:"subject"`
	TotalTopics     int              `json:"totalTopics"`
	CompletedTopics int              `json:"completedTopics"`
	Progress        int              `json:"progress"`
	Topics          []TopicProgress  `json:"topics"`
}

// Activity is a dashboard feed entry.
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Toggle records a completion event for one of the caller's topics.
func (s *Service) Toggle(ctx context.Context, userID, topicID string, completed bool) (Progress, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return Progress{}, ErrInvalidInput
	}
	t, err := s.Topics.Get(ctx, userID, topicID)
	if err != nil {
		if errors.Is(err, topics.ErrNotFound) {
			return Progress{}, ErrNotFound
		}
		return Progress{}, fmt.Errorf("load topic: %w", err)
	}
	p, err := s.Repo.Apply(ctx, Toggle{
		UserID:    userID,
		TopicID:   t.ID,
		SubjectID: t.SubjectID,
		Completed: completed,
		At:        s.now(),
	})
	if err != nil {
		return Progress{}, fmt.Errorf("apply progress: %w", err)
	}
	telemetry.Info("progress.toggled", map[string]any{
		"user_id":      userID,
		"topic_id":     t.ID,
		"completed":    completed,
		"review_count": p.ReviewCount,
	})
	return p, nil
}

// Stats aggregates the user's progress rows.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	rows, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	completed := countCompleted(rows)
	return Stats{
		OverallProgress: Percent(completed, len(rows)),
		TotalTopics:     len(rows),
		CompletedTopics: completed,
	}, nil
}

// Dashboard aggregates documents, topics and completions.
func (s *Service) Dashboard(ctx context.Context, userID string) (DashboardStats, error) {
	totalDocs, _, err := s.Documents.CountBySubject(ctx, userID)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count documents: %w", err)
	}
	owned, err := s.Topics.ListByOwner(ctx, userID)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list topics: %w", err)
	}
	rows, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list progress: %w", err)
	}
	completed := countCompleted(rows)
	return DashboardStats{
		TotalDocuments:  totalDocs,
		TotalTopics:     len(owned),
		CompletedTopics: completed,
		OverallProgress: Percent(completed, len(owned)),
	}, nil
}

// SubjectStats returns the subjects in which the user has documents or
// topics, with counts and completion percentage.
func (s *Service) SubjectStats(ctx context.Context, userID string) ([]SubjectStat, error) {
	catalogue, err := s.Subjects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	_, docCounts, err := s.Documents.CountBySubject(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	owned, err := s.Topics.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	rows, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	docsBySubject := make(map[string]int, len(docCounts))
	for _, c := range docCounts {
		docsBySubject[c.SubjectID] = c.Count
	}
	topicsBySubject := map[string]int{}
	for _, t := range owned {
		if t.SubjectID != nil {
			topicsBySubject[*t.SubjectID]++
		}
	}
	completedBySubject := map[string]int{}
	for _, p := range rows {
		if p.Completed && p.SubjectID != nil {
			completedBySubject[*p.SubjectID]++
		}
	}

	out := []SubjectStat{}
	for _, subj := range catalogue {
		stat := SubjectStat{
			Subject:         subj,
			DocumentCount:   docsBySubject[subj.ID],
			TopicCount:      topicsBySubject[subj.ID],
			CompletedTopics: completedBySubject[subj.ID],
		}
		if stat.DocumentCount == 0 && stat.TopicCount == 0 {
			continue
		}
		stat.Progress = Percent(stat.CompletedTopics, stat.TopicCount)
		out = append(out, stat)
	}
	return out, nil
}

// SubjectProgress lists each subject with topics, and the user's state for
// every topic in it.
func (s *Service) SubjectProgress(ctx context.Context, userID string) ([]SubjectProgress, error) {
	catalogue, err := s.Subjects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	owned, err := s.Topics.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	rows, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	byTopic := make(map[string]Progress, len(rows))
	for _, p := range rows {
		byTopic[p.TopicID] = p
	}
	grouped := map[string][]TopicProgress{}
	for _, t := range owned {
		if t.SubjectID == nil {
			continue
		}
		p := byTopic[t.ID]
		grouped[*t.SubjectID] = append(grouped[*t.SubjectID], TopicProgress{
			Topic:       topics.ToResponse(t),
			Completed:   p.Completed,
			ReviewCount: p.ReviewCount,
		})
	}

	out := []SubjectProgress{}
	for _, subj := range catalogue {
		items := grouped[subj.ID]
		if len(items) == 0 {
			continue
		}
		completed := 0
		for _, it := range items {
			if it.Completed {
				completed++
			}
		}
		out = append(out, SubjectProgress{
			Subject:         subj,
			TotalTopics:     len(items),
			CompletedTopics: completed,
			Progress:        Percent(completed, len(items)),
			Topics:          items,
		})
	}
	return out, nil
}

// Activities returns the user's most recent uploads, newest first.
func (s *Service) Activities(ctx context.Context, userID string) ([]Activity, error) {
	docs, err := s.Documents.ListByUser(ctx, userID, recentUploads, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Activity, 0, len(docs))
	for _, d := range docs {
		out = append(out, Activity{
			ID:          "upload-" + d.ID,
			Type:        "upload",
			Description: "Document pujat: " + d.FileName,
			Timestamp:   d.UploadedAt,
		})
	}
	return out, nil
}

func countCompleted(rows []Progress) int {
	n := 0
	for _, p := range rows {
		if p.Completed {
			n++
		}
	}
	return n
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
