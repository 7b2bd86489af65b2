package topics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/shared/telemetry"
)

// DocumentLookup resolves a document for its owner.
type DocumentLookup interface {
	GetByID(ctx context.Context, ownerID, documentID string) (documents.Document, error)
}

// Service implements the review and confirmation step.
type Service struct {
	Repo      Repo
	Documents DocumentLookup
}

// ListForReview returns the document's topics. With lowOnly set, only topics
// in the low confidence band are returned.
func (s *Service) ListForReview(ctx context.Context, ownerID, documentID string, lowOnly bool) ([]Topic, error) {
	if err := s.authorize(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	list, err := s.Repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !lowOnly {
		return list, nil
	}
	out := []Topic{}
	for _, t := range list {
		if BandFor(t.Confidence) == BandLow {
			out = append(out, t)
		}
	}
	return out, nil
}

// Confirm applies reviewer edits and returns the document's topics afterwards.
// Edits without an id are skipped. Submitting the same edits twice leaves the
// same stored state.
func (s *Service) Confirm(ctx context.Context, ownerID, documentID string, edits []Edit) ([]Topic, error) {
	if err := s.authorize(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	current, err := s.Repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Topic, len(current))
	for _, t := range current {
		byID[t.ID] = t
	}

	apply := make([]Edit, 0, len(edits))
	skipped := 0
	for _, e := range edits {
		e.ID = strings.TrimSpace(e.ID)
		stored, ok := byID[e.ID]
		if e.ID == "" || !ok {
			skipped++
			continue
		}
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			return nil, fmt.Errorf("%w: topic %s needs a title", ErrInvalidInput, e.ID)
		}
		confidence := stored.Confidence
		if e.Confidence != nil {
			confidence = ClampConfidence(*e.Confidence)
		}
		included := stored.Included
		if e.Included != nil {
			included = *e.Included
		}
		e.Confidence, e.Included = &confidence, &included
		if e.Title != stored.Title || e.Content != stored.Content {
			e.CorrectedByUser = true
		}
		e.CorrectedByUser = e.CorrectedByUser || stored.CorrectedByUser
		apply = append(apply, e)
	}

	if err := s.Repo.ApplyEdits(ctx, documentID, apply); err != nil {
		return nil, fmt.Errorf("apply edits: %w", err)
	}
	telemetry.Info("topics.confirmed", map[string]any{
		"document_id": documentID,
		"owner_id":    ownerID,
		"updated":     len(apply),
		"skipped":     skipped,
	})
	return s.Repo.ListByDocument(ctx, documentID)
}

func (s *Service) authorize(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" || documentID == "" {
		return ErrInvalidInput
	}
	if _, err := s.Documents.GetByID(ctx, ownerID, documentID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
