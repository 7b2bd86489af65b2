package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron"

	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/queue"
	"medstudy-backend/internal/shared/metrics"
	"medstudy-backend/internal/shared/telemetry"
)

const (
	DefaultStaleAfter    = 30 * time.Minute
	DefaultSweepSchedule = "@every 5m"
	defaultSweepBatch    = 100
)

// Sweeper fails documents stuck in processing, e.g. after a worker crash,
// and re-enqueues documents left pending when Queue is set.
type Sweeper struct {
	Documents  documents.DocumentsRepo
	Queue      queue.Client
	StaleAfter time.Duration
	Batch      int
	Now        func() time.Time

	cron *cron.Cron
}

// Sweep moves every document that started processing more than StaleAfter
// ago to failed with PROCESSING_TIMEOUT. It returns the number moved.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	after := s.StaleAfter
	if after <= 0 {
		after = DefaultStaleAfter
	}
	batch := s.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}

	stale, err := s.Documents.ListStale(ctx, now.Add(-after), batch)
	if err != nil {
		return 0, fmt.Errorf("list stale documents: %w", err)
	}
	moved := 0
	for _, doc := range stale {
		err := s.Documents.TransitionStatus(ctx, doc.ID, documents.Transition{
			From:           documents.StatusProcessing,
			To:             documents.StatusFailed,
			At:             now,
			FailureCode:    documents.FailureProcessingTimeout,
			FailureMessage: fmt.Sprintf("processing exceeded %s", after),
		})
		if errors.Is(err, documents.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("time out document %s: %w", doc.ID, err)
		}
		moved++
		metrics.IncIngestionFailed()
		telemetry.Warn("ingestion.status", map[string]any{
			"user_id":           doc.OwnerID,
			"document_id":       doc.ID,
			"status":            documents.StatusFailed,
			"status_transition": "processing->failed",
			"failure_code":      documents.FailureProcessingTimeout,
		})
	}
	if s.Queue != nil {
		if _, err := s.Requeue(ctx, now.Add(-after)); err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// Requeue sends a fresh ingestion message for every document still pending
// that was uploaded before uploadedBefore. Redelivery is safe because only
// one handler can move a document out of pending.
func (s *Sweeper) Requeue(ctx context.Context, uploadedBefore time.Time) (int, error) {
	if s.Queue == nil {
		return 0, nil
	}
	batch := s.Batch
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	pending, err := s.Documents.ListPending(ctx, uploadedBefore, batch)
	if err != nil {
		return 0, fmt.Errorf("list pending documents: %w", err)
	}
	sent := 0
	for _, doc := range pending {
		if err := s.Queue.Send(ctx, queue.NewMessage(doc.ID, doc.OwnerID, "")); err != nil {
			return sent, fmt.Errorf("requeue document %s: %w", doc.ID, err)
		}
		sent++
		telemetry.Info("ingestion.requeued", map[string]any{
			"user_id":     doc.OwnerID,
			"document_id": doc.ID,
			"status":      documents.StatusPending,
		})
	}
	return sent, nil
}

// Start schedules Sweep on a cron schedule such as "@every 5m".
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	c := cron.New()
	err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			telemetry.Error("ingestion.sweep_failed", map[string]any{"error": err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule. A sweep in flight runs to completion.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
