// Package ingestion runs the asynchronous pipeline that turns an uploaded
// document into reviewable topics.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medstudy-backend/internal/ai"
	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/extract"
	"medstudy-backend/internal/queue"
	"medstudy-backend/internal/shared/metrics"
	"medstudy-backend/internal/shared/storage/object"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/shared/util"
	"medstudy-backend/internal/subjects"
	"medstudy-backend/internal/topics"
)

const maxFailureMessage = 500

// ErrMessageRejected marks a queue message that can never be processed.
var ErrMessageRejected = errors.New("ingestion message rejected")

// TextExtractor reads a stored document as plain text.
type TextExtractor interface {
	Extract(ctx context.Context, storageKey, typeHint string) (extract.Result, error)
}

// SubjectResolver finds or creates the subject for a suggested label.
type SubjectResolver interface {
	Resolve(ctx context.Context, name string) (subjects.Subject, error)
}

// Orchestrator drives one document from pending to a terminal status.
type Orchestrator struct {
	Documents documents.DocumentsRepo
	Extractor TextExtractor
	// TextStore receives a copy of the extracted text when set. Failures
	// are logged and do not fail the document.
	TextStore object.KeySaver
	AI        ai.Capability
	Subjects  SubjectResolver
	Topics    topics.Repo
	Now       func() time.Time
}

// FailedError reports that a document was moved to failed.
type FailedError struct {
	DocumentID string
	Code       string
	Err        error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("document %s failed (%s): %v", e.DocumentID, e.Code, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// HandleMessage adapts Process to a queue consumer.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg queue.Message) error {
	if strings.TrimSpace(msg.DocumentID) == "" {
		return fmt.Errorf("%w: missing document id", ErrMessageRejected)
	}
	ctx = documents.WithRequestID(ctx, msg.RequestID)
	doc, err := o.Documents.Get(ctx, msg.DocumentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", msg.DocumentID, err)
	}
	if msg.OwnerID != "" && msg.OwnerID != doc.OwnerID {
		return fmt.Errorf("%w: document %s owner mismatch", ErrMessageRejected, msg.DocumentID)
	}
	return o.Process(ctx, msg.DocumentID)
}

// Process runs the pipeline for documentID. A document that is no longer
// pending is left untouched, so redelivered messages are harmless.
func (o *Orchestrator) Process(ctx context.Context, documentID string) (err error) {
	doc, err := o.Documents.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if doc.Status != documents.StatusPending {
		telemetry.Info("ingestion.skipped", map[string]any{
			"request_id":  documents.RequestIDFromContext(ctx),
			"document_id": doc.ID,
			"status":      doc.Status,
		})
		return nil
	}

	startedAt := o.now()
	if err := o.Documents.TransitionStatus(ctx, doc.ID, documents.Transition{
		From: documents.StatusPending,
		To:   documents.StatusProcessing,
		At:   startedAt,
	}); err != nil {
		if errors.Is(err, documents.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("start document %s: %w", doc.ID, err)
	}
	metrics.IncIngestionStarted()
	o.logStatus(ctx, doc, documents.StatusProcessing, "pending->processing", nil)

	defer func() {
		if r := recover(); r != nil {
			err = o.fail(ctx, doc, startedAt, documents.FailureInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	if o.Extractor == nil || o.AI == nil || o.Subjects == nil || o.Topics == nil {
		return o.fail(ctx, doc, startedAt, documents.FailureInternal, errors.New("ingestion dependencies not configured"))
	}

	res, err := o.Extractor.Extract(ctx, doc.StorageKey, string(doc.FileType))
	if err != nil {
		code := documents.FailureExtraction
		if errors.Is(err, extract.ErrUnsupportedType) {
			code = documents.FailureUnsupportedType
		}
		return o.fail(ctx, doc, startedAt, code, err)
	}
	if err := o.Documents.RecordExtraction(ctx, doc.ID, res.PageCount, res.WordCount); err != nil {
		return o.fail(ctx, doc, startedAt, documents.FailurePersistence, fmt.Errorf("record extraction: %w", err))
	}
	o.saveText(ctx, doc, res.Text)

	extracted := o.AI.ExtractTopics(ctx, res.Text, doc.FileName)

	subject, err := o.Subjects.Resolve(ctx, extracted.SuggestedSubject)
	if errors.Is(err, subjects.ErrInvalidInput) {
		subject, err = o.Subjects.Resolve(ctx, ai.FallbackSubject)
	}
	if err != nil {
		return o.fail(ctx, doc, startedAt, documents.FailurePersistence, fmt.Errorf("resolve subject: %w", err))
	}
	if err := o.Documents.SetSubject(ctx, doc.ID, subject.ID); err != nil {
		return o.fail(ctx, doc, startedAt, documents.FailurePersistence, fmt.Errorf("set subject: %w", err))
	}

	batch := o.buildTopics(doc, subject.ID, extracted.Topics)
	if err := o.Topics.CreateBatch(ctx, batch); err != nil {
		return o.fail(ctx, doc, startedAt, documents.FailurePersistence, fmt.Errorf("store topics: %w", err))
	}

	completedAt := o.now()
	if err := o.Documents.TransitionStatus(ctx, doc.ID, documents.Transition{
		From: documents.StatusProcessing,
		To:   documents.StatusCompleted,
		At:   completedAt,
	}); err != nil {
		return fmt.Errorf("complete document %s: %w", doc.ID, err)
	}
	duration := float64(completedAt.Sub(startedAt).Milliseconds())
	metrics.IncIngestionCompleted()
	metrics.ObserveIngestionDurationMs(duration)
	o.logStatus(ctx, doc, documents.StatusCompleted, "processing->completed", map[string]any{
		"duration_ms": duration,
		"subject_id":  subject.ID,
		"topic_count": len(batch),
		"ai_fallback": extracted.Fallback,
	})
	return nil
}

func (o *Orchestrator) buildTopics(doc documents.Document, subjectID string, extracted []ai.ExtractedTopic) []topics.Topic {
	now := o.now()
	out := make([]topics.Topic, 0, len(extracted))
	for i, et := range extracted {
		sid := subjectID
		out = append(out, topics.Topic{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			OwnerID:     doc.OwnerID,
			SubjectID:   &sid,
			Title:       et.Title,
			Content:     et.Content,
			Type:        et.Type,
			Confidence:  topics.ClampConfidence(et.Confidence),
			Included:    true,
			Position:    i,
			ExtractedAt: now,
			UpdatedAt:   now,
		})
	}
	return out
}

func (o *Orchestrator) saveText(ctx context.Context, doc documents.Document, text string) {
	if o.TextStore == nil {
		return
	}
	key := doc.StorageKey + ".extracted.txt"
	if _, err := o.TextStore.SaveWithKey(ctx, key, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		telemetry.Warn("ingestion.text_save_failed", map[string]any{
			"document_id": doc.ID,
			"storage_key": key,
			"error":       err.Error(),
		})
	}
}

// fail records the failure on the document. The status write uses a
// detached context so a cancelled job still leaves a terminal status.
func (o *Orchestrator) fail(ctx context.Context, doc documents.Document, startedAt time.Time, code string, cause error) error {
	completedAt := o.now()
	err := o.Documents.TransitionStatus(context.WithoutCancel(ctx), doc.ID, documents.Transition{
		From:           documents.StatusProcessing,
		To:             documents.StatusFailed,
		At:             completedAt,
		FailureCode:    code,
		FailureMessage: util.TruncateRunes(cause.Error(), maxFailureMessage),
	})
	if err != nil {
		telemetry.Error("ingestion.fail_transition", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
			"cause":       cause.Error(),
		})
	}
	duration := float64(completedAt.Sub(startedAt).Milliseconds())
	metrics.IncIngestionFailed()
	metrics.ObserveIngestionDurationMs(duration)
	o.logStatus(ctx, doc, documents.StatusFailed, "processing->failed", map[string]any{
		"duration_ms":  duration,
		"failure_code": code,
		"error":        cause.Error(),
	})
	return &FailedError{DocumentID: doc.ID, Code: code, Err: cause}
}

func (o *Orchestrator) logStatus(ctx context.Context, doc documents.Document, status documents.Status, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        documents.RequestIDFromContext(ctx),
		"user_id":           doc.OwnerID,
		"document_id":       doc.ID,
		"status":            status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if status == documents.StatusFailed {
		telemetry.Warn("ingestion.status", fields)
		return
	}
	telemetry.Info("ingestion.status", fields)
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}
