package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstudy-backend/internal/ai"
	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/extract"
	"medstudy-backend/internal/queue"
	"medstudy-backend/internal/shared/storage/object/local"
	"medstudy-backend/internal/subjects"
	"medstudy-backend/internal/topics"
)

type stubAI struct {
	extracted ai.ExtractedTopics
	calls     int
}

func (s *stubAI) ExtractTopics(ctx context.Context, text, filename string) ai.ExtractedTopics {
	s.calls++
	return s.extracted
}

func (s *stubAI) Answer(ctx context.Context, question string, lang ai.Language, contextText string) ai.Answer {
	return ai.Answer{Text: "ok"}
}

type stubExtractor struct {
	res extract.Result
	err error
}

func (s stubExtractor) Extract(ctx context.Context, storageKey, typeHint string) (extract.Result, error) {
	return s.res, s.err
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(ctx context.Context, storageKey, typeHint string) (extract.Result, error) {
	panic("boom")
}

type failingTopics struct {
	topics.Repo
}

func (failingTopics) CreateBatch(ctx context.Context, batch []topics.Topic) error {
	return errors.New("disk full")
}

type fixture struct {
	orch     *Orchestrator
	docs     *documents.MemoryRepo
	subjects *subjects.MemoryRepo
	topics   *topics.MemoryRepo
	store    *local.Store
	now      time.Time
}

func newFixture(t *testing.T, capability ai.Capability) *fixture {
	t.Helper()
	store := local.New(t.TempDir())
	f := &fixture{
		docs:     documents.NewMemoryRepo(),
		subjects: subjects.NewMemoryRepo(subjects.Seed...),
		topics:   topics.NewMemoryRepo(),
		store:    store,
		now:      time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.orch = &Orchestrator{
		Documents: f.docs,
		Extractor: &extract.Extractor{Store: store},
		TextStore: store,
		AI:        capability,
		Subjects:  &subjects.Resolver{Repo: f.subjects, Now: clock},
		Topics:    f.topics,
		Now:       clock,
	}
	return f
}

func (f *fixture) addCSV(t *testing.T, id, body string) documents.Document {
	t.Helper()
	key, size, _, err := f.store.Save(context.Background(), "user-1", "notes.csv", strings.NewReader(body))
	require.NoError(t, err)
	doc := documents.Document{
		ID:              id,
		OwnerID:         "user-1",
		FileName:        "notes.csv",
		FileType:        documents.FileTypeCSV,
		MimeType:        "text/csv",
		SizeBytes:       size,
		StorageProvider: "local",
		StorageKey:      key,
		Status:          documents.StatusPending,
		UploadedAt:      f.now,
	}
	require.NoError(t, f.docs.Create(context.Background(), doc))
	return doc
}

func TestProcessCompletesDocument(t *testing.T) {
	capability := &stubAI{extracted: ai.ExtractedTopics{
		Topics: []ai.ExtractedTopic{
			{Title: "Insuficiència cardíaca", Content: "Incapacitat del cor...", Type: topics.TypeDefinition, Confidence: 95},
			{Title: "Cas de dispnea", Content: "Pacient de 70 anys...", Type: topics.TypeClinicalCase, Confidence: 140},
		},
		SuggestedSubject: "cardiologia",
	}}
	f := newFixture(t, capability)
	doc := f.addCSV(t, "doc-1", "term,definition\nIC,insuficiencia cardiaca\n")

	require.NoError(t, f.orch.Process(context.Background(), doc.ID))

	got, err := f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessingStartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Positive(t, got.WordCount)
	require.NotNil(t, got.SubjectID)

	subject, err := f.subjects.Get(context.Background(), *got.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, "Cardiologia", subject.Name)

	stored, err := f.topics.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0, stored[0].Position)
	assert.Equal(t, 1, stored[1].Position)
	assert.Equal(t, 100, stored[1].Confidence)
	for _, tp := range stored {
		assert.True(t, tp.Included)
		assert.False(t, tp.DeepFocus)
		assert.Equal(t, "user-1", tp.OwnerID)
		require.NotNil(t, tp.SubjectID)
		assert.Equal(t, subject.ID, *tp.SubjectID)
	}

	rc, err := f.store.Open(context.Background(), doc.StorageKey+".extracted.txt")
	require.NoError(t, err)
	defer rc.Close()
	text, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(text), "insuficiencia cardiaca")
}

func TestProcessFallbackCreatesSingleConcept(t *testing.T) {
	f := newFixture(t, ai.NewAssistant(ai.PlaceholderProvider{}))
	doc := f.addCSV(t, "doc-1", "a,b\n1,2\n")

	require.NoError(t, f.orch.Process(context.Background(), doc.ID))

	got, err := f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusCompleted, got.Status)

	stored, err := f.topics.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, topics.TypeConcept, stored[0].Type)
	assert.Equal(t, topics.DefaultConfidence, stored[0].Confidence)
	assert.Equal(t, "Content from notes.csv", stored[0].Title)

	subject, err := f.subjects.Get(context.Background(), *got.SubjectID)
	require.NoError(t, err)
	assert.Equal(t, ai.FallbackSubject, subject.Name)
}

func TestProcessFailureCodes(t *testing.T) {
	cases := []struct {
		name      string
		extractor TextExtractor
		topics    func(*fixture) topics.Repo
		code      string
	}{
		{
			name:      "unsupported type",
			extractor: stubExtractor{err: fmt.Errorf("%w: rtf", extract.ErrUnsupportedType)},
			code:      documents.FailureUnsupportedType,
		},
		{
			name:      "extraction error",
			extractor: stubExtractor{err: errors.New("corrupt pdf")},
			code:      documents.FailureExtraction,
		},
		{
			name:      "persistence error",
			extractor: stubExtractor{res: extract.Result{Text: "text", WordCount: 1}},
			topics:    func(f *fixture) topics.Repo { return failingTopics{Repo: f.topics} },
			code:      documents.FailurePersistence,
		},
		{
			name:      "panic",
			extractor: panickingExtractor{},
			code:      documents.FailureInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			capability := &stubAI{extracted: ai.ExtractedTopics{
				Topics:           []ai.ExtractedTopic{{Title: "T", Content: "C", Type: topics.TypeConcept, Confidence: 80}},
				SuggestedSubject: "Farmacologia",
			}}
			f := newFixture(t, capability)
			f.orch.Extractor = tc.extractor
			if tc.topics != nil {
				f.orch.Topics = tc.topics(f)
			}
			doc := f.addCSV(t, "doc-1", "a,b\n")

			err := f.orch.Process(context.Background(), doc.ID)
			var failed *FailedError
			require.ErrorAs(t, err, &failed)
			assert.Equal(t, tc.code, failed.Code)

			got, err := f.docs.Get(context.Background(), doc.ID)
			require.NoError(t, err)
			assert.Equal(t, documents.StatusFailed, got.Status)
			assert.Equal(t, tc.code, got.FailureCode)
			assert.NotEmpty(t, got.FailureMessage)

			stored, err := f.topics.ListByDocument(context.Background(), doc.ID)
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestProcessRedeliveryIsNoop(t *testing.T) {
	capability := &stubAI{extracted: ai.ExtractedTopics{
		Topics:           []ai.ExtractedTopic{{Title: "T", Content: "C", Type: topics.TypeConcept, Confidence: 80}},
		SuggestedSubject: "Anatomia",
	}}
	f := newFixture(t, capability)
	doc := f.addCSV(t, "doc-1", "a,b\n")

	require.NoError(t, f.orch.Process(context.Background(), doc.ID))
	require.NoError(t, f.orch.Process(context.Background(), doc.ID))

	assert.Equal(t, 1, capability.calls)
	stored, err := f.topics.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestHandleMessageChecksOwner(t *testing.T) {
	capability := &stubAI{extracted: ai.ExtractedTopics{
		Topics:           []ai.ExtractedTopic{{Title: "T", Content: "C", Type: topics.TypeConcept, Confidence: 80}},
		SuggestedSubject: "Anatomia",
	}}
	f := newFixture(t, capability)
	doc := f.addCSV(t, "doc-1", "a,b\n")

	err := f.orch.HandleMessage(context.Background(), queue.NewMessage(doc.ID, "someone-else", "req-1"))
	require.ErrorIs(t, err, ErrMessageRejected)
	got, err := f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusPending, got.Status)

	require.NoError(t, f.orch.HandleMessage(context.Background(), queue.NewMessage(doc.ID, "user-1", "req-1")))
	got, err = f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusCompleted, got.Status)

	require.ErrorIs(t, f.orch.HandleMessage(context.Background(), queue.Message{}), ErrMessageRejected)
}
