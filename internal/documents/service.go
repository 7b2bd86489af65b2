package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"medstudy-backend/internal/archive"
	"medstudy-backend/internal/extract"
	"medstudy-backend/internal/queue"
	"medstudy-backend/internal/shared/storage/object"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/shared/util"
)

const (
	// DefaultMaxUploadBytes is used when Service.MaxUploadBytes is unset.
	DefaultMaxUploadBytes int64 = 50 << 20

	mimeZip           = "application/zip"
	mimeZipCompressed = "application/x-zip-compressed"
	mimeOctetStream   = "application/octet-stream"
)

var allowedMimes = map[string]bool{
	extract.MimePDF:   true,
	extract.MimeDOCX:  true,
	extract.MimeCSV:   true,
	"application/csv": true,
	mimeZip:           true,
	mimeZipCompressed: true,
}

var mimeExtensions = map[string]string{
	extract.MimePDF:   ".pdf",
	extract.MimeDOCX:  ".docx",
	extract.MimeCSV:   ".csv",
	mimeZip:           ".zip",
	mimeZipCompressed: ".zip",
}

// ArchiveExpander expands a stored archive into stored entries.
type ArchiveExpander interface {
	Expand(ctx context.Context, ownerID, archiveKey string) ([]archive.Entry, error)
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	FileName     string
	DeclaredMime string
	// Size is the client-reported size; zero when unknown.
	Size int64
	Body io.Reader
}

// UploadResult lists the documents created by an upload. Archive is true
// when at least one file was a ZIP.
type UploadResult struct {
	Documents []Document
	Archive   bool
}

// Service contains business logic for documents.
type Service struct {
	Store           object.ObjectStore
	Repo            DocumentsRepo
	Archives        ArchiveExpander
	Queue           queue.Client
	StorageProvider string
	MaxUploadBytes  int64
	Now             func() time.Time
}

// Upload validates and stores each file, expands archives, records pending
// documents and enqueues one ingestion job per document. The upload is all or
// nothing: every file is validated before anything is stored, every file is
// stored and checked before any row is created, and jobs are enqueued only
// once every row exists.
func (s *Service) Upload(ctx context.Context, ownerID string, files []UploadFile) (UploadResult, error) {
	if strings.TrimSpace(ownerID) == "" || len(files) == 0 {
		return UploadResult{}, ErrInvalidInput
	}
	exts := make([]string, len(files))
	for i, f := range files {
		ext, err := s.validate(f)
		if err != nil {
			return UploadResult{}, err
		}
		exts[i] = ext
	}

	var result UploadResult
	for i, f := range files {
		docs, err := s.stage(ctx, ownerID, f, exts[i])
		if err != nil {
			s.discardDocuments(ctx, result.Documents)
			return UploadResult{}, err
		}
		if exts[i] == ".zip" {
			result.Archive = true
		}
		result.Documents = append(result.Documents, docs...)
	}

	if len(result.Documents) > 0 {
		if err := s.Repo.CreateBatch(ctx, result.Documents); err != nil {
			s.discardDocuments(ctx, result.Documents)
			return UploadResult{}, fmt.Errorf("create documents: %w", err)
		}
	}
	for i := range result.Documents {
		s.enqueue(ctx, &result.Documents[i])
	}
	return result, nil
}

// Get returns a document owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, documentID string) (Document, error) {
	if ownerID == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, ownerID, documentID)
}

// List returns the owner's documents newest-first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if ownerID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, ownerID, limit, offset)
}

func (s *Service) maxBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// validate checks name, declared MIME and declared size, returning the
// effective lowercase extension.
func (s *Service) validate(f UploadFile) (string, error) {
	name := strings.TrimSpace(f.FileName)
	if name == "" || f.Body == nil {
		return "", ErrInvalidInput
	}
	declared := baseMime(f.DeclaredMime)
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = mimeExtensions[declared]
	}
	switch ext {
	case ".pdf", ".docx", ".csv", ".zip":
	default:
		return "", fmt.Errorf("%w: %s is not a pdf, docx, csv or zip file", ErrUploadRejected, name)
	}
	if declared != "" && declared != mimeOctetStream && !allowedMimes[declared] {
		if !(ext == ".csv" && strings.HasPrefix(declared, "text/")) {
			return "", fmt.Errorf("%w: content type %s not allowed", ErrUploadRejected, declared)
		}
	}
	if f.Size > s.maxBytes() {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, name, s.maxBytes())
	}
	return ext, nil
}

// stage stores f, checks its content and expands it when it is an archive.
// The returned documents are not persisted yet.
func (s *Service) stage(ctx context.Context, ownerID string, f UploadFile, ext string) ([]Document, error) {
	limit := s.maxBytes()
	key, size, sniffed, err := s.Store.Save(ctx, ownerID, f.FileName, io.LimitReader(f.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if size > limit {
		s.discard(ctx, key)
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, f.FileName, limit)
	}
	if !contentMatches(ext, sniffed) {
		s.discard(ctx, key)
		return nil, fmt.Errorf("%w: %s content is %s", ErrUploadRejected, f.FileName, baseMime(sniffed))
	}

	if ext == ".zip" {
		return s.expand(ctx, ownerID, key, f.FileName)
	}
	fileType, _ := ParseFileType(ext)
	return []Document{s.newDocument(ownerID, f.FileName, fileType, size, key, "")}, nil
}

func (s *Service) expand(ctx context.Context, ownerID, archiveKey, archiveName string) ([]Document, error) {
	if s.Archives == nil {
		s.discard(ctx, archiveKey)
		return nil, errors.New("archive expansion not configured")
	}
	entries, err := s.Archives.Expand(ctx, ownerID, archiveKey)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		fileType, ok := ParseFileType(string(entry.Kind))
		if !ok {
			s.discard(ctx, entry.StorageKey)
			continue
		}
		docs = append(docs, s.newDocument(ownerID, entry.OriginalName, fileType, entry.SizeBytes, entry.StorageKey, archiveName))
	}
	telemetry.Info("documents.archive_expanded", map[string]any{
		"owner_id": ownerID,
		"archive":  archiveName,
		"entries":  len(docs),
	})
	return docs, nil
}

func (s *Service) newDocument(ownerID, fileName string, fileType FileType, size int64, key, sourceArchive string) Document {
	return Document{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		FileName:        fileName,
		FileType:        fileType,
		MimeType:        extract.MimeFor(extract.Kind(fileType)),
		SizeBytes:       size,
		StorageProvider: s.StorageProvider,
		StorageKey:      key,
		SourceArchive:   sourceArchive,
		Status:          StatusPending,
		UploadedAt:      s.now(),
	}
}

// enqueue hands the document to the ingestion queue. A document that cannot
// be enqueued is moved to failed so it never sits in pending forever.
func (s *Service) enqueue(ctx context.Context, doc *Document) {
	if s.Queue == nil {
		s.failUnqueued(ctx, doc, errors.New("ingestion queue not configured"))
		return
	}
	msg := queue.NewMessage(doc.ID, doc.OwnerID, RequestIDFromContext(ctx))
	if err := s.Queue.Send(ctx, msg); err != nil {
		s.failUnqueued(ctx, doc, err)
	}
}

func (s *Service) failUnqueued(ctx context.Context, doc *Document, cause error) {
	ctx = context.WithoutCancel(ctx)
	telemetry.Error("documents.enqueue_failed", map[string]any{
		"document_id": doc.ID,
		"error":       cause.Error(),
	})
	steps := []Transition{
		{From: StatusPending, To: StatusProcessing, At: s.now()},
		{From: StatusProcessing, To: StatusFailed, At: s.now(), FailureCode: FailureEnqueue, FailureMessage: util.TruncateRunes(cause.Error(), 500)},
	}
	for _, step := range steps {
		if err := s.Repo.TransitionStatus(ctx, doc.ID, step); err != nil {
			telemetry.Error("documents.enqueue_fail_transition", map[string]any{"document_id": doc.ID, "error": err.Error()})
			return
		}
		step.apply(doc)
	}
}

func (s *Service) discardDocuments(ctx context.Context, docs []Document) {
	for _, doc := range docs {
		s.discard(ctx, doc.StorageKey)
	}
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.Store.Delete(context.WithoutCancel(ctx), key); err != nil {
		telemetry.Warn("documents.discard_failed", map[string]any{"storage_key": key, "error": err.Error()})
	}
}

// contentMatches checks the sniffed type against the claimed extension.
func contentMatches(ext, sniffed string) bool {
	mt := mimetype.Lookup(baseMime(sniffed))
	if mt == nil {
		return false
	}
	switch ext {
	case ".pdf":
		return mt.Is(extract.MimePDF)
	case ".docx", ".zip":
		return inFamily(mt, mimeZip)
	case ".csv":
		return inFamily(mt, "text/plain")
	}
	return false
}

func inFamily(mt *mimetype.MIME, want string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

func baseMime(raw string) string {
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(raw, ";")[0]))
	}
	return mediaType
}

type requestIDKey struct{}

// WithRequestID attaches the request id to ctx so queued jobs can carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
