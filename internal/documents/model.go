package documents

import (
	"strings"
	"time"
)

// Status is the processing lifecycle stage of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from one status to another is legal.
// The only path is pending -> processing -> completed|failed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// FileType is the extraction strategy recorded for a document. Archives are
// expanded at upload time and never become documents themselves.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeCSV  FileType = "csv"
)

// ParseFileType maps a lowercase extension (with or without the dot).
func ParseFileType(ext string) (FileType, bool) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".") {
	case "pdf":
		return FileTypePDF, true
	case "docx":
		return FileTypeDOCX, true
	case "csv":
		return FileTypeCSV, true
	}
	return "", false
}

// Failure codes recorded on failed documents.
const (
	FailureUnsupportedType   = "EXTRACTION_UNSUPPORTED_TYPE"
	FailureExtraction        = "EXTRACTION_FAILED"
	FailurePersistence       = "PERSISTENCE_ERROR"
	FailureProcessingTimeout = "PROCESSING_TIMEOUT"
	FailureEnqueue           = "ENQUEUE_FAILED"
	FailureInternal          = "INTERNAL_ERROR"
)

// Document represents an uploaded study document owned by a user.
type Document struct {
	ID                  string
	OwnerID             string
	FileName            string
	FileType            FileType
	MimeType            string
	SizeBytes           int64
	StorageProvider     string
	StorageKey          string
	SourceArchive       string
	Status              Status
	SubjectID           *string
	PageCount           int
	WordCount           int
	FailureCode         string
	FailureMessage      string
	UploadedAt          time.Time
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
}

// Transition carries the fields written alongside a status change.
type Transition struct {
	From           Status
	To             Status
	At             time.Time
	FailureCode    string
	FailureMessage string
}

// apply mutates doc as a repository would.
func (t Transition) apply(doc *Document) {
	at := t.At
	doc.Status = t.To
	switch t.To {
	case StatusProcessing:
		doc.ProcessingStartedAt = &at
	case StatusCompleted, StatusFailed:
		doc.CompletedAt = &at
	}
	if t.To == StatusFailed {
		doc.FailureCode = t.FailureCode
		doc.FailureMessage = t.FailureMessage
	}
}

// SubjectCount is the number of documents an owner has for one subject.
type SubjectCount struct {
	SubjectID string
	Count     int
}
