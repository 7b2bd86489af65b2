package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID                  string     `json:"id"`
	FileName            string     `json:"fileName"`
	FileType            FileType   `json:"fileType"`
	MimeType            string     `json:"mimeType"`
	SizeBytes           int64      `json:"sizeBytes"`
	SourceArchive       string     `json:"sourceArchive,omitempty"`
	Status              Status     `json:"processingStatus"`
	SubjectID           *string    `json:"subjectId"`
	PageCount           int        `json:"pageCount,omitempty"`
	WordCount           int        `json:"wordCount,omitempty"`
	FailureCode         string     `json:"failureCode,omitempty"`
	FailureMessage      string     `json:"failureMessage,omitempty"`
	UploadedAt          time.Time  `json:"uploadedAt"`
	ProcessingStartedAt *time.Time `json:"processingStartedAt,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
}

// UploadResponse is returned for archive and multi-file uploads.
type UploadResponse struct {
	Message   string             `json:"message"`
	Documents []DocumentResponse `json:"documents"`
}

// ToResponse converts a document to its API shape.
func ToResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:                  doc.ID,
		FileName:            doc.FileName,
		FileType:            doc.FileType,
		MimeType:            doc.MimeType,
		SizeBytes:           doc.SizeBytes,
		SourceArchive:       doc.SourceArchive,
		Status:              doc.Status,
		SubjectID:           doc.SubjectID,
		PageCount:           doc.PageCount,
		WordCount:           doc.WordCount,
		FailureCode:         doc.FailureCode,
		FailureMessage:      doc.FailureMessage,
		UploadedAt:          doc.UploadedAt,
		ProcessingStartedAt: doc.ProcessingStartedAt,
		CompletedAt:         doc.CompletedAt,
	}
}

func toResponses(docs []Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToResponse(doc))
	}
	return out
}
