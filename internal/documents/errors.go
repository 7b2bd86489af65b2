package documents

import "errors"

var (
	// ErrNotFound indicates the document does not exist for the caller.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUploadRejected indicates a disallowed extension or MIME type.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrFileTooLarge indicates an upload over the configured limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidTransition indicates the document is not in the expected status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
