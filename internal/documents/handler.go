package documents

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/archive"
	"medstudy-backend/internal/shared/server/middleware"
	"medstudy-backend/internal/shared/server/respond"
)

// multipartOverhead leaves room for boundaries and form fields on top of the
// per-file limit.
const multipartOverhead = 1 << 20

const maxFilesPerUpload = 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	maxBytes := h.Svc.maxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes*maxFilesPerUpload+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the size limit", gin.H{"maxBytes": maxBytes})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form with a file is required", nil)
		return
	}
	headers := append([]*multipart.FileHeader{}, form.File["file"]...)
	headers = append(headers, form.File["files"]...)
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if len(headers) > maxFilesPerUpload {
		respond.Error(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("at most %d files per upload", maxFilesPerUpload), nil)
		return
	}

	files := make([]UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer f.Close()
		files = append(files, UploadFile{
			FileName:     fh.Filename,
			DeclaredMime: fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Body:         f,
		})
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	result, err := h.Svc.Upload(ctx, userID, files)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), gin.H{"maxBytes": maxBytes})
		case errors.Is(err, ErrUploadRejected):
			respond.Error(c, http.StatusBadRequest, "upload_rejected", err.Error(), gin.H{"allowed": []string{"pdf", "docx", "csv", "zip"}})
		case errors.Is(err, archive.ErrArchiveCorrupt):
			respond.Error(c, http.StatusUnprocessableEntity, "archive_corrupt", "the archive could not be read", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload document", nil)
		}
		return
	}

	if len(result.Documents) == 1 && !result.Archive && len(files) == 1 {
		c.Set("documentId", result.Documents[0].ID)
		respond.Created(c, ToResponse(result.Documents[0]))
		return
	}

	message := fmt.Sprintf("Uploaded %d documents.", len(result.Documents))
	if result.Archive {
		message = fmt.Sprintf("ZIP file processed. Extracted %d documents.", len(result.Documents))
	}
	respond.Created(c, UploadResponse{
		Message:   message,
		Documents: toResponses(result.Documents),
	})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	doc, err := h.Svc.Get(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		}
		return
	}

	respond.OK(c, ToResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		}
		return
	}

	respond.OK(c, toResponses(docs))
}
