package topics

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/shared/server/middleware"
	"medstudy-backend/internal/shared/server/respond"
)

const maxConfirmBody = 2 << 20

// Handler wires the review endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches topic routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/topics", h.list)
	rg.POST("/documents/:id/topics/confirm", h.confirm)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set("documentId", documentID)
	lowOnly, _ := strconv.ParseBool(c.Query("lowConfidence"))

	list, err := h.Svc.ListForReview(c.Request.Context(), userID, documentID, lowOnly)
	if err != nil {
		h.writeError(c, err, "failed to list topics")
		return
	}
	respond.OK(c, toResponses(list))
}

func (h *Handler) confirm(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfirmBody))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read body", nil)
		return
	}
	reqs, err := decodeEdits(raw)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "body must be a topic list or {\"topics\": [...]}", nil)
		return
	}
	edits := make([]Edit, 0, len(reqs))
	for _, r := range reqs {
		edits = append(edits, r.toEdit())
	}

	list, err := h.Svc.Confirm(c.Request.Context(), userID, documentID, edits)
	if err != nil {
		h.writeError(c, err, "failed to confirm topics")
		return
	}
	respond.OK(c, toResponses(list))
}

// decodeEdits accepts either a bare JSON array or an object with a topics key.
func decodeEdits(raw []byte) ([]EditRequest, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []EditRequest
		err := json.Unmarshal(trimmed, &list)
		return list, err
	}
	var req ConfirmRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, err
	}
	if req.Topics == nil {
		return nil, errors.New("topics missing")
	}
	return req.Topics, nil
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
