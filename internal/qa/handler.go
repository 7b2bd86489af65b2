package qa

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/ai"
	"medstudy-backend/internal/shared/server/middleware"
	"medstudy-backend/internal/shared/server/respond"
)

// Handler wires the Q&A endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches Q&A routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/qa/ask", h.ask)
	rg.GET("/qa/history", h.history)
}

type askRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	lang, ok := ai.ParseLanguage(req.Language)
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "language must be ca or es", map[string]any{"language": req.Language})
		return
	}

	res, err := h.Svc.Ask(c.Request.Context(), middleware.UserIDFromContext(c), req.Question, lang)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "question is required", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to answer question", nil)
		return
	}
	if res.TopicID != nil {
		c.Set("topicId", *res.TopicID)
	}
	respond.OK(c, res)
}

func (h *Handler) history(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.Svc.ListHistory(c.Request.Context(), middleware.UserIDFromContext(c), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list history", nil)
		return
	}
	respond.OK(c, list)
}
