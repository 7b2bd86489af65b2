package progress

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/shared/server/middleware"
	"medstudy-backend/internal/shared/server/respond"
)

// Handler wires the progress, dashboard and subject aggregation endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/progress/topics/:topicId", h.toggle)
	rg.GET("/progress/stats", h.stats)
	rg.GET("/progress/subjects", h.subjectProgress)
	rg.GET("/dashboard/stats", h.dashboard)
	rg.GET("/dashboard/subjects", h.subjectStats)
	rg.GET("/dashboard/activities", h.activities)
	rg.GET("/subjects/stats", h.subjectStats)
}

type toggleRequest struct {
	Completed *bool `json:"completed"`
}

func (h *Handler) toggle(c *gin.Context) {
	topicID := c.Param("topicId")
	c.Set("topicId", topicID)
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Completed == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "completed is required", nil)
		return
	}
	p, err := h.Svc.Toggle(c.Request.Context(), middleware.UserIDFromContext(c), topicID, *req.Completed)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "topic not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "topic id is required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update progress", nil)
		}
		return
	}
	respond.OK(c, p)
}

func (h *Handler) stats(c *gin.Context) {
	out, err := h.Svc.Stats(c.Request.Context(), middleware.UserIDFromContext(c))
	h.reply(c, out, err, "failed to fetch progress stats")
}

func (h *Handler) subjectProgress(c *gin.Context) {
	out, err := h.Svc.SubjectProgress(c.Request.Context(), middleware.UserIDFromContext(c))
	h.reply(c, out, err, "failed to fetch subject progress")
}

func (h *Handler) dashboard(c *gin.Context) {
	out, err := h.Svc.Dashboard(c.Request.Context(), middleware.UserIDFromContext(c))
	h.reply(c, out, err, "failed to fetch dashboard stats")
}

func (h *Handler) subjectStats(c *gin.Context) {
	out, err := h.Svc.SubjectStats(c.Request.Context(), middleware.UserIDFromContext(c))
	h.reply(c, out, err, "failed to fetch subject stats")
}

func (h *Handler) activities(c *gin.Context) {
	out, err := h.Svc.Activities(c.Request.Context(), middleware.UserIDFromContext(c))
	h.reply(c, out, err, "failed to fetch activities")
}

func (h *Handler) reply(c *gin.Context, payload any, err error, message string) {
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
		return
	}
	respond.OK(c, payload)
}
