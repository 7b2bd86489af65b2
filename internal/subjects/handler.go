package subjects

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/shared/server/respond"
)

// Handler serves the subject catalogue.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches subject routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/subjects", h.list)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Repo.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list subjects", nil)
		return
	}
	respond.OK(c, list)
}
