package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/service"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// IndexerHandler exposes the public share inventory walk. Admin only.
type IndexerHandler struct {
	service *service.IndexerService
	users   *service.UserService
}

// NewIndexerHandler creates a new handler.
func NewIndexerHandler(svc *service.IndexerService, users *service.UserService) *IndexerHandler {
	return &IndexerHandler{service: svc, users: users}
}

// Trigger handles POST /admin/reindex.
func (h *IndexerHandler) Trigger(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Trigger(c.Request.Context(), actor); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusAccepted, "index walk started", nil)
}

// Status handles GET /admin/reindex/status.
func (h *IndexerHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Status(), nil)
}
