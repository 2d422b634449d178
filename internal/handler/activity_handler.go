package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/internal/service"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// ActivityHandler exposes the audit trail. Admin only.
type ActivityHandler struct {
	service *service.ActivityService
}

// NewActivityHandler creates a new handler.
func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: svc}
}

// List handles GET /activity.
func (h *ActivityHandler) List(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	entries, pagination, err := h.service.List(c.Request.Context(), repository.ActivityFilter{
		UserID:   userID,
		Action:   c.Query("action"),
		Entity:   c.Query("entity"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, pagination)
}
