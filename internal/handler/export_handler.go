package handler

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/internal/service"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// ExportHandler wires HTTP endpoints to approval-history exports.
type ExportHandler struct {
	service *service.ExportService
	users   *service.UserService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService, users *service.UserService) *ExportHandler {
	return &ExportHandler{service: svc, users: users}
}

// Generate handles POST /exports/history. The response carries a signed
// token for the download endpoint.
func (h *ExportHandler) Generate(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req struct {
		Format string    `json:"format" binding:"required"`
		Team   string    `json:"team"`
		From   time.Time `json:"from"`
		To     time.Time `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.GenerateHistory(c.Request.Context(), actor, req.Format, repository.HistoryFilter{
		Team: req.Team,
		From: req.From,
		To:   req.To,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Download handles GET /exports/download?token=... The signed token is the
// only credential, so links can be handed to tooling.
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	path, err := h.service.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}
