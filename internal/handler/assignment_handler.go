package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/service"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// AssignmentHandler wires HTTP endpoints to assignment management.
type AssignmentHandler struct {
	service *service.AssignmentService
	users   *service.UserService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc *service.AssignmentService, users *service.UserService) *AssignmentHandler {
	return &AssignmentHandler{service: svc, users: users}
}

// Create handles POST /assignments.
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	assignment, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, assignment)
}

// List handles GET /assignments.
func (h *AssignmentHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.AssignmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	assignments, pagination, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Get handles GET /assignments/:id including members and submissions.
func (h *AssignmentHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	assignment, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete handles DELETE /assignments/:id.
func (h *AssignmentHandler) Delete(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SubmitFile handles POST /assignments/:id/submissions.
func (h *AssignmentHandler) SubmitFile(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.SubmitFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	submission, err := h.service.SubmitFile(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, submission)
}

// RemoveSubmission handles DELETE /assignments/:id/submissions/:submissionID.
func (h *AssignmentHandler) RemoveSubmission(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	submissionID, err := idParam(c, "submissionID")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.service.RemoveSubmission(c.Request.Context(), actor, id, submissionID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
