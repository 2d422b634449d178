package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/service"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// CommentHandler wires HTTP endpoints to file and assignment threads.
type CommentHandler struct {
	service *service.CommentService
	users   *service.UserService
}

// NewCommentHandler creates a new handler.
func NewCommentHandler(svc *service.CommentService, users *service.UserService) *CommentHandler {
	return &CommentHandler{service: svc, users: users}
}

// AddFileComment handles POST /files/:id/comments.
func (h *CommentHandler) AddFileComment(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	fileID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	comment, err := h.service.AddFileComment(c.Request.Context(), actor, fileID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, comment)
}

// ListFileComments handles GET /files/:id/comments.
func (h *CommentHandler) ListFileComments(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	fileID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	comments, err := h.service.ListFileComments(c.Request.Context(), actor, fileID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, comments, nil)
}

// AddAssignmentComment handles POST /assignments/:id/comments.
func (h *CommentHandler) AddAssignmentComment(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	assignmentID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateAssignmentCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	comment, err := h.service.AddAssignmentComment(c.Request.Context(), actor, assignmentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, comment)
}

// ListAssignmentComments handles GET /assignments/:id/comments.
func (h *CommentHandler) ListAssignmentComments(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	assignmentID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	comments, err := h.service.ListAssignmentComments(c.Request.Context(), actor, assignmentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, comments, nil)
}
