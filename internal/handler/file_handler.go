package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/internal/service"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// FileHandler wires HTTP endpoints to the file workflow.
type FileHandler struct {
	service *service.FileService
	users   *service.UserService
}

// NewFileHandler creates a new handler.
func NewFileHandler(svc *service.FileService, users *service.UserService) *FileHandler {
	return &FileHandler{service: svc, users: users}
}

// Upload handles POST /files as a multipart form.
func (h *FileHandler) Upload(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var form dto.UploadFileRequest
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file part is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close()

	file, err := h.service.Upload(c.Request.Context(), actor, service.UploadInput{
		Filename:     fileHeader.Filename,
		Size:         fileHeader.Size,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Reader:       src,
		Description:  form.Description,
		AssignmentID: form.AssignmentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, file)
}

// List handles GET /files.
func (h *FileHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var query dto.FileListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	files, pagination, err := h.service.List(c.Request.Context(), actor, repository.FileFilter{
		Status:     query.Status,
		Stage:      query.Stage,
		Team:       query.Team,
		UploaderID: query.Uploader,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, files, pagination)
}

// Get handles GET /files/:id.
func (h *FileHandler) Get(c *gin.Context) {
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

	file, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}

// Download handles GET /files/:id/download, streaming the stored content.
func (h *FileHandler) Download(c *gin.Context) {
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

	file, path, err := h.service.Open(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.FileAttachment(path, file.Filename)
}

// History handles GET /files/:id/history, the file's approval trail oldest
// first.
func (h *FileHandler) History(c *gin.Context) {
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

	history, err := h.service.History(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, history, nil)
}

// Delete handles DELETE /files/:id.
func (h *FileHandler) Delete(c *gin.Context) {
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
