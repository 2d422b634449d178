package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/service"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/response"
)

// ReviewHandler wires HTTP endpoints to the approval state machine.
type ReviewHandler struct {
	service *service.ReviewService
	users   *service.UserService
}

// NewReviewHandler creates a new handler.
func NewReviewHandler(svc *service.ReviewService, users *service.UserService) *ReviewHandler {
	return &ReviewHandler{service: svc, users: users}
}

type reviewFunc func(ctx context.Context, actor *models.User, fileID int64, req dto.ReviewRequest) (*models.File, error)

// TeamLeaderDecision handles POST /files/:id/review, the first-tier decision.
func (h *ReviewHandler) TeamLeaderDecision(c *gin.Context) {
	h.decide(c, h.service.TeamLeaderReview)
}

// AdminDecision handles POST /files/:id/final-review, the second-tier
// decision that publishes or terminally rejects.
func (h *ReviewHandler) AdminDecision(c *gin.Context) {
	h.decide(c, h.service.AdminReview)
}

func (h *ReviewHandler) decide(c *gin.Context, review reviewFunc) {
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

	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	file, err := review(c.Request.Context(), actor, fileID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, file, nil)
}
