package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type activityReader interface {
	List(ctx context.Context, filter repository.ActivityFilter) ([]models.ActivityLog, int64, error)
}

// ActivityService exposes the audit trail to admins.
type ActivityService struct {
	repo   activityReader
	logger *zap.Logger
}

// NewActivityService constructs the service.
func NewActivityService(repo activityReader, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// List returns audit entries matching the filter, newest first.
func (s *ActivityService) List(ctx context.Context, filter repository.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity logs")
	}
	return entries, models.NewPagination(filter.Page, filter.PageSize, total), nil
}
