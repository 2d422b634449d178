package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type reviewStore interface {
	GetByID(ctx context.Context, id int64) (*models.File, error)
	SubmitReview(ctx context.Context, upd repository.ReviewUpdate) error
}

type filePublisher interface {
	Publish(srcPath, filename string) (string, error)
	Remove(filename string) error
}

type storedPathResolver interface {
	Path(filename string) string
}

type userFinder interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type reviewNotifier interface {
	DispatchFileEvent(ctx context.Context, event FileEvent)
	DispatchToUsers(ctx context.Context, recipients []models.User, event FileEvent)
	NotifyAdmins(ctx context.Context, event FileEvent)
}

// ReviewService drives the two-tier approval state machine. Every decision
// commits the status change, its history entry and the review comment in one
// transaction; notifications go out only after the commit.
type ReviewService struct {
	repo     reviewStore
	users    userFinder
	storage  storedPathResolver
	public   filePublisher
	activity activityStore
	notifier reviewNotifier
	logger   *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(repo reviewStore, users userFinder, storage storedPathResolver, public filePublisher, activity activityStore, notifier reviewNotifier, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		repo:     repo,
		users:    users,
		storage:  storage,
		public:   public,
		activity: activity,
		notifier: notifier,
		logger:   logger,
	}
}

// TeamLeaderReview applies the first-tier decision. Approval moves the file
// to the admin queue, rejection ends the flow. A reject decision must carry
// a reason.
func (s *ReviewService) TeamLeaderReview(ctx context.Context, actor *models.User, fileID int64, req dto.ReviewRequest) (*models.File, error) {
	file, err := s.loadForReview(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleTeamLeader || actor.Team != file.Team {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the team leader of this team can review the file")
	}
	if file.Status != models.FileStatusUploaded {
		return nil, s.transitionError(file)
	}
	if err := validateDecision(req); err != nil {
		return nil, err
	}

	upd := repository.ReviewUpdate{
		FileID:         file.ID,
		ExpectedStatus: models.FileStatusUploaded,
		FromStage:      file.Stage,
		ActorID:        actor.ID,
		ActorName:      actor.FullName,
		ActorRole:      actor.Role,
		Comment:        req.Comment,
	}
	var action, notifType, title string
	if req.Action == dto.ReviewActionApprove {
		upd.NewStatus = models.FileStatusTeamLeaderApproved
		upd.NewStage = models.FileStagePendingAdmin
		upd.CommentAction = models.CommentActionApprove
		action = models.ActionReviewApprove
		notifType = models.NotificationApproval
		title = "File approved by team leader"
	} else {
		upd.NewStatus = models.FileStatusRejectedByLeader
		upd.NewStage = models.FileStageRejectedByLeader
		upd.CommentAction = models.CommentActionReject
		action = models.ActionReviewReject
		notifType = models.NotificationRejection
		title = "File rejected by team leader"
	}

	if err := s.repo.SubmitReview(ctx, upd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.conflictError(ctx, file.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	file.Status = upd.NewStatus
	file.Stage = upd.NewStage
	file.StatusLabel = models.StatusLabel(file.Status, file.Stage)

	s.emitActivity(ctx, actor, action, file, req.Comment)
	if req.Action == dto.ReviewActionApprove {
		if s.notifier != nil {
			s.notifier.NotifyAdmins(ctx, FileEvent{
				Type:  models.NotificationApproval,
				Actor: actor,
				File:  file,
				Title: "File awaiting final review",
				Body:  fmt.Sprintf("%s approved %s for final review", actor.FullName, file.Filename),
			})
		}
	} else {
		s.notifyUploader(ctx, actor, file, notifType, title,
			fmt.Sprintf("%s rejected %s: %s", actor.FullName, file.Filename, req.Comment))
	}
	return file, nil
}

// AdminReview applies the final decision. Approval publishes the file to the
// public share and records its public URL; rejection is terminal.
func (s *ReviewService) AdminReview(ctx context.Context, actor *models.User, fileID int64, req dto.ReviewRequest) (*models.File, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can perform the final review")
	}
	file, err := s.loadForReview(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != models.FileStatusTeamLeaderApproved {
		return nil, s.transitionError(file)
	}
	if err := validateDecision(req); err != nil {
		return nil, err
	}

	upd := repository.ReviewUpdate{
		FileID:         file.ID,
		ExpectedStatus: models.FileStatusTeamLeaderApproved,
		FromStage:      file.Stage,
		ActorID:        actor.ID,
		ActorName:      actor.FullName,
		ActorRole:      actor.Role,
		Comment:        req.Comment,
	}
	var action, notifType, title string
	var publishedURL string
	if req.Action == dto.ReviewActionApprove {
		publishedURL, err = s.public.Publish(s.storage.Path(file.StoredName), file.Filename)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish file")
		}
		upd.NewStatus = models.FileStatusFinalApproved
		upd.NewStage = models.FileStagePublished
		upd.CommentAction = models.CommentActionFinalize
		upd.PublicURL = &publishedURL
		action = models.ActionFinalApprove
		notifType = models.NotificationFinalApproval
		title = "File published"
	} else {
		upd.NewStatus = models.FileStatusRejectedByAdmin
		upd.NewStage = models.FileStageRejectedByAdmin
		upd.CommentAction = models.CommentActionReject
		action = models.ActionFinalReject
		notifType = models.NotificationRejection
		title = "File rejected by admin"
	}

	if err := s.repo.SubmitReview(ctx, upd); err != nil {
		if publishedURL != "" {
			if cleanupErr := s.public.Remove(file.Filename); cleanupErr != nil {
				s.logger.Sugar().Warnw("failed to unpublish after review failure",
					"filename", file.Filename, "error", cleanupErr)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.conflictError(ctx, file.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}

	file.Status = upd.NewStatus
	file.Stage = upd.NewStage
	if upd.PublicURL != nil {
		file.PublicURL = upd.PublicURL
	}
	file.StatusLabel = models.StatusLabel(file.Status, file.Stage)

	s.emitActivity(ctx, actor, action, file, req.Comment)
	var body string
	if req.Action == dto.ReviewActionApprove {
		body = fmt.Sprintf("%s is now published at %s", file.Filename, publishedURL)
	} else {
		body = fmt.Sprintf("%s rejected %s: %s", actor.FullName, file.Filename, req.Comment)
	}
	s.notifyUploader(ctx, actor, file, notifType, title, body)
	return file, nil
}

func (s *ReviewService) loadForReview(ctx context.Context, fileID int64) (*models.File, error) {
	file, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	return file, nil
}

func (s *ReviewService) transitionError(file *models.File) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("file is %s", models.StatusLabel(file.Status, file.Stage)))
}

// conflictError re-reads the row after a lost race so the caller learns what
// the winning decision was.
func (s *ReviewService) conflictError(ctx context.Context, fileID int64) error {
	current, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrConflict, "the file was reviewed by someone else first")
	}
	return appErrors.Clone(appErrors.ErrConflict,
		fmt.Sprintf("another reviewer decided first, the file is now %s", models.StatusLabel(current.Status, current.Stage)))
}

func validateDecision(req dto.ReviewRequest) error {
	switch req.Action {
	case dto.ReviewActionApprove:
		return nil
	case dto.ReviewActionReject:
		if strings.TrimSpace(req.Comment) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "a rejection must include a reason")
		}
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
}

func (s *ReviewService) notifyUploader(ctx context.Context, actor *models.User, file *models.File, notifType, title, body string) {
	if s.notifier == nil {
		return
	}
	uploader, err := s.users.FindByID(ctx, file.UploaderID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to load uploader for notification",
			"file_id", file.ID, "uploader_id", file.UploaderID, "error", err)
		return
	}
	s.notifier.DispatchToUsers(ctx, []models.User{*uploader}, FileEvent{
		Type:  notifType,
		Actor: actor,
		File:  file,
		Title: title,
		Body:  body,
	})
}

func (s *ReviewService) emitActivity(ctx context.Context, actor *models.User, action string, file *models.File, detail string) {
	if s.activity == nil {
		return
	}
	entry := &models.ActivityLog{
		UserID:   actor.ID,
		Action:   action,
		Entity:   "file",
		EntityID: fmt.Sprintf("%d", file.ID),
		Detail:   detail,
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to record review activity", "action", action, "error", err)
	}
}
