package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type commentStore interface {
	CreateFileComment(ctx context.Context, comment *models.FileComment) error
	ListFileComments(ctx context.Context, fileID int64) ([]models.FileComment, error)
	CreateAssignmentComment(ctx context.Context, comment *models.AssignmentComment) error
	CreateReply(ctx context.Context, reply *models.CommentReply) error
	GetAssignmentComment(ctx context.Context, id int64) (*models.AssignmentComment, error)
	ListAssignmentComments(ctx context.Context, assignmentID int64) ([]models.AssignmentComment, error)
}

type commentFileStore interface {
	GetByID(ctx context.Context, id int64) (*models.File, error)
}

type commentAssignmentStore interface {
	GetByID(ctx context.Context, id int64) (*models.Assignment, error)
	ListMembers(ctx context.Context, assignmentID int64) ([]models.AssignmentMember, error)
}

type commentNotifier interface {
	DispatchFileEvent(ctx context.Context, event FileEvent)
	DispatchAssignmentEvent(ctx context.Context, assignment *models.Assignment, members []models.AssignmentMember, event FileEvent)
}

// CommentService manages file threads and assignment discussions. Review
// decisions write their own tagged comments inside the review transaction;
// this service only handles plain discussion entries.
type CommentService struct {
	repo        commentStore
	files       commentFileStore
	assignments commentAssignmentStore
	activity    activityStore
	notifier    commentNotifier
	logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(repo commentStore, files commentFileStore, assignments commentAssignmentStore, activity activityStore, notifier commentNotifier, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		repo:        repo,
		files:       files,
		assignments: assignments,
		activity:    activity,
		notifier:    notifier,
		logger:      logger,
	}
}

// AddFileComment posts a plain comment on a visible file and fans the event
// out to the usual audience for the author's role.
func (s *CommentService) AddFileComment(ctx context.Context, actor *models.User, fileID int64, req dto.CreateCommentRequest) (*models.FileComment, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if !canViewFile(actor, file) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot comment on this file")
	}

	comment := &models.FileComment{
		FileID:     fileID,
		AuthorID:   actor.ID,
		AuthorName: actor.FullName,
		AuthorRole: actor.Role,
		Body:       req.Body,
		Action:     models.CommentActionNone,
	}
	if err := s.repo.CreateFileComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	s.emitActivity(ctx, actor, "file", fileID, req.Body)
	if s.notifier != nil {
		s.notifier.DispatchFileEvent(ctx, FileEvent{
			Type:  models.NotificationComment,
			Actor: actor,
			File:  file,
			Title: "New comment",
			Body:  fmt.Sprintf("%s commented on %s", actor.FullName, file.Filename),
		})
	}
	return comment, nil
}

// ListFileComments returns a visible file's thread including review entries.
func (s *CommentService) ListFileComments(ctx context.Context, actor *models.User, fileID int64) ([]models.FileComment, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if !canViewFile(actor, file) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this file")
	}
	comments, err := s.repo.ListFileComments(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

// AddAssignmentComment posts a top level comment, or a reply when parent_id
// is set. Replies must point at a comment of the same assignment.
func (s *CommentService) AddAssignmentComment(ctx context.Context, actor *models.User, assignmentID int64, req dto.CreateAssignmentCommentRequest) (*models.AssignmentComment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if actor.Role != models.RoleAdmin && actor.Team != assignment.Team {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot comment on this assignment")
	}

	if req.ParentID != nil {
		parent, err := s.repo.GetAssignmentComment(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent comment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent comment")
		}
		if parent.AssignmentID != assignmentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent comment belongs to another assignment")
		}
		reply := &models.CommentReply{
			CommentID:  parent.ID,
			AuthorID:   actor.ID,
			AuthorName: actor.FullName,
			Body:       req.Body,
		}
		if err := s.repo.CreateReply(ctx, reply); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reply")
		}
		parent.Replies = append(parent.Replies, *reply)
		s.emitActivity(ctx, actor, "assignment", assignmentID, req.Body)
		s.notifyAssignmentThread(ctx, actor, assignment)
		return parent, nil
	}

	comment := &models.AssignmentComment{
		AssignmentID: assignmentID,
		AuthorID:     actor.ID,
		AuthorName:   actor.FullName,
		Body:         req.Body,
	}
	if err := s.repo.CreateAssignmentComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	s.emitActivity(ctx, actor, "assignment", assignmentID, req.Body)
	s.notifyAssignmentThread(ctx, actor, assignment)
	return comment, nil
}

// notifyAssignmentThread fans a comment out over the member snapshot with
// the role asymmetry of the discussion: members reach the team leader only.
func (s *CommentService) notifyAssignmentThread(ctx context.Context, actor *models.User, assignment *models.Assignment) {
	if s.notifier == nil {
		return
	}
	members, err := s.assignments.ListMembers(ctx, assignment.ID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to load members for comment notification",
			"assignment_id", assignment.ID, "error", err)
		return
	}
	s.notifier.DispatchAssignmentEvent(ctx, assignment, members, FileEvent{
		Type:  models.NotificationComment,
		Actor: actor,
		Title: "New comment",
		Body:  fmt.Sprintf("%s commented on %s", actor.FullName, assignment.Title),
	})
}

// ListAssignmentComments returns the discussion thread with nested replies.
func (s *CommentService) ListAssignmentComments(ctx context.Context, actor *models.User, assignmentID int64) ([]models.AssignmentComment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if actor.Role != models.RoleAdmin && actor.Team != assignment.Team {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this assignment")
	}
	comments, err := s.repo.ListAssignmentComments(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

func (s *CommentService) emitActivity(ctx context.Context, actor *models.User, entity string, entityID int64, detail string) {
	if s.activity == nil {
		return
	}
	entry := &models.ActivityLog{
		UserID:   actor.ID,
		Action:   models.ActionComment,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Detail:   detail,
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to record comment activity", "entity", entity, "error", err)
	}
}
