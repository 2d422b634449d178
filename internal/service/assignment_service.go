package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type assignmentStore interface {
	CreateWithMembers(ctx context.Context, assignment *models.Assignment, memberIDs []int64) error
	GetByID(ctx context.Context, id int64) (*models.Assignment, error)
	List(ctx context.Context, team string, page, pageSize int) ([]models.Assignment, int64, error)
	ListMembers(ctx context.Context, assignmentID int64) ([]models.AssignmentMember, error)
	IsMember(ctx context.Context, assignmentID, userID int64) (bool, error)
	CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error
	GetSubmission(ctx context.Context, id int64) (*models.AssignmentSubmission, error)
	DeleteSubmission(ctx context.Context, id int64) error
	ListSubmissions(ctx context.Context, assignmentID int64) ([]models.AssignmentSubmission, error)
	DeleteCascade(ctx context.Context, id int64) error
}

type teamDirectory interface {
	ListByTeam(ctx context.Context, team string) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type submissionFileStore interface {
	GetByID(ctx context.Context, id int64) (*models.File, error)
	DeleteCascade(ctx context.Context, id int64) error
}

type submissionBlobStore interface {
	Delete(storedName string) error
}

type assignmentNotifier interface {
	DispatchToUsers(ctx context.Context, recipients []models.User, event FileEvent)
}

// AssignmentService manages team work items, their member snapshots and file
// submissions. Membership is frozen when the assignment is created; users
// joining the team later are not added.
type AssignmentService struct {
	repo     assignmentStore
	users    teamDirectory
	files    submissionFileStore
	blobs    submissionBlobStore
	activity activityStore
	notifier assignmentNotifier
	logger   *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentStore, users teamDirectory, files submissionFileStore, blobs submissionBlobStore, activity activityStore, notifier assignmentNotifier, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:     repo,
		users:    users,
		files:    files,
		blobs:    blobs,
		activity: activity,
		notifier: notifier,
		logger:   logger,
	}
}

// Create snapshots the target members and stores the assignment. Team
// leaders create for their own team; admins must name a team.
func (s *AssignmentService) Create(ctx context.Context, actor *models.User, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	team := req.Team
	switch actor.Role {
	case models.RoleTeamLeader:
		team = actor.Team
	case models.RoleAdmin:
		if team == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "team is required")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only team leaders and admins can create assignments")
	}

	memberIDs, members, err := s.resolveMembers(ctx, team, req)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		Title:            req.Title,
		Description:      req.Description,
		Team:             team,
		AssignedTo:       req.AssignedTo,
		CreatorID:        actor.ID,
		FileTypeRequired: strings.TrimPrefix(strings.ToLower(req.FileTypeRequired), "."),
		MaxFileSize:      req.MaxFileSize,
		Status:           models.AssignmentStatusActive,
		DueAt:            req.DueAt,
	}
	if err := s.repo.CreateWithMembers(ctx, assignment, memberIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.emitActivity(ctx, actor, models.ActionCreateTask, assignment.ID, assignment.Title)
	if s.notifier != nil {
		s.notifier.DispatchToUsers(ctx, members, FileEvent{
			Type:  models.NotificationAssignment,
			Actor: actor,
			Title: "New assignment",
			Body:  fmt.Sprintf("%s assigned you: %s", actor.FullName, assignment.Title),
		})
	}
	return assignment, nil
}

func (s *AssignmentService) resolveMembers(ctx context.Context, team string, req dto.CreateAssignmentRequest) ([]int64, []models.User, error) {
	teamUsers, err := s.users.ListByTeam(ctx, team)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team members")
	}

	if req.AssignedTo == models.AssignedToAll {
		var ids []int64
		var members []models.User
		for _, user := range teamUsers {
			if user.Role != models.RoleUser {
				continue
			}
			ids = append(ids, user.ID)
			members = append(members, user)
		}
		if len(ids) == 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "the team has no members to assign")
		}
		return ids, members, nil
	}

	if len(req.MemberIDs) == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "member_ids is required for a specific assignment")
	}
	byID := make(map[int64]models.User, len(teamUsers))
	for _, user := range teamUsers {
		byID[user.ID] = user
	}
	ids := make([]int64, 0, len(req.MemberIDs))
	members := make([]models.User, 0, len(req.MemberIDs))
	seen := make(map[int64]struct{}, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		user, ok := byID[id]
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("user %d is not an active member of team %s", id, team))
		}
		ids = append(ids, id)
		members = append(members, user)
	}
	return ids, members, nil
}

// Get returns an assignment with its member snapshot and submissions.
func (s *AssignmentService) Get(ctx context.Context, actor *models.User, id int64) (*models.Assignment, error) {
	assignment, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment members")
	}
	submissions, err := s.repo.ListSubmissions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	assignment.Members = members
	assignment.Submissions = submissions
	return assignment, nil
}

// List returns assignments visible to the actor, scoped to their team unless
// they are an admin.
func (s *AssignmentService) List(ctx context.Context, actor *models.User, query dto.AssignmentListQuery) ([]models.Assignment, *models.Pagination, error) {
	team := query.Team
	if actor.Role != models.RoleAdmin {
		team = actor.Team
	}
	assignments, total, err := s.repo.List(ctx, team, query.Page, query.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, models.NewPagination(query.Page, query.PageSize, total), nil
}

// SubmitFile links one of the member's uploaded files to the assignment and
// flips their snapshot entry to submitted. Submitting the same file twice is
// a conflict.
func (s *AssignmentService) SubmitFile(ctx context.Context, actor *models.User, assignmentID int64, req dto.SubmitFileRequest) (*models.AssignmentSubmission, error) {
	assignment, err := s.loadVisible(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Archived {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the assignment is archived")
	}
	isMember, err := s.repo.IsMember(ctx, assignmentID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !isMember {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this task")
	}

	file, err := s.files.GetByID(ctx, req.FileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.UploaderID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only submit your own files")
	}
	if err := validateSubmission(assignment, file); err != nil {
		return nil, err
	}

	submission := &models.AssignmentSubmission{
		AssignmentID: assignmentID,
		FileID:       file.ID,
		SubmitterID:  actor.ID,
	}
	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "this file was already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit file")
	}

	s.emitActivity(ctx, actor, models.ActionSubmitFile, assignmentID, file.Filename)
	if s.notifier != nil {
		if creator, err := s.users.FindByID(ctx, assignment.CreatorID); err == nil {
			s.notifier.DispatchToUsers(ctx, []models.User{*creator}, FileEvent{
				Type:  models.NotificationSubmission,
				Actor: actor,
				File:  file,
				Title: "New submission",
				Body:  fmt.Sprintf("%s submitted %s for %s", actor.FullName, file.Filename, assignment.Title),
			})
		} else {
			s.logger.Sugar().Warnw("failed to load assignment creator for notification",
				"assignment_id", assignmentID, "error", err)
		}
	}
	return submission, nil
}

// validateSubmission checks the file against the assignment's type and size
// constraints.
func validateSubmission(assignment *models.Assignment, file *models.File) error {
	if assignment.FileTypeRequired != "" {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
		if ext != assignment.FileTypeRequired {
			return appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("the assignment requires a .%s file", assignment.FileTypeRequired))
		}
	}
	if assignment.MaxFileSize > 0 && file.SizeBytes > assignment.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("the file exceeds the %d byte limit for this assignment", assignment.MaxFileSize))
	}
	return nil
}

// RemoveSubmission detaches a submitted file. The member's status flips back
// to pending when nothing else of theirs remains submitted.
func (s *AssignmentService) RemoveSubmission(ctx context.Context, actor *models.User, assignmentID, submissionID int64) error {
	assignment, err := s.loadVisible(ctx, actor, assignmentID)
	if err != nil {
		return err
	}
	submission, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.AssignmentID != assignmentID {
		return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}

	switch {
	case actor.Role == models.RoleAdmin:
	case actor.ID == submission.SubmitterID:
	case actor.IsTeamLeaderOf(assignment.Team):
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot remove this submission")
	}

	if err := s.repo.DeleteSubmission(ctx, submissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove submission")
	}

	// The submitted file goes with the submission, blob included.
	s.deleteSubmittedFile(ctx, submission.FileID)

	s.emitActivity(ctx, actor, models.ActionRemoveSubmit, assignmentID, fmt.Sprintf("submission %d", submissionID))
	return nil
}

func (s *AssignmentService) deleteSubmittedFile(ctx context.Context, fileID int64) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Sugar().Warnw("failed to load submitted file for deletion", "file_id", fileID, "error", err)
		}
		return
	}
	if err := s.files.DeleteCascade(ctx, fileID); err != nil {
		s.logger.Sugar().Warnw("failed to delete submitted file", "file_id", fileID, "error", err)
		return
	}
	if s.blobs != nil {
		if err := s.blobs.Delete(file.StoredName); err != nil {
			s.logger.Sugar().Warnw("failed to remove stored blob", "stored_name", file.StoredName, "error", err)
		}
	}
}

// Delete removes an assignment with its snapshot, submissions, thread and
// every submitted file. Per-file failures are logged and the cascade
// continues.
func (s *AssignmentService) Delete(ctx context.Context, actor *models.User, id int64) error {
	assignment, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && actor.ID != assignment.CreatorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin can delete this assignment")
	}

	submissions, err := s.repo.ListSubmissions(ctx, id)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list submissions for cascade", "assignment_id", id, "error", err)
	}
	for _, submission := range submissions {
		s.deleteSubmittedFile(ctx, submission.FileID)
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.emitActivity(ctx, actor, models.ActionDeleteTask, id, assignment.Title)
	return nil
}

func (s *AssignmentService) loadVisible(ctx context.Context, actor *models.User, id int64) (*models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if actor.Role != models.RoleAdmin && actor.Team != assignment.Team {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this assignment")
	}
	return assignment, nil
}

func (s *AssignmentService) emitActivity(ctx context.Context, actor *models.User, action string, assignmentID int64, detail string) {
	if s.activity == nil {
		return
	}
	entry := &models.ActivityLog{
		UserID:   actor.ID,
		Action:   action,
		Entity:   "assignment",
		EntityID: fmt.Sprintf("%d", assignmentID),
		Detail:   detail,
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to record assignment activity", "action", action, "error", err)
	}
}
