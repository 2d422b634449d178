package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/jobs"
)

type notificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListByRecipient(ctx context.Context, recipientID int64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID int64) (int64, error)
	MarkRead(ctx context.Context, id, recipientID int64, now time.Time) error
	MarkAllRead(ctx context.Context, recipientID int64, now time.Time) (int64, error)
	Delete(ctx context.Context, id, recipientID int64) error
	DeleteAll(ctx context.Context, recipientID int64) (int64, error)
}

type recipientDirectory interface {
	ListByTeam(ctx context.Context, team string) ([]models.User, error)
	FindTeamLeader(ctx context.Context, team string) (*models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

type notificationMailer interface {
	Enabled() bool
	SendAsync(to, subject, body string)
}

// FileEvent describes a workflow action that fans out to interested users.
// Emails are sent only when the caller lists addresses explicitly; inbox
// rows never trigger mail on their own.
type FileEvent struct {
	Type       string
	Actor      *models.User
	File       *models.File
	Assignment *models.Assignment
	Title      string
	Body       string
	Emails     []string
}

// NotificationService fans events out to per-recipient inbox rows through a
// background queue. Delivery is best-effort; failures are logged, never
// surfaced to the triggering request.
type NotificationService struct {
	repo      notificationStore
	directory recipientDirectory
	mailer    notificationMailer
	queue     *jobs.Queue
	logger    *zap.Logger
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationStore, directory recipientDirectory, mailer notificationMailer, cfg config.NotificationsConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		repo:      repo,
		directory: directory,
		mailer:    mailer,
		logger:    logger,
	}
	svc.queue = jobs.NewQueue("notifications", svc.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

type notificationJob struct {
	Batch  []models.Notification
	Emails []string
	Title  string
	Body   string
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if err := s.repo.CreateBatch(ctx, payload.Batch); err != nil {
		return err
	}
	if s.mailer != nil && s.mailer.Enabled() {
		for _, email := range payload.Emails {
			s.mailer.SendAsync(email, payload.Title, payload.Body)
		}
	}
	return nil
}

// DispatchFileEvent resolves recipients for a workflow action and enqueues
// the fan-out. Recipient resolution follows the actor's role: regular users
// reach their team leader, team leaders reach their team, admins reach the
// team leader and the team. The actor never notifies themselves.
func (s *NotificationService) DispatchFileEvent(ctx context.Context, event FileEvent) {
	recipients, err := s.resolveRecipients(ctx, event.Actor, event.File.Team)
	if err != nil {
		s.logger.Sugar().Warnw("failed to resolve notification recipients",
			"file_id", event.File.ID, "type", event.Type, "error", err)
		return
	}
	s.DispatchToUsers(ctx, recipients, event)
}

// DispatchToUsers enqueues a fan-out to an explicit recipient set, used when
// the caller already knows the audience (assignment snapshots, reset flows).
func (s *NotificationService) DispatchToUsers(ctx context.Context, recipients []models.User, event FileEvent) {
	actorID := int64(0)
	if event.Actor != nil {
		actorID = event.Actor.ID
	}

	batch := make([]models.Notification, 0, len(recipients))
	seen := make(map[int64]struct{}, len(recipients))
	for _, user := range recipients {
		if user.ID == actorID {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}

		n := models.Notification{
			RecipientID: user.ID,
			Type:        event.Type,
			Title:       event.Title,
			Body:        event.Body,
		}
		if event.Actor != nil {
			id := event.Actor.ID
			n.ActorID = &id
			n.ActorName = event.Actor.FullName
			n.ActorRole = event.Actor.Role
		}
		if event.File != nil {
			fileID := event.File.ID
			n.FileID = &fileID
		}
		if event.Assignment != nil {
			assignmentID := event.Assignment.ID
			n.AssignmentID = &assignmentID
		}
		batch = append(batch, n)
	}
	if len(batch) == 0 {
		return
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: event.Type,
		Payload: notificationJob{
			Batch:  batch,
			Emails: event.Emails,
			Title:  event.Title,
			Body:   event.Body,
		},
	})
	if err != nil {
		s.logger.Sugar().Warnw("failed to enqueue notification batch",
			"type", event.Type, "recipients", len(batch), "error", err)
	}
}

func (s *NotificationService) resolveRecipients(ctx context.Context, actor *models.User, team string) ([]models.User, error) {
	if actor == nil {
		return nil, fmt.Errorf("missing actor")
	}
	switch actor.Role {
	case models.RoleUser:
		leader, err := s.directory.FindTeamLeader(ctx, team)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return []models.User{*leader}, nil
	case models.RoleTeamLeader:
		return s.directory.ListByTeam(ctx, team)
	case models.RoleAdmin:
		members, err := s.directory.ListByTeam(ctx, team)
		if err != nil {
			return nil, err
		}
		leader, err := s.directory.FindTeamLeader(ctx, team)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if leader != nil {
			members = append(members, *leader)
		}
		return members, nil
	}
	return nil, fmt.Errorf("unknown actor role %q", actor.Role)
}

// DispatchAssignmentEvent fans an assignment thread event out over the
// member snapshot. Admins reach the team leader plus every member, team
// leaders reach the members, and members reach only the team leader.
func (s *NotificationService) DispatchAssignmentEvent(ctx context.Context, assignment *models.Assignment, members []models.AssignmentMember, event FileEvent) {
	if event.Actor == nil || assignment == nil {
		return
	}
	event.Assignment = assignment

	var recipients []models.User
	switch event.Actor.Role {
	case models.RoleUser:
		leader, err := s.directory.FindTeamLeader(ctx, assignment.Team)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Sugar().Warnw("failed to resolve team leader for assignment event",
					"assignment_id", assignment.ID, "error", err)
			}
			return
		}
		recipients = []models.User{*leader}
	case models.RoleTeamLeader, models.RoleAdmin:
		for _, m := range members {
			recipients = append(recipients, models.User{ID: m.UserID})
		}
		if event.Actor.Role == models.RoleAdmin {
			leader, err := s.directory.FindTeamLeader(ctx, assignment.Team)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				s.logger.Sugar().Warnw("failed to resolve team leader for assignment event",
					"assignment_id", assignment.ID, "error", err)
			}
			if leader != nil {
				recipients = append(recipients, *leader)
			}
		}
	default:
		return
	}
	s.DispatchToUsers(ctx, recipients, event)
}

// NotifyAdmins fans an event out to every active admin, used when a file
// reaches the final review stage.
func (s *NotificationService) NotifyAdmins(ctx context.Context, event FileEvent) {
	admins, err := s.directory.ListAdmins(ctx)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list admins for notification", "type", event.Type, "error", err)
		return
	}
	s.DispatchToUsers(ctx, admins, event)
}

// List returns the caller's inbox.
func (s *NotificationService) List(ctx context.Context, recipientID int64, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, models.NewPagination(page, pageSize, total), nil
}

// UnreadCount returns the caller's unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	return count, nil
}

// MarkRead stamps one entry. Repeated calls succeed without moving the
// original read timestamp.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID int64) error {
	if err := s.repo.MarkRead(ctx, id, recipientID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead stamps every unread entry of the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, recipientID, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return updated, nil
}

// Delete removes one entry owned by the caller.
func (s *NotificationService) Delete(ctx context.Context, id, recipientID int64) error {
	if err := s.repo.Delete(ctx, id, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

// DeleteAll clears the caller's inbox.
func (s *NotificationService) DeleteAll(ctx context.Context, recipientID int64) (int64, error) {
	removed, err := s.repo.DeleteAll(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear notifications")
	}
	return removed, nil
}
