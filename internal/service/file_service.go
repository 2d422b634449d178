package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type fileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id int64) (*models.File, error)
	List(ctx context.Context, filter repository.FileFilter) ([]models.File, int64, error)
	ListHistory(ctx context.Context, fileID int64) ([]models.FileStatusHistory, error)
	DeleteCascade(ctx context.Context, fileID int64) error
}

type uploadStorage interface {
	SaveStream(filename string, reader io.Reader) (string, error)
	Delete(filename string) error
	Path(filename string) string
}

type publicRemover interface {
	Remove(filename string) error
}

type activityStore interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

type fileNotifier interface {
	DispatchFileEvent(ctx context.Context, event FileEvent)
}

// UploadInput carries one multipart file part plus its form fields.
type UploadInput struct {
	Filename     string
	Size         int64
	ContentType  string
	Reader       io.Reader
	Description  string
	AssignmentID *int64
}

// FileService handles upload, lookup and deletion of workflow files.
type FileService struct {
	repo     fileStore
	storage  uploadStorage
	public   publicRemover
	activity activityStore
	notifier fileNotifier
	cfg      config.StorageConfig
	logger   *zap.Logger
}

// NewFileService constructs the service.
func NewFileService(repo fileStore, storage uploadStorage, public publicRemover, activity activityStore, notifier fileNotifier, cfg config.StorageConfig, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		repo:     repo,
		storage:  storage,
		public:   public,
		activity: activity,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Upload stores the payload on disk and registers the file at the start of
// the approval flow. The stored blob is removed again when the database
// insert fails.
func (s *FileService) Upload(ctx context.Context, actor *models.User, input UploadInput) (*models.File, error) {
	if err := s.validateUpload(input); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(input.Filename))
	storedName := uuid.NewString() + ext
	if _, err := s.storage.SaveStream(storedName, input.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	file := &models.File{
		Filename:     input.Filename,
		StoredName:   storedName,
		ContentType:  input.ContentType,
		SizeBytes:    input.Size,
		UploaderID:   actor.ID,
		UploaderName: actor.FullName,
		Team:         actor.Team,
		Description:  input.Description,
		AssignmentID: input.AssignmentID,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		if cleanupErr := s.storage.Delete(storedName); cleanupErr != nil {
			s.logger.Sugar().Warnw("failed to clean up stored file after insert failure",
				"stored_name", storedName, "error", cleanupErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register file")
	}
	file.StatusLabel = models.StatusLabel(file.Status, file.Stage)

	s.emitActivity(ctx, &models.ActivityLog{
		UserID:   actor.ID,
		Action:   models.ActionUpload,
		Entity:   "file",
		EntityID: fmt.Sprintf("%d", file.ID),
		Detail:   file.Filename,
	})
	if s.notifier != nil {
		s.notifier.DispatchFileEvent(ctx, FileEvent{
			Type:  models.NotificationSubmission,
			Actor: actor,
			File:  file,
			Title: "New file awaiting review",
			Body:  fmt.Sprintf("%s uploaded %s", actor.FullName, file.Filename),
		})
	}
	return file, nil
}

func (s *FileService) validateUpload(input UploadInput) error {
	if input.Filename == "" || input.Reader == nil {
		return appErrors.Clone(appErrors.ErrValidation, "file payload is required")
	}
	if s.cfg.MaxFileSizeBytes > 0 && input.Size > s.cfg.MaxFileSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	if len(s.cfg.AllowedTypes) > 0 {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(input.Filename)), ".")
		allowed := false
		for _, t := range s.cfg.AllowedTypes {
			if strings.EqualFold(strings.TrimPrefix(t, "."), ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", ext))
		}
	}
	return nil
}

// Get returns a file the actor is allowed to see.
func (s *FileService) Get(ctx context.Context, actor *models.User, id int64) (*models.File, error) {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if !canViewFile(actor, file) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this file")
	}
	file.StatusLabel = models.StatusLabel(file.Status, file.Stage)
	return file, nil
}

// Open returns the stored content stream for download.
func (s *FileService) Open(ctx context.Context, actor *models.User, id int64) (*models.File, string, error) {
	file, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	return file, s.storage.Path(file.StoredName), nil
}

// List returns files visible to the actor. Admins see everything, team
// leaders their team, regular users their own uploads.
func (s *FileService) List(ctx context.Context, actor *models.User, filter repository.FileFilter) ([]models.File, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleAdmin:
		// Filter stays as requested.
	case models.RoleTeamLeader:
		filter.Team = actor.Team
	default:
		filter.UploaderID = actor.ID
	}

	files, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	for i := range files {
		files[i].StatusLabel = models.StatusLabel(files[i].Status, files[i].Stage)
	}
	return files, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// History returns the approval trail of a visible file.
func (s *FileService) History(ctx context.Context, actor *models.User, id int64) ([]models.FileStatusHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file history")
	}
	return history, nil
}

// Delete removes a file with its comments, history, notifications and
// submissions, plus the stored blobs. Uploaders may remove their own files
// while still pending; admins may remove anything.
func (s *FileService) Delete(ctx context.Context, actor *models.User, id int64) error {
	file, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	switch {
	case actor.Role == models.RoleAdmin:
	case actor.ID == file.UploaderID && file.Status == models.FileStatusUploaded:
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "you cannot delete this file")
	}

	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file")
	}

	if err := s.storage.Delete(file.StoredName); err != nil {
		s.logger.Sugar().Warnw("failed to remove stored file", "stored_name", file.StoredName, "error", err)
	}
	if file.Status == models.FileStatusFinalApproved && s.public != nil {
		if err := s.public.Remove(file.Filename); err != nil {
			s.logger.Sugar().Warnw("failed to remove published copy", "filename", file.Filename, "error", err)
		}
	}

	// The row is gone, so the log entry keeps its context.
	s.emitActivity(ctx, &models.ActivityLog{
		UserID:   actor.ID,
		Action:   models.ActionDeleteFile,
		Entity:   "file",
		EntityID: fmt.Sprintf("%d", id),
		Detail:   fmt.Sprintf("%s (uploader %d, team %s, status %s)", file.Filename, file.UploaderID, file.Team, file.Status),
	})
	return nil
}

func (s *FileService) emitActivity(ctx context.Context, entry *models.ActivityLog) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to record activity", "action", entry.Action, "error", err)
	}
}

// canViewFile gates per-file visibility. Published files stay visible to the
// uploader's whole team.
func canViewFile(actor *models.User, file *models.File) bool {
	switch {
	case actor.Role == models.RoleAdmin:
		return true
	case actor.ID == file.UploaderID:
		return true
	case actor.Role == models.RoleTeamLeader && actor.Team == file.Team:
		return true
	case actor.Team == file.Team && file.Status == models.FileStatusFinalApproved:
		return true
	}
	return false
}
