package service

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/models"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/jobs"
)

// IndexStatus is a snapshot of the most recent public share walk.
type IndexStatus struct {
	Running     bool       `json:"running"`
	FilesSeen   int64      `json:"files_seen"`
	BytesSeen   int64      `json:"bytes_seen"`
	LastError   string     `json:"last_error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type shareDirProvider interface {
	Dir() string
}

// IndexerService walks the public share directory on demand and keeps an
// inventory snapshot. Only one walk runs at a time; triggering while a walk
// is in flight is a conflict.
type IndexerService struct {
	share    shareDirProvider
	activity activityStore
	queue    *jobs.Queue
	logger   *zap.Logger

	running     atomic.Bool
	filesSeen   atomic.Int64
	bytesSeen   atomic.Int64
	lastError   atomic.Value
	startedAt   atomic.Value
	completedAt atomic.Value
}

// NewIndexerService constructs the service with a single worker queue.
func NewIndexerService(share shareDirProvider, activity activityStore, logger *zap.Logger) *IndexerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &IndexerService{
		share:    share,
		activity: activity,
		logger:   logger,
	}
	svc.queue = jobs.NewQueue("indexer", svc.process, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		Logger:     logger,
	})
	return svc
}

// Start launches the walk worker.
func (s *IndexerService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the walk worker.
func (s *IndexerService) Stop() {
	s.queue.Stop()
}

// Trigger enqueues a rebuild of the public share inventory. Admin only.
func (s *IndexerService) Trigger(ctx context.Context, actor *models.User) error {
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can reindex the public share")
	}
	if !s.running.CompareAndSwap(false, true) {
		return appErrors.Clone(appErrors.ErrConflict, "an index walk is already running")
	}

	now := time.Now().UTC()
	s.startedAt.Store(now)
	s.filesSeen.Store(0)
	s.bytesSeen.Store(0)
	s.lastError.Store("")

	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "reindex"}); err != nil {
		s.running.Store(false)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue index walk")
	}

	if s.activity != nil {
		entry := &models.ActivityLog{
			UserID: actor.ID,
			Action: models.ActionReindex,
			Entity: "public_share",
		}
		if err := s.activity.Create(ctx, entry); err != nil {
			s.logger.Sugar().Warnw("failed to record reindex activity", "error", err)
		}
	}
	return nil
}

func (s *IndexerService) process(ctx context.Context, _ jobs.Job) error {
	defer s.running.Store(false)

	root := s.share.Dir()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		s.filesSeen.Add(1)
		s.bytesSeen.Add(info.Size())
		return nil
	})

	now := time.Now().UTC()
	s.completedAt.Store(now)
	if err != nil {
		s.lastError.Store(err.Error())
		s.logger.Sugar().Warnw("public share walk failed", "root", root, "error", err)
		return nil
	}
	s.logger.Sugar().Infow("public share walk completed",
		"root", root, "files", s.filesSeen.Load(), "bytes", s.bytesSeen.Load())
	return nil
}

// Status returns the current inventory snapshot.
func (s *IndexerService) Status() IndexStatus {
	status := IndexStatus{
		Running:   s.running.Load(),
		FilesSeen: s.filesSeen.Load(),
		BytesSeen: s.bytesSeen.Load(),
	}
	if v, ok := s.lastError.Load().(string); ok {
		status.LastError = v
	}
	if v, ok := s.startedAt.Load().(time.Time); ok {
		status.StartedAt = &v
	}
	if v, ok := s.completedAt.Load().(time.Time); ok {
		status.CompletedAt = &v
	}
	return status
}
