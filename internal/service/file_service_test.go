package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type fileStoreStub struct {
	files      map[int64]*models.File
	nextID     int64
	createErr  error
	historyOut []models.FileStatusHistory
}

func newFileStoreStub(files ...*models.File) *fileStoreStub {
	stub := &fileStoreStub{files: make(map[int64]*models.File)}
	for _, f := range files {
		stub.files[f.ID] = f
		if f.ID > stub.nextID {
			stub.nextID = f.ID
		}
	}
	return stub
}

func (s *fileStoreStub) Create(ctx context.Context, file *models.File) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	file.ID = s.nextID
	if file.Status == "" {
		file.Status = models.FileStatusUploaded
		file.Stage = models.FileStagePendingTeamLeader
	}
	copy := *file
	s.files[file.ID] = &copy
	return nil
}

func (s *fileStoreStub) GetByID(ctx context.Context, id int64) (*models.File, error) {
	if f, ok := s.files[id]; ok {
		copy := *f
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *fileStoreStub) List(ctx context.Context, filter repository.FileFilter) ([]models.File, int64, error) {
	var out []models.File
	for _, f := range s.files {
		if filter.Team != "" && f.Team != filter.Team {
			continue
		}
		if filter.UploaderID != 0 && f.UploaderID != filter.UploaderID {
			continue
		}
		out = append(out, *f)
	}
	return out, int64(len(out)), nil
}

func (s *fileStoreStub) ListHistory(ctx context.Context, fileID int64) ([]models.FileStatusHistory, error) {
	return s.historyOut, nil
}

func (s *fileStoreStub) DeleteCascade(ctx context.Context, fileID int64) error {
	if _, ok := s.files[fileID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.files, fileID)
	return nil
}

type uploadStorageStub struct {
	blobs   map[string][]byte
	saveErr error
}

func newUploadStorageStub() *uploadStorageStub {
	return &uploadStorageStub{blobs: make(map[string][]byte)}
}

func (s *uploadStorageStub) SaveStream(filename string, reader io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.blobs[filename] = data
	return "/uploads/" + filename, nil
}

func (s *uploadStorageStub) Delete(filename string) error {
	delete(s.blobs, filename)
	return nil
}

func (s *uploadStorageStub) Path(filename string) string { return "/uploads/" + filename }

func newFileService(store *fileStoreStub) (*FileService, *uploadStorageStub, *publisherStub, *notifierStub) {
	storage := newUploadStorageStub()
	public := &publisherStub{}
	notifier := &notifierStub{}
	cfg := config.StorageConfig{
		MaxFileSizeBytes: 1 << 20,
		AllowedTypes:     []string{"pdf", "docx", "xlsx"},
	}
	svc := NewFileService(store, storage, public, &activityStub{}, notifier, cfg, nil)
	return svc, storage, public, notifier
}

func TestFileUploadRegistersAndNotifies(t *testing.T) {
	store := newFileStoreStub()
	svc, storage, _, notifier := newFileService(store)

	file, err := svc.Upload(context.Background(), alice, UploadInput{
		Filename:    "report.pdf",
		Size:        128,
		ContentType: "application/pdf",
		Reader:      bytes.NewReader([]byte("content")),
		Description: "weekly report",
	})
	require.NoError(t, err)
	require.NotZero(t, file.ID)
	require.Equal(t, models.FileStatusUploaded, file.Status)
	require.Equal(t, models.FileStagePendingTeamLeader, file.Stage)
	require.Equal(t, "alpha", file.Team)
	require.Equal(t, alice.FullName, file.UploaderName)
	require.Len(t, storage.blobs, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, models.NotificationSubmission, notifier.events[0].Type)
}

func TestFileUploadRejectsDisallowedType(t *testing.T) {
	svc, storage, _, _ := newFileService(newFileStoreStub())

	_, err := svc.Upload(context.Background(), alice, UploadInput{
		Filename: "payload.exe",
		Size:     10,
		Reader:   bytes.NewReader([]byte("x")),
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Empty(t, storage.blobs)
}

func TestFileUploadRejectsOversize(t *testing.T) {
	svc, storage, _, _ := newFileService(newFileStoreStub())

	_, err := svc.Upload(context.Background(), alice, UploadInput{
		Filename: "big.pdf",
		Size:     2 << 20,
		Reader:   bytes.NewReader([]byte("x")),
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Empty(t, storage.blobs)
}

func TestFileUploadCleansUpOnInsertFailure(t *testing.T) {
	store := newFileStoreStub()
	store.createErr = errors.New("insert failed")
	svc, storage, _, _ := newFileService(store)

	_, err := svc.Upload(context.Background(), alice, UploadInput{
		Filename: "report.pdf",
		Size:     10,
		Reader:   bytes.NewReader([]byte("x")),
	})
	require.Error(t, err)
	require.Empty(t, storage.blobs)
}

func TestFileVisibility(t *testing.T) {
	pending := &models.File{ID: 1, Filename: "draft.pdf", UploaderID: alice.ID, Team: "alpha", Status: models.FileStatusUploaded}
	published := &models.File{ID: 2, Filename: "done.pdf", UploaderID: alice.ID, Team: "alpha", Status: models.FileStatusFinalApproved, Stage: models.FileStagePublished}
	svc, _, _, _ := newFileService(newFileStoreStub(pending, published))

	outsider := &models.User{ID: 50, Role: models.RoleUser, Team: "beta"}
	teammate := &models.User{ID: 51, Role: models.RoleUser, Team: "alpha"}

	_, err := svc.Get(context.Background(), outsider, pending.ID)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// A teammate sees the file only once it is published.
	_, err = svc.Get(context.Background(), teammate, pending.ID)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	_, err = svc.Get(context.Background(), teammate, published.ID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), bob, pending.ID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), carol, pending.ID)
	require.NoError(t, err)
}

func TestFileListScoping(t *testing.T) {
	store := newFileStoreStub(
		&models.File{ID: 1, UploaderID: alice.ID, Team: "alpha"},
		&models.File{ID: 2, UploaderID: dave.ID, Team: "alpha"},
		&models.File{ID: 3, UploaderID: 60, Team: "beta"},
	)
	svc, _, _, _ := newFileService(store)

	files, _, err := svc.List(context.Background(), alice, repository.FileFilter{})
	require.NoError(t, err)
	require.Len(t, files, 1)

	files, _, err = svc.List(context.Background(), bob, repository.FileFilter{})
	require.NoError(t, err)
	require.Len(t, files, 2)

	files, _, err = svc.List(context.Background(), carol, repository.FileFilter{})
	require.NoError(t, err)
	require.Len(t, files, 3)
}

func TestFileDeleteRules(t *testing.T) {
	pending := &models.File{ID: 1, Filename: "draft.pdf", StoredName: "a.pdf", UploaderID: alice.ID, Team: "alpha", Status: models.FileStatusUploaded}
	reviewed := &models.File{ID: 2, Filename: "next.pdf", StoredName: "b.pdf", UploaderID: alice.ID, Team: "alpha", Status: models.FileStatusTeamLeaderApproved}
	published := &models.File{ID: 3, Filename: "done.pdf", StoredName: "c.pdf", UploaderID: alice.ID, Team: "alpha", Status: models.FileStatusFinalApproved}
	store := newFileStoreStub(pending, reviewed, published)
	svc, _, public, _ := newFileService(store)

	// Uploaders may only remove files still awaiting review.
	require.NoError(t, svc.Delete(context.Background(), alice, pending.ID))
	err := svc.Delete(context.Background(), alice, reviewed.ID)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins may remove anything; the published copy goes too.
	require.NoError(t, svc.Delete(context.Background(), carol, published.ID))
	require.Equal(t, []string{"done.pdf"}, public.removed)
}
