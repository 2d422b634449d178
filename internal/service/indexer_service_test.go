package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type shareDirStub struct {
	dir string
}

func (s shareDirStub) Dir() string { return s.dir }

func TestIndexerWalksShare(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "alpha"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha", "notes.docx"), []byte("1234567890"), 0o644))

	svc := NewIndexerService(shareDirStub{dir: dir}, &activityStub{}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	require.NoError(t, svc.Trigger(context.Background(), carol))

	require.Eventually(t, func() bool {
		return !svc.Status().Running
	}, 2*time.Second, 10*time.Millisecond)

	status := svc.Status()
	require.Equal(t, int64(2), status.FilesSeen)
	require.Equal(t, int64(15), status.BytesSeen)
	require.Empty(t, status.LastError)
	require.NotNil(t, status.StartedAt)
	require.NotNil(t, status.CompletedAt)
}

func TestIndexerAdminOnly(t *testing.T) {
	svc := NewIndexerService(shareDirStub{dir: t.TempDir()}, nil, nil)

	err := svc.Trigger(context.Background(), bob)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestIndexerSingleWalkAtATime(t *testing.T) {
	svc := NewIndexerService(shareDirStub{dir: t.TempDir()}, nil, nil)
	svc.running.Store(true)

	err := svc.Trigger(context.Background(), carol)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
