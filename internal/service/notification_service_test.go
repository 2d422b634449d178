package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type notificationStoreStub struct {
	mu      sync.Mutex
	created []models.Notification
	readAt  map[int64]time.Time
}

func newNotificationStoreStub() *notificationStoreStub {
	return &notificationStoreStub{readAt: make(map[int64]time.Time)}
}

func (s *notificationStoreStub) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, notifications...)
	return nil
}

func (s *notificationStoreStub) ListByRecipient(ctx context.Context, recipientID int64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.created {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (s *notificationStoreStub) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	return 0, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id, recipientID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id >= int64(len(s.created)) {
		return sql.ErrNoRows
	}
	if _, done := s.readAt[id]; !done {
		s.readAt[id] = now
	}
	return nil
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, recipientID int64, now time.Time) (int64, error) {
	return 0, nil
}

func (s *notificationStoreStub) Delete(ctx context.Context, id, recipientID int64) error {
	return sql.ErrNoRows
}

func (s *notificationStoreStub) DeleteAll(ctx context.Context, recipientID int64) (int64, error) {
	return 0, nil
}

func (s *notificationStoreStub) batch() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.created))
	copy(out, s.created)
	return out
}

type directoryStub struct {
	team   []models.User
	leader *models.User
	admins []models.User
}

func (d *directoryStub) ListByTeam(ctx context.Context, team string) ([]models.User, error) {
	return d.team, nil
}

func (d *directoryStub) FindTeamLeader(ctx context.Context, team string) (*models.User, error) {
	if d.leader == nil {
		return nil, sql.ErrNoRows
	}
	return d.leader, nil
}

func (d *directoryStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	return d.admins, nil
}

type mailerStub struct {
	mu   sync.Mutex
	sent []string
}

func (m *mailerStub) Enabled() bool { return true }

func (m *mailerStub) SendAsync(to, subject, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
}

func startNotificationService(t *testing.T) (*NotificationService, *notificationStoreStub, *mailerStub) {
	t.Helper()
	store := newNotificationStoreStub()
	directory := &directoryStub{
		team:   []models.User{*alice, *bob, *dave},
		leader: bob,
		admins: []models.User{*carol},
	}
	mailer := &mailerStub{}
	svc := NewNotificationService(store, directory, mailer, config.NotificationsConfig{Workers: 1, BufferSize: 8}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, store, mailer
}

func waitForBatch(t *testing.T, store *notificationStoreStub, want int) []models.Notification {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(store.batch()) == want
	}, 2*time.Second, 10*time.Millisecond)
	return store.batch()
}

func recipientIDs(batch []models.Notification) map[int64]int {
	counts := make(map[int64]int)
	for _, n := range batch {
		counts[n.RecipientID]++
	}
	return counts
}

func TestDispatchUserActorReachesTeamLeader(t *testing.T) {
	svc, store, mailer := startNotificationService(t)

	file := &models.File{ID: 7, Filename: "report.pdf", Team: "alpha"}
	svc.DispatchFileEvent(context.Background(), FileEvent{
		Type:  models.NotificationSubmission,
		Actor: alice,
		File:  file,
		Title: "New file",
		Body:  "alice uploaded report.pdf",
	})

	batch := waitForBatch(t, store, 1)
	require.Equal(t, bob.ID, batch[0].RecipientID)
	require.Equal(t, alice.ID, *batch[0].ActorID)
	require.Equal(t, alice.FullName, batch[0].ActorName)
	require.Equal(t, models.RoleUser, batch[0].ActorRole)
	require.Equal(t, file.ID, *batch[0].FileID)

	// Workflow events create inbox rows only; mail is reserved for events
	// that list addresses explicitly.
	mailer.mu.Lock()
	require.Empty(t, mailer.sent)
	mailer.mu.Unlock()
}

func TestDispatchToUsersSendsListedEmails(t *testing.T) {
	svc, store, mailer := startNotificationService(t)

	svc.DispatchToUsers(context.Background(), []models.User{*alice}, FileEvent{
		Type:   models.NotificationPasswordReset,
		Title:  "Password reset complete",
		Emails: []string{alice.Email},
	})

	waitForBatch(t, store, 1)
	require.Eventually(t, func() bool {
		mailer.mu.Lock()
		defer mailer.mu.Unlock()
		return len(mailer.sent) == 1 && mailer.sent[0] == alice.Email
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatchLeaderActorReachesTeamWithoutSelf(t *testing.T) {
	svc, store, _ := startNotificationService(t)

	svc.DispatchFileEvent(context.Background(), FileEvent{
		Type:  models.NotificationApproval,
		Actor: bob,
		File:  &models.File{ID: 7, Team: "alpha"},
		Title: "File approved",
	})

	counts := recipientIDs(waitForBatch(t, store, 2))
	require.Equal(t, 1, counts[alice.ID])
	require.Equal(t, 1, counts[dave.ID])
	require.Zero(t, counts[bob.ID])
}

func TestDispatchAdminActorReachesTeamAndLeaderOnce(t *testing.T) {
	svc, store, _ := startNotificationService(t)

	// The leader appears both in the team listing and as the resolved
	// leader; the batch must still carry them once.
	svc.DispatchFileEvent(context.Background(), FileEvent{
		Type:  models.NotificationFinalApproval,
		Actor: carol,
		File:  &models.File{ID: 7, Team: "alpha"},
		Title: "File published",
	})

	counts := recipientIDs(waitForBatch(t, store, 3))
	require.Equal(t, 1, counts[alice.ID])
	require.Equal(t, 1, counts[dave.ID])
	require.Equal(t, 1, counts[bob.ID])
}

func TestDispatchToUsersDropsActorAndDuplicates(t *testing.T) {
	svc, store, _ := startNotificationService(t)

	svc.DispatchToUsers(context.Background(), []models.User{*alice, *alice, *bob}, FileEvent{
		Type:  models.NotificationComment,
		Actor: bob,
		Title: "New comment",
	})

	batch := waitForBatch(t, store, 1)
	require.Equal(t, alice.ID, batch[0].RecipientID)
}

func TestDispatchAssignmentEventByRole(t *testing.T) {
	assignment := &models.Assignment{ID: 3, Title: "Weekly report", Team: "alpha"}
	members := []models.AssignmentMember{
		{AssignmentID: 3, UserID: alice.ID},
		{AssignmentID: 3, UserID: dave.ID},
	}

	t.Run("member reaches team leader only", func(t *testing.T) {
		svc, store, _ := startNotificationService(t)
		svc.DispatchAssignmentEvent(context.Background(), assignment, members, FileEvent{
			Type:  models.NotificationComment,
			Actor: alice,
			Title: "New comment",
		})
		batch := waitForBatch(t, store, 1)
		require.Equal(t, bob.ID, batch[0].RecipientID)
		require.Equal(t, assignment.ID, *batch[0].AssignmentID)
	})

	t.Run("leader reaches other members", func(t *testing.T) {
		svc, store, _ := startNotificationService(t)
		svc.DispatchAssignmentEvent(context.Background(), assignment, members, FileEvent{
			Type:  models.NotificationComment,
			Actor: bob,
			Title: "New comment",
		})
		counts := recipientIDs(waitForBatch(t, store, 2))
		require.Equal(t, 1, counts[alice.ID])
		require.Equal(t, 1, counts[dave.ID])
	})

	t.Run("admin reaches members and leader", func(t *testing.T) {
		svc, store, _ := startNotificationService(t)
		svc.DispatchAssignmentEvent(context.Background(), assignment, members, FileEvent{
			Type:  models.NotificationComment,
			Actor: carol,
			Title: "New comment",
		})
		counts := recipientIDs(waitForBatch(t, store, 3))
		require.Equal(t, 1, counts[alice.ID])
		require.Equal(t, 1, counts[dave.ID])
		require.Equal(t, 1, counts[bob.ID])
	})
}

func TestNotifyAdmins(t *testing.T) {
	svc, store, _ := startNotificationService(t)

	svc.NotifyAdmins(context.Background(), FileEvent{
		Type:  models.NotificationApproval,
		Actor: bob,
		File:  &models.File{ID: 7, Team: "alpha"},
		Title: "File awaiting final review",
	})

	batch := waitForBatch(t, store, 1)
	require.Equal(t, carol.ID, batch[0].RecipientID)
}

func TestMarkReadMissingEntry(t *testing.T) {
	store := newNotificationStoreStub()
	svc := NewNotificationService(store, &directoryStub{}, nil, config.NotificationsConfig{}, nil)

	err := svc.MarkRead(context.Background(), 42, alice.ID)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
