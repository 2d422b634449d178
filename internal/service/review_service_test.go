package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type reviewRepoStub struct {
	files   map[int64]*models.File
	history []repository.ReviewUpdate
}

func newReviewRepoStub(files ...*models.File) *reviewRepoStub {
	stub := &reviewRepoStub{files: make(map[int64]*models.File)}
	for _, f := range files {
		stub.files[f.ID] = f
	}
	return stub
}

func (r *reviewRepoStub) GetByID(ctx context.Context, id int64) (*models.File, error) {
	if f, ok := r.files[id]; ok {
		copy := *f
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *reviewRepoStub) SubmitReview(ctx context.Context, upd repository.ReviewUpdate) error {
	f, ok := r.files[upd.FileID]
	if !ok || f.Status != upd.ExpectedStatus {
		return sql.ErrNoRows
	}
	f.Status = upd.NewStatus
	f.Stage = upd.NewStage
	if upd.PublicURL != nil {
		f.PublicURL = upd.PublicURL
	}
	r.history = append(r.history, upd)
	return nil
}

type userFinderStub struct {
	users map[int64]*models.User
}

func (u *userFinderStub) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := u.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type pathStub struct{}

func (pathStub) Path(filename string) string { return filepath.Join("/uploads", filename) }

type publisherStub struct {
	published []string
	removed   []string
	failWith  error
}

func (p *publisherStub) Publish(srcPath, filename string) (string, error) {
	if p.failWith != nil {
		return "", p.failWith
	}
	p.published = append(p.published, filename)
	return `\\fileserver\public\` + filename, nil
}

func (p *publisherStub) Remove(filename string) error {
	p.removed = append(p.removed, filename)
	return nil
}

type activityStub struct {
	entries []*models.ActivityLog
}

func (a *activityStub) Create(ctx context.Context, entry *models.ActivityLog) error {
	a.entries = append(a.entries, entry)
	return nil
}

type notifierStub struct {
	events           []FileEvent
	directUsers      [][]models.User
	adminEvents      []FileEvent
	assignmentEvents []FileEvent
}

func (n *notifierStub) DispatchAssignmentEvent(ctx context.Context, assignment *models.Assignment, members []models.AssignmentMember, event FileEvent) {
	event.Assignment = assignment
	n.assignmentEvents = append(n.assignmentEvents, event)
}

func (n *notifierStub) DispatchFileEvent(ctx context.Context, event FileEvent) {
	n.events = append(n.events, event)
}

func (n *notifierStub) DispatchToUsers(ctx context.Context, recipients []models.User, event FileEvent) {
	n.directUsers = append(n.directUsers, recipients)
	n.events = append(n.events, event)
}

func (n *notifierStub) NotifyAdmins(ctx context.Context, event FileEvent) {
	n.adminEvents = append(n.adminEvents, event)
}

var (
	alice = &models.User{ID: 1, Username: "alice", FullName: "Alice", Role: models.RoleUser, Team: "alpha", Email: "alice@example.com", IsActive: true}
	bob   = &models.User{ID: 2, Username: "bob", FullName: "Bob", Role: models.RoleTeamLeader, Team: "alpha", Email: "bob@example.com", IsActive: true}
	carol = &models.User{ID: 3, Username: "carol", FullName: "Carol", Role: models.RoleAdmin, Team: "", Email: "carol@example.com", IsActive: true}
)

func uploadedFile() *models.File {
	return &models.File{
		ID:         7,
		Filename:   "report.pdf",
		StoredName: "stored.pdf",
		UploaderID: alice.ID,
		Team:       "alpha",
		Status:     models.FileStatusUploaded,
		Stage:      models.FileStagePendingTeamLeader,
	}
}

func newReviewService(repo *reviewRepoStub) (*ReviewService, *publisherStub, *activityStub, *notifierStub) {
	users := &userFinderStub{users: map[int64]*models.User{alice.ID: alice, bob.ID: bob, carol.ID: carol}}
	publisher := &publisherStub{}
	activity := &activityStub{}
	notifier := &notifierStub{}
	svc := NewReviewService(repo, users, pathStub{}, publisher, activity, notifier, nil)
	return svc, publisher, activity, notifier
}

func TestReviewFullApprovalFlow(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, publisher, activity, notifier := newReviewService(repo)

	file, err := svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionApprove,
		Comment: "fine by me",
	})
	require.NoError(t, err)
	require.Equal(t, models.FileStatusTeamLeaderApproved, file.Status)
	require.Equal(t, models.FileStagePendingAdmin, file.Stage)

	// First-tier approval reaches the admin pool and nobody else.
	require.Len(t, notifier.adminEvents, 1)
	require.Empty(t, notifier.directUsers)

	file, err = svc.AdminReview(context.Background(), carol, 7, dto.ReviewRequest{
		Action: dto.ReviewActionApprove,
	})
	require.NoError(t, err)
	require.Equal(t, models.FileStatusFinalApproved, file.Status)
	require.Equal(t, models.FileStagePublished, file.Stage)
	require.NotNil(t, file.PublicURL)
	require.Len(t, publisher.published, 1)

	// The uploader learns where the published copy lives.
	require.Len(t, notifier.directUsers, 1)
	require.Equal(t, alice.ID, notifier.directUsers[0][0].ID)
	require.Contains(t, notifier.events[len(notifier.events)-1].Body, `\\fileserver\public\report.pdf`)

	// One history entry per decision, in order, with the stage movement and
	// the deciding actor stamped on.
	require.Len(t, repo.history, 2)
	require.Equal(t, models.FileStatusUploaded, repo.history[0].ExpectedStatus)
	require.Equal(t, models.FileStagePendingTeamLeader, repo.history[0].FromStage)
	require.Equal(t, models.FileStagePendingAdmin, repo.history[0].NewStage)
	require.Equal(t, bob.FullName, repo.history[0].ActorName)
	require.Equal(t, models.FileStatusTeamLeaderApproved, repo.history[1].ExpectedStatus)
	require.Equal(t, models.FileStagePendingAdmin, repo.history[1].FromStage)
	require.Equal(t, carol.FullName, repo.history[1].ActorName)
	require.Len(t, activity.entries, 2)
}

func TestReviewRejectWhitespaceReason(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, _, _, _ := newReviewService(repo)

	_, err := svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionReject,
		Comment: "   ",
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Same rule at the final tier.
	repo.files[7].Status = models.FileStatusTeamLeaderApproved
	repo.files[7].Stage = models.FileStagePendingAdmin
	_, err = svc.AdminReview(context.Background(), carol, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionReject,
		Comment: "\t\n",
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	file, getErr := repo.GetByID(context.Background(), 7)
	require.NoError(t, getErr)
	require.Equal(t, models.FileStatusTeamLeaderApproved, file.Status)
}

func TestReviewRejectionCarriesReasonToUploader(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, _, _, notifier := newReviewService(repo)

	_, err := svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionReject,
		Comment: "wrong format",
	})
	require.NoError(t, err)
	require.Len(t, notifier.directUsers, 1)
	require.Equal(t, alice.ID, notifier.directUsers[0][0].ID)
	require.Contains(t, notifier.events[len(notifier.events)-1].Body, "wrong format")
}

func TestReviewAdminRejectionCarriesReasonToUploader(t *testing.T) {
	file := uploadedFile()
	file.Status = models.FileStatusTeamLeaderApproved
	file.Stage = models.FileStagePendingAdmin
	repo := newReviewRepoStub(file)
	svc, _, _, notifier := newReviewService(repo)

	_, err := svc.AdminReview(context.Background(), carol, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionReject,
		Comment: "missing signature page",
	})
	require.NoError(t, err)
	require.Len(t, notifier.directUsers, 1)
	require.Equal(t, alice.ID, notifier.directUsers[0][0].ID)
	require.Contains(t, notifier.events[len(notifier.events)-1].Body, "missing signature page")
}

func TestReviewRejectRequiresReason(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, _, _, _ := newReviewService(repo)

	_, err := svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action: dto.ReviewActionReject,
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	// File must not have moved.
	file, getErr := repo.GetByID(context.Background(), 7)
	require.NoError(t, getErr)
	require.Equal(t, models.FileStatusUploaded, file.Status)
}

func TestReviewRejectionsAreTerminal(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, _, _, _ := newReviewService(repo)

	_, err := svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionReject,
		Comment: "missing appendix",
	})
	require.NoError(t, err)

	_, err = svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionApprove,
		Comment: "changed my mind",
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)

	_, err = svc.AdminReview(context.Background(), carol, 7, dto.ReviewRequest{Action: dto.ReviewActionApprove})
	appErr = appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestReviewAdminCannotSkipTeamLeader(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, _, _, _ := newReviewService(repo)

	_, err := svc.AdminReview(context.Background(), carol, 7, dto.ReviewRequest{Action: dto.ReviewActionApprove})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestReviewWrongTeamLeaderForbidden(t *testing.T) {
	repo := newReviewRepoStub(uploadedFile())
	svc, _, _, _ := newReviewService(repo)

	otherLeader := &models.User{ID: 9, Role: models.RoleTeamLeader, Team: "beta"}
	_, err := svc.TeamLeaderReview(context.Background(), otherLeader, 7, dto.ReviewRequest{
		Action: dto.ReviewActionApprove,
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestReviewConcurrentDecisionConflicts(t *testing.T) {
	file := uploadedFile()
	repo := newReviewRepoStub(file)
	svc, _, _, _ := newReviewService(repo)

	// Simulate a racing reviewer winning between the load and the update.
	loaded, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, models.FileStatusUploaded, loaded.Status)
	repo.files[7].Status = models.FileStatusRejectedByLeader

	_, err = svc.TeamLeaderReview(context.Background(), bob, 7, dto.ReviewRequest{
		Action:  dto.ReviewActionApprove,
		Comment: "ok",
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestReviewPublishRollbackOnConflict(t *testing.T) {
	file := uploadedFile()
	file.Status = models.FileStatusTeamLeaderApproved
	file.Stage = models.FileStagePendingAdmin
	repo := newReviewRepoStub(file)
	svc, publisher, _, _ := newReviewService(repo)

	// Another admin moves the file after the pre-check; the stub sees the
	// race by flipping the status between GetByID and SubmitReview.
	repoFile := repo.files[7]
	svc.repo = &racingReviewStub{inner: repo, flip: func() {
		repoFile.Status = models.FileStatusRejectedByAdmin
	}}

	_, err := svc.AdminReview(context.Background(), carol, 7, dto.ReviewRequest{Action: dto.ReviewActionApprove})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	// The conflict names the state the winning reviewer left behind.
	require.Contains(t, appErr.Message, "Rejected by admin")
	require.Len(t, publisher.removed, 1)
}

type racingReviewStub struct {
	inner *reviewRepoStub
	flip  func()
	done  bool
}

func (r *racingReviewStub) GetByID(ctx context.Context, id int64) (*models.File, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *racingReviewStub) SubmitReview(ctx context.Context, upd repository.ReviewUpdate) error {
	if !r.done {
		r.done = true
		r.flip()
	}
	return r.inner.SubmitReview(ctx, upd)
}
