package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teamshare/teamshare-api/internal/dto"
	"github.com/teamshare/teamshare-api/internal/models"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
)

type commentStoreStub struct {
	fileComments       map[int64][]models.FileComment
	assignmentComments map[int64]*models.AssignmentComment
	replies            []models.CommentReply
	nextID             int64
}

func newCommentStoreStub() *commentStoreStub {
	return &commentStoreStub{
		fileComments:       make(map[int64][]models.FileComment),
		assignmentComments: make(map[int64]*models.AssignmentComment),
	}
}

func (s *commentStoreStub) CreateFileComment(ctx context.Context, comment *models.FileComment) error {
	s.nextID++
	comment.ID = s.nextID
	s.fileComments[comment.FileID] = append(s.fileComments[comment.FileID], *comment)
	return nil
}

func (s *commentStoreStub) ListFileComments(ctx context.Context, fileID int64) ([]models.FileComment, error) {
	return s.fileComments[fileID], nil
}

func (s *commentStoreStub) CreateAssignmentComment(ctx context.Context, comment *models.AssignmentComment) error {
	s.nextID++
	comment.ID = s.nextID
	copy := *comment
	s.assignmentComments[comment.ID] = &copy
	return nil
}

func (s *commentStoreStub) CreateReply(ctx context.Context, reply *models.CommentReply) error {
	s.nextID++
	reply.ID = s.nextID
	s.replies = append(s.replies, *reply)
	return nil
}

func (s *commentStoreStub) GetAssignmentComment(ctx context.Context, id int64) (*models.AssignmentComment, error) {
	if c, ok := s.assignmentComments[id]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *commentStoreStub) ListAssignmentComments(ctx context.Context, assignmentID int64) ([]models.AssignmentComment, error) {
	var out []models.AssignmentComment
	for _, c := range s.assignmentComments {
		if c.AssignmentID == assignmentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type commentAssignmentStub struct {
	assignments map[int64]*models.Assignment
}

func (s *commentAssignmentStub) GetByID(ctx context.Context, id int64) (*models.Assignment, error) {
	if a, ok := s.assignments[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *commentAssignmentStub) ListMembers(ctx context.Context, assignmentID int64) ([]models.AssignmentMember, error) {
	if _, ok := s.assignments[assignmentID]; !ok {
		return nil, sql.ErrNoRows
	}
	return []models.AssignmentMember{
		{AssignmentID: assignmentID, UserID: alice.ID, Status: models.MemberStatusPending},
		{AssignmentID: assignmentID, UserID: dave.ID, Status: models.MemberStatusPending},
	}, nil
}

func newCommentService() (*CommentService, *commentStoreStub, *notifierStub) {
	store := newCommentStoreStub()
	files := &submissionFileStub{files: map[int64]*models.File{
		7: {ID: 7, Filename: "report.pdf", UploaderID: alice.ID, Team: "alpha", Status: models.FileStatusUploaded},
	}}
	assignments := &commentAssignmentStub{assignments: map[int64]*models.Assignment{
		3: {ID: 3, Title: "Weekly report", Team: "alpha", CreatorID: bob.ID},
	}}
	notifier := &notifierStub{}
	svc := NewCommentService(store, files, assignments, &activityStub{}, notifier, nil)
	return svc, store, notifier
}

func TestAddFileCommentNotifies(t *testing.T) {
	svc, store, notifier := newCommentService()

	comment, err := svc.AddFileComment(context.Background(), bob, 7, dto.CreateCommentRequest{Body: "looks close"})
	require.NoError(t, err)
	require.Equal(t, models.CommentActionNone, comment.Action)
	require.Equal(t, bob.FullName, comment.AuthorName)
	require.Len(t, store.fileComments[7], 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, models.NotificationComment, notifier.events[0].Type)
}

func TestAddFileCommentHiddenFile(t *testing.T) {
	svc, _, _ := newCommentService()

	outsider := &models.User{ID: 50, Role: models.RoleUser, Team: "beta"}
	_, err := svc.AddFileComment(context.Background(), outsider, 7, dto.CreateCommentRequest{Body: "hi"})
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCommentThread(t *testing.T) {
	svc, store, notifier := newCommentService()

	top, err := svc.AddAssignmentComment(context.Background(), alice, 3, dto.CreateAssignmentCommentRequest{Body: "when is this due?"})
	require.NoError(t, err)
	require.NotZero(t, top.ID)

	parent, err := svc.AddAssignmentComment(context.Background(), bob, 3, dto.CreateAssignmentCommentRequest{
		Body:     "end of the week",
		ParentID: &top.ID,
	})
	require.NoError(t, err)
	require.Equal(t, top.ID, parent.ID)
	require.Len(t, parent.Replies, 1)
	require.Equal(t, bob.ID, parent.Replies[0].AuthorID)
	require.Len(t, store.replies, 1)

	require.Len(t, notifier.assignmentEvents, 2)
	require.Equal(t, models.NotificationComment, notifier.assignmentEvents[0].Type)
	require.Equal(t, int64(3), notifier.assignmentEvents[1].Assignment.ID)
}

func TestAssignmentReplyWrongThread(t *testing.T) {
	svc, store, _ := newCommentService()

	stray := &models.AssignmentComment{AssignmentID: 99, AuthorID: alice.ID, Body: "elsewhere"}
	require.NoError(t, store.CreateAssignmentComment(context.Background(), stray))

	_, err := svc.AddAssignmentComment(context.Background(), bob, 3, dto.CreateAssignmentCommentRequest{
		Body:     "reply",
		ParentID: &stray.ID,
	})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCommentOutsideTeam(t *testing.T) {
	svc, _, _ := newCommentService()

	outsider := &models.User{ID: 50, Role: models.RoleUser, Team: "beta"}
	_, err := svc.AddAssignmentComment(context.Background(), outsider, 3, dto.CreateAssignmentCommentRequest{Body: "hi"})
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ListAssignmentComments(context.Background(), outsider, 3)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
