package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamshare/teamshare-api/internal/models"
)

// CommentRepository persists file comments and assignment discussion threads.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// CreateFileComment inserts a plain comment on a file.
func (r *CommentRepository) CreateFileComment(ctx context.Context, comment *models.FileComment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO file_comments (file_id, author_id, author_name, author_role, body, action, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.GetContext(ctx, &comment.ID, query,
		comment.FileID, comment.AuthorID, comment.AuthorName, comment.AuthorRole,
		comment.Body, comment.Action, comment.CreatedAt); err != nil {
		return fmt.Errorf("create file comment: %w", err)
	}
	return nil
}

// ListFileComments returns a file's thread oldest first. Author details come
// from the stamped columns, not the live user row.
func (r *CommentRepository) ListFileComments(ctx context.Context, fileID int64) ([]models.FileComment, error) {
	const query = `SELECT c.id, c.file_id, c.author_id, c.author_name, c.author_role, c.body, c.action, c.created_at
	FROM file_comments c
	WHERE c.file_id = $1 ORDER BY c.created_at ASC, c.id ASC`
	var comments []models.FileComment
	if err := r.db.SelectContext(ctx, &comments, query, fileID); err != nil {
		return nil, fmt.Errorf("list file comments: %w", err)
	}
	return comments, nil
}

// CreateAssignmentComment inserts a top level assignment comment.
func (r *CommentRepository) CreateAssignmentComment(ctx context.Context, comment *models.AssignmentComment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_comments (assignment_id, author_id, author_name, body, created_at)
	VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &comment.ID, query,
		comment.AssignmentID, comment.AuthorID, comment.AuthorName, comment.Body, comment.CreatedAt); err != nil {
		return fmt.Errorf("create assignment comment: %w", err)
	}
	return nil
}

// CreateReply inserts a reply under an existing assignment comment.
func (r *CommentRepository) CreateReply(ctx context.Context, reply *models.CommentReply) error {
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_comment_replies (comment_id, author_id, author_name, body, created_at)
	VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &reply.ID, query,
		reply.CommentID, reply.AuthorID, reply.AuthorName, reply.Body, reply.CreatedAt); err != nil {
		return fmt.Errorf("create comment reply: %w", err)
	}
	return nil
}

// GetAssignmentComment fetches one top level comment.
func (r *CommentRepository) GetAssignmentComment(ctx context.Context, id int64) (*models.AssignmentComment, error) {
	const query = `SELECT id, assignment_id, author_id, author_name, body, created_at FROM assignment_comments WHERE id = $1`
	var comment models.AssignmentComment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get assignment comment: %w", err)
	}
	return &comment, nil
}

// ListAssignmentComments returns an assignment's thread with nested replies.
func (r *CommentRepository) ListAssignmentComments(ctx context.Context, assignmentID int64) ([]models.AssignmentComment, error) {
	const commentQuery = `SELECT c.id, c.assignment_id, c.author_id, c.author_name, c.body, c.created_at
	FROM assignment_comments c
	WHERE c.assignment_id = $1 ORDER BY c.created_at ASC, c.id ASC`
	var comments []models.AssignmentComment
	if err := r.db.SelectContext(ctx, &comments, commentQuery, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment comments: %w", err)
	}
	if len(comments) == 0 {
		return comments, nil
	}

	const replyQuery = `SELECT r.id, r.comment_id, r.author_id, r.author_name, r.body, r.created_at
	FROM assignment_comment_replies r
	JOIN assignment_comments c ON c.id = r.comment_id
	WHERE c.assignment_id = $1 ORDER BY r.created_at ASC, r.id ASC`
	var replies []models.CommentReply
	if err := r.db.SelectContext(ctx, &replies, replyQuery, assignmentID); err != nil {
		return nil, fmt.Errorf("list comment replies: %w", err)
	}

	byComment := make(map[int64][]models.CommentReply, len(comments))
	for _, reply := range replies {
		byComment[reply.CommentID] = append(byComment[reply.CommentID], reply)
	}
	for i := range comments {
		comments[i].Replies = byComment[comments[i].ID]
	}
	return comments, nil
}
