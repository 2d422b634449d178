package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamshare/teamshare-api/internal/models"
)

// AssignmentRepository persists assignments, snapshotted members and file
// submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// CreateWithMembers inserts an assignment and its member snapshot atomically.
func (r *AssignmentRepository) CreateWithMembers(ctx context.Context, assignment *models.Assignment, memberIDs []int64) error {
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusActive
	}

	const insertAssignment = `INSERT INTO assignments
	(title, description, team, assigned_to, creator_id, file_type_required, max_file_size, status, archived, due_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	if err := tx.GetContext(ctx, &assignment.ID, insertAssignment,
		assignment.Title, assignment.Description, assignment.Team, assignment.AssignedTo,
		assignment.CreatorID, assignment.FileTypeRequired, assignment.MaxFileSize,
		assignment.Status, assignment.Archived, assignment.DueAt, assignment.CreatedAt, assignment.UpdatedAt); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	const insertMember = `INSERT INTO assignment_members (assignment_id, user_id, status) VALUES ($1, $2, $3)`
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, insertMember, assignment.ID, userID, models.MemberStatusPending); err != nil {
			return fmt.Errorf("snapshot assignment member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment tx: %w", err)
	}
	return nil
}

// GetByID fetches an assignment with its creator name.
func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*models.Assignment, error) {
	const query = `SELECT a.id, a.title, a.description, a.team, a.assigned_to, a.creator_id,
	       a.file_type_required, a.max_file_size, a.status, a.archived, a.due_at, a.created_at, a.updated_at,
	       u.full_name AS creator_name
	FROM assignments a JOIN users u ON u.id = a.creator_id WHERE a.id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get assignment by id: %w", err)
	}
	return &assignment, nil
}

// List returns assignments for a team (or all teams when team is empty),
// newest first, with a total count.
func (r *AssignmentRepository) List(ctx context.Context, team string, page, pageSize int) ([]models.Assignment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	baseQuery := `FROM assignments a JOIN users u ON u.id = a.creator_id`
	var args []interface{}
	if team != "" {
		baseQuery += ` WHERE a.team = $1`
		args = append(args, team)
	}

	listQuery := fmt.Sprintf(`SELECT a.id, a.title, a.description, a.team, a.assigned_to, a.creator_id,
	       a.file_type_required, a.max_file_size, a.status, a.archived, a.due_at, a.created_at, a.updated_at,
	       u.full_name AS creator_name %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return assignments, total, nil
}

// ListMembers returns the member snapshot with user details.
func (r *AssignmentRepository) ListMembers(ctx context.Context, assignmentID int64) ([]models.AssignmentMember, error) {
	const query = `SELECT m.id, m.assignment_id, m.user_id, m.status, m.file_id, m.submitted_at,
	       u.username, u.full_name
	FROM assignment_members m JOIN users u ON u.id = m.user_id
	WHERE m.assignment_id = $1 ORDER BY u.full_name ASC`
	var members []models.AssignmentMember
	if err := r.db.SelectContext(ctx, &members, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment members: %w", err)
	}
	return members, nil
}

// IsMember reports whether the user is in the assignment's snapshot.
func (r *AssignmentRepository) IsMember(ctx context.Context, assignmentID, userID int64) (bool, error) {
	const query = `SELECT COUNT(*) FROM assignment_members WHERE assignment_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assignmentID, userID); err != nil {
		return false, fmt.Errorf("check assignment membership: %w", err)
	}
	return count > 0, nil
}

// CreateSubmission links a file to an assignment and flips the member to
// submitted. Returns sql.ErrNoRows when the same file was already submitted.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuery = `INSERT INTO assignment_submissions (assignment_id, file_id, submitter_id, created_at)
	VALUES ($1, $2, $3, $4) ON CONFLICT (assignment_id, file_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, insertQuery,
		submission.AssignmentID, submission.FileID, submission.SubmitterID, submission.CreatedAt)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	// The snapshot row caches the newest submission, last write wins.
	const flipQuery = `UPDATE assignment_members SET status = $1, file_id = $2, submitted_at = $3
	WHERE assignment_id = $4 AND user_id = $5`
	if _, err := tx.ExecContext(ctx, flipQuery,
		models.MemberStatusSubmitted, submission.FileID, submission.CreatedAt,
		submission.AssignmentID, submission.SubmitterID); err != nil {
		return fmt.Errorf("flip member status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission tx: %w", err)
	}
	return nil
}

// GetSubmission fetches one submission row.
func (r *AssignmentRepository) GetSubmission(ctx context.Context, id int64) (*models.AssignmentSubmission, error) {
	const query = `SELECT id, assignment_id, file_id, submitter_id, created_at FROM assignment_submissions WHERE id = $1`
	var submission models.AssignmentSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &submission, nil
}

// DeleteSubmission removes a submission and flips the member back to pending
// when no other submission of theirs remains on the assignment.
func (r *AssignmentRepository) DeleteSubmission(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted models.AssignmentSubmission
	const deleteQuery = `DELETE FROM assignment_submissions WHERE id = $1 RETURNING id, assignment_id, file_id, submitter_id, created_at`
	if err := tx.GetContext(ctx, &deleted, deleteQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("delete submission: %w", err)
	}

	if err := recomputeMemberSubmission(ctx, tx, deleted.AssignmentID, deleted.SubmitterID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission delete tx: %w", err)
	}
	return nil
}

// recomputeMemberSubmission repoints the snapshot row at the member's most
// recent remaining submission, or resets it to pending when none remain.
func recomputeMemberSubmission(ctx context.Context, tx *sqlx.Tx, assignmentID, userID int64) error {
	const repoint = `UPDATE assignment_members SET status = $3, file_id = latest.file_id, submitted_at = latest.created_at
	FROM (SELECT file_id, created_at FROM assignment_submissions
	      WHERE assignment_id = $1 AND submitter_id = $2
	      ORDER BY created_at DESC, id DESC LIMIT 1) AS latest
	WHERE assignment_members.assignment_id = $1 AND assignment_members.user_id = $2`
	if _, err := tx.ExecContext(ctx, repoint, assignmentID, userID, models.MemberStatusSubmitted); err != nil {
		return fmt.Errorf("repoint member submission: %w", err)
	}

	const reset = `UPDATE assignment_members SET status = $3, file_id = NULL, submitted_at = NULL
	WHERE assignment_id = $1 AND user_id = $2
	AND NOT EXISTS (SELECT 1 FROM assignment_submissions s WHERE s.assignment_id = $1 AND s.submitter_id = $2)`
	if _, err := tx.ExecContext(ctx, reset, assignmentID, userID, models.MemberStatusPending); err != nil {
		return fmt.Errorf("reset member submission: %w", err)
	}
	return nil
}

// ListSubmissions returns an assignment's submissions with file details.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID int64) ([]models.AssignmentSubmission, error) {
	const query = `SELECT s.id, s.assignment_id, s.file_id, s.submitter_id, s.created_at,
	       f.filename, f.status AS file_status, u.full_name AS submitter_name
	FROM assignment_submissions s
	JOIN files f ON f.id = s.file_id
	JOIN users u ON u.id = s.submitter_id
	WHERE s.assignment_id = $1 ORDER BY s.created_at DESC`
	var submissions []models.AssignmentSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// DeleteCascade removes an assignment with its members, submissions and
// discussion thread. Submitted files themselves are kept.
func (r *AssignmentRepository) DeleteCascade(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM assignment_comment_replies WHERE comment_id IN (SELECT id FROM assignment_comments WHERE assignment_id = $1)`,
		`DELETE FROM assignment_comments WHERE assignment_id = $1`,
		`DELETE FROM assignment_submissions WHERE assignment_id = $1`,
		`DELETE FROM assignment_members WHERE assignment_id = $1`,
		`UPDATE files SET assignment_id = NULL WHERE assignment_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete assignment dependents: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check assignment delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment delete tx: %w", err)
	}
	return nil
}
