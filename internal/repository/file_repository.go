package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamshare/teamshare-api/internal/models"
)

// FileRepository persists files and their approval trail.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `f.id, f.filename, f.stored_name, f.content_type, f.size_bytes, f.uploader_id, f.uploader_name,
       f.team, f.status, f.stage, f.public_url, f.description, f.assignment_id, f.created_at, f.updated_at`

// Create inserts a new file row and fills in the generated identifier.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	if file.Status == "" {
		file.Status = models.FileStatusUploaded
		file.Stage = models.FileStagePendingTeamLeader
	}

	const query = `INSERT INTO files
	(filename, stored_name, content_type, size_bytes, uploader_id, uploader_name, team, status, stage, description, assignment_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	if err := r.db.GetContext(ctx, &file.ID, query,
		file.Filename, file.StoredName, file.ContentType, file.SizeBytes,
		file.UploaderID, file.UploaderName, file.Team, file.Status, file.Stage,
		file.Description, file.AssignmentID, file.CreatedAt, file.UpdatedAt); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// GetByID fetches a file.
func (r *FileRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.id = $1`
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get file by id: %w", err)
	}
	return &file, nil
}

// FileFilter narrows List results.
type FileFilter struct {
	Status     string
	Stage      string
	Team       string
	UploaderID int64
	Search     string
	Page       int
	PageSize   int
}

// List returns files matching the filter (newest first) with a total count.
func (r *FileRepository) List(ctx context.Context, filter FileFilter) ([]models.File, int64, error) {
	baseQuery := `FROM files f WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("f.stage = $%d", len(args)+1))
		args = append(args, filter.Stage)
	}
	if filter.Team != "" {
		conditions = append(conditions, fmt.Sprintf("f.team = $%d", len(args)+1))
		args = append(args, filter.Team)
	}
	if filter.UploaderID > 0 {
		conditions = append(conditions, fmt.Sprintf("f.uploader_id = $%d", len(args)+1))
		args = append(args, filter.UploaderID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(f.filename) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY f.created_at DESC LIMIT %d OFFSET %d",
		fileColumns, baseQuery, pageSize, offset)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}

	return files, total, nil
}

// ReviewUpdate groups the columns written by a single review decision. The
// status change, history entry and review comment commit atomically.
type ReviewUpdate struct {
	FileID         int64
	ExpectedStatus string
	NewStatus      string
	FromStage      string
	NewStage       string
	ActorID        int64
	ActorName      string
	ActorRole      string
	Comment        string
	CommentAction  string
	PublicURL      *string
	DecidedAt      time.Time
}

// SubmitReview applies a review transition guarded by the expected current
// status. Returns sql.ErrNoRows when the file is missing or already moved on.
func (r *FileRepository) SubmitReview(ctx context.Context, upd ReviewUpdate) error {
	if upd.DecidedAt.IsZero() {
		upd.DecidedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const updateQuery = `UPDATE files SET status = $1, stage = $2, public_url = COALESCE($3, public_url), updated_at = $4
	WHERE id = $5 AND status = $6`
	result, err := tx.ExecContext(ctx, updateQuery,
		upd.NewStatus, upd.NewStage, upd.PublicURL, upd.DecidedAt, upd.FileID, upd.ExpectedStatus)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check file update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	const historyQuery = `INSERT INTO file_status_history
	(file_id, from_status, to_status, from_stage, to_stage, actor_id, actor_name, actor_role, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := tx.ExecContext(ctx, historyQuery,
		upd.FileID, upd.ExpectedStatus, upd.NewStatus, upd.FromStage, upd.NewStage,
		upd.ActorID, upd.ActorName, upd.ActorRole, upd.Comment, upd.DecidedAt); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if upd.Comment != "" || upd.CommentAction != "" {
		const commentQuery = `INSERT INTO file_comments (file_id, author_id, author_name, author_role, body, action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, commentQuery,
			upd.FileID, upd.ActorID, upd.ActorName, upd.ActorRole, upd.Comment, upd.CommentAction, upd.DecidedAt); err != nil {
			return fmt.Errorf("insert review comment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	return nil
}

// ListHistory returns the approval trail for a file, oldest first. The actor
// name was stamped at decision time, so later account changes do not rewrite
// the trail.
func (r *FileRepository) ListHistory(ctx context.Context, fileID int64) ([]models.FileStatusHistory, error) {
	const query = `SELECT h.id, h.file_id, h.from_status, h.to_status, h.from_stage, h.to_stage,
	       h.actor_id, h.actor_name, h.actor_role, h.reason, h.created_at
	FROM file_status_history h
	WHERE h.file_id = $1 ORDER BY h.created_at ASC, h.id ASC`
	var history []models.FileStatusHistory
	if err := r.db.SelectContext(ctx, &history, query, fileID); err != nil {
		return nil, fmt.Errorf("list file history: %w", err)
	}
	return history, nil
}

// HistoryFilter narrows history exports.
type HistoryFilter struct {
	Team string
	From time.Time
	To   time.Time
}

// ListHistoryForExport returns transition rows joined with file and actor
// details, for CSV/PDF rendering.
func (r *FileRepository) ListHistoryForExport(ctx context.Context, filter HistoryFilter) ([]models.FileStatusHistory, error) {
	baseQuery := `SELECT h.id, h.file_id, h.from_status, h.to_status, h.from_stage, h.to_stage,
	       h.actor_id, h.actor_name, h.actor_role, h.reason, h.created_at, f.filename
	FROM file_status_history h
	JOIN files f ON f.id = h.file_id
	WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Team != "" {
		conditions = append(conditions, fmt.Sprintf("f.team = $%d", len(args)+1))
		args = append(args, filter.Team)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("h.created_at >= $%d", len(args)+1))
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("h.created_at <= $%d", len(args)+1))
		args = append(args, filter.To)
	}
	query := baseQuery
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY h.created_at ASC"

	var history []models.FileStatusHistory
	if err := r.db.SelectContext(ctx, &history, query, args...); err != nil {
		return nil, fmt.Errorf("list history for export: %w", err)
	}
	return history, nil
}

// DeleteCascade removes a file together with its comments, history,
// notifications and assignment submissions. Members whose only submission
// pointed at the file flip back to pending.
func (r *FileRepository) DeleteCascade(ctx context.Context, fileID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	type pair struct {
		AssignmentID int64 `db:"assignment_id"`
		SubmitterID  int64 `db:"submitter_id"`
	}
	var pairs []pair
	const deleteSubmissions = `DELETE FROM assignment_submissions WHERE file_id = $1 RETURNING assignment_id, submitter_id`
	if err := tx.SelectContext(ctx, &pairs, deleteSubmissions, fileID); err != nil {
		return fmt.Errorf("delete file submissions: %w", err)
	}

	for _, p := range pairs {
		if err := recomputeMemberSubmission(ctx, tx, p.AssignmentID, p.SubmitterID); err != nil {
			return err
		}
	}

	for _, stmt := range []string{
		`DELETE FROM file_comments WHERE file_id = $1`,
		`DELETE FROM file_status_history WHERE file_id = $1`,
		`DELETE FROM notifications WHERE file_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, fileID); err != nil {
			return fmt.Errorf("delete file dependents: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check file delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}
