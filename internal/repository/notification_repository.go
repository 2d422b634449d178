package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamshare/teamshare-api/internal/models"
)

// NotificationRepository persists per-recipient inbox entries.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateBatch inserts one notification row per recipient in a single
// transaction. A nil or empty batch is a no-op.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO notifications
	(recipient_id, actor_id, actor_name, actor_role, type, title, body, file_id, assignment_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	now := time.Now().UTC()
	for i := range notifications {
		n := &notifications[i]
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, query,
			n.RecipientID, n.ActorID, n.ActorName, n.ActorRole, n.Type, n.Title, n.Body,
			n.FileID, n.AssignmentID, n.CreatedAt); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification tx: %w", err)
	}
	return nil
}

// ListByRecipient returns inbox entries newest first with a total count.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID int64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	baseQuery := `FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		baseQuery += ` AND read_at IS NULL`
	}

	listQuery := fmt.Sprintf(`SELECT id, recipient_id, actor_id, actor_name, actor_role, type, title, body, file_id, assignment_id, read_at, created_at %s
	ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, listQuery, recipientID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, recipientID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	return notifications, total, nil
}

// CountUnread returns the number of unread entries for a recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read_at IS NULL`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead stamps read_at once. Repeated calls keep the original timestamp.
// Returns sql.ErrNoRows when the entry does not belong to the recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID int64, now time.Time) error {
	const query = `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND recipient_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, recipientID, now)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check mark read rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead stamps every unread entry of a recipient.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID int64, now time.Time) (int64, error) {
	const query = `UPDATE notifications SET read_at = $2 WHERE recipient_id = $1 AND read_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, recipientID, now)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check mark all read rows: %w", err)
	}
	return rows, nil
}

// Delete removes one entry owned by the recipient.
func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID int64) error {
	const query = `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAll clears a recipient's inbox.
func (r *NotificationRepository) DeleteAll(ctx context.Context, recipientID int64) (int64, error) {
	const query = `DELETE FROM notifications WHERE recipient_id = $1`
	result, err := r.db.ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, fmt.Errorf("delete all notifications: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check delete all rows: %w", err)
	}
	return rows, nil
}
