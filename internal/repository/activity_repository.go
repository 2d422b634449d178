package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/teamshare/teamshare-api/internal/models"
)

// ActivityRepository stores the append-only audit trail.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity log entry.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (user_id, action, entity, entity_id, detail, ip_address, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.GetContext(ctx, &entry.ID, query,
		entry.UserID, entry.Action, entry.Entity, entry.EntityID, entry.Detail, entry.IPAddress, entry.CreatedAt); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

// ActivityFilter narrows List results.
type ActivityFilter struct {
	UserID   int64
	Action   string
	Entity   string
	Page     int
	PageSize int
}

// List returns audit entries newest first with a total count.
func (r *ActivityRepository) List(ctx context.Context, filter ActivityFilter) ([]models.ActivityLog, int64, error) {
	baseQuery := `FROM activity_logs l JOIN users u ON u.id = l.user_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID > 0 {
		conditions = append(conditions, fmt.Sprintf("l.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("l.action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.Entity != "" {
		conditions = append(conditions, fmt.Sprintf("l.entity = $%d", len(args)+1))
		args = append(args, filter.Entity)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT l.id, l.user_id, l.action, l.entity, l.entity_id, l.detail, l.ip_address, l.created_at,
	       u.username %s ORDER BY l.created_at DESC, l.id DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)
	var entries []models.ActivityLog
	if err := r.db.SelectContext(ctx, &entries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}

	return entries, total, nil
}
