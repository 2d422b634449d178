package models

import "time"

// Notification types.
const (
	NotificationComment       = "comment"
	NotificationApproval      = "approval"
	NotificationRejection     = "rejection"
	NotificationFinalApproval = "final_approval"
	NotificationSubmission    = "submission"
	NotificationAssignment    = "assignment"
	NotificationPasswordReset = "password_reset_complete"
)

// Notification is a per-recipient inbox entry. The actor's name and role are
// stamped at dispatch time.
type Notification struct {
	ID           int64      `db:"id" json:"id"`
	RecipientID  int64      `db:"recipient_id" json:"recipient_id"`
	ActorID      *int64     `db:"actor_id" json:"actor_id,omitempty"`
	ActorName    string     `db:"actor_name" json:"actor_name,omitempty"`
	ActorRole    string     `db:"actor_role" json:"actor_role,omitempty"`
	Type         string     `db:"type" json:"type"`
	Title        string     `db:"title" json:"title"`
	Body         string     `db:"body" json:"body"`
	FileID       *int64     `db:"file_id" json:"file_id,omitempty"`
	AssignmentID *int64     `db:"assignment_id" json:"assignment_id,omitempty"`
	ReadAt       *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// IsRead reports whether the recipient has seen the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
