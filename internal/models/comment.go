package models

import "time"

// Comment action tags. Review decisions produce tagged comments so a file's
// thread doubles as its audit trail.
const (
	CommentActionNone     = ""
	CommentActionApprove  = "approve"
	CommentActionReject   = "reject"
	CommentActionFinalize = "finalize"
)

// FileComment is one entry in a file's discussion and review thread. The
// author's name and role are stamped on the row when it is written.
type FileComment struct {
	ID         int64     `db:"id" json:"id"`
	FileID     int64     `db:"file_id" json:"file_id"`
	AuthorID   int64     `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	AuthorRole string    `db:"author_role" json:"author_role"`
	Body       string    `db:"body" json:"body"`
	Action     string    `db:"action" json:"action,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AssignmentComment is a top level comment on an assignment.
type AssignmentComment struct {
	ID           int64     `db:"id" json:"id"`
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	AuthorID     int64     `db:"author_id" json:"author_id"`
	AuthorName   string    `db:"author_name" json:"author_name"`
	Body         string    `db:"body" json:"body"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Replies []CommentReply `db:"-" json:"replies,omitempty"`
}

// CommentReply is a threaded reply under an assignment comment.
type CommentReply struct {
	ID         int64     `db:"id" json:"id"`
	CommentID  int64     `db:"comment_id" json:"comment_id"`
	AuthorID   int64     `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
