package models

import "time"

// Assignment targeting modes.
const (
	AssignedToAll      = "all"
	AssignedToSpecific = "specific"
)

// Assignment member completion statuses.
const (
	MemberStatusPending   = "pending"
	MemberStatusSubmitted = "submitted"
)

// AssignmentStatusActive is the lifecycle state new assignments start in.
const AssignmentStatusActive = "active"

// Assignment is a work item handed to a team by its leader or an admin.
// Membership is snapshotted at creation time.
type Assignment struct {
	ID               int64      `db:"id" json:"id"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	Team             string     `db:"team" json:"team"`
	AssignedTo       string     `db:"assigned_to" json:"assigned_to"`
	CreatorID        int64      `db:"creator_id" json:"creator_id"`
	FileTypeRequired string     `db:"file_type_required" json:"file_type_required,omitempty"`
	MaxFileSize      int64      `db:"max_file_size" json:"max_file_size,omitempty"`
	Status           string     `db:"status" json:"status"`
	Archived         bool       `db:"archived" json:"archived"`
	DueAt            *time.Time `db:"due_at" json:"due_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`

	CreatorName string             `db:"creator_name" json:"creator_name,omitempty"`
	Members     []AssignmentMember `db:"-" json:"members,omitempty"`
	Submissions []AssignmentSubmission `db:"-" json:"submissions,omitempty"`
}

// AssignmentMember is one user snapshotted onto an assignment. FileID caches
// the member's most recent submission.
type AssignmentMember struct {
	ID           int64      `db:"id" json:"id"`
	AssignmentID int64      `db:"assignment_id" json:"assignment_id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Status       string     `db:"status" json:"status"`
	FileID       *int64     `db:"file_id" json:"file_id,omitempty"`
	SubmittedAt  *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`

	Username string `db:"username" json:"username,omitempty"`
	FullName string `db:"full_name" json:"full_name,omitempty"`
}

// AssignmentSubmission links an uploaded file to an assignment.
type AssignmentSubmission struct {
	ID           int64     `db:"id" json:"id"`
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	FileID       int64     `db:"file_id" json:"file_id"`
	SubmitterID  int64     `db:"submitter_id" json:"submitter_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Filename      string `db:"filename" json:"filename,omitempty"`
	FileStatus    string `db:"file_status" json:"file_status,omitempty"`
	SubmitterName string `db:"submitter_name" json:"submitter_name,omitempty"`
}
