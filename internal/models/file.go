package models

import "time"

// File approval statuses. A file moves uploaded -> team_leader_approved ->
// final_approved, or into one of the two terminal rejection states.
const (
	FileStatusUploaded           = "uploaded"
	FileStatusTeamLeaderApproved = "team_leader_approved"
	FileStatusFinalApproved      = "final_approved"
	FileStatusRejectedByLeader   = "rejected_by_team_leader"
	FileStatusRejectedByAdmin    = "rejected_by_admin"
)

// Workflow stages paired with the statuses above.
const (
	FileStagePendingTeamLeader = "pending_team_leader"
	FileStagePendingAdmin      = "pending_admin"
	FileStagePublished         = "published_to_public"
	FileStageRejectedByLeader  = "rejected_by_team_leader"
	FileStageRejectedByAdmin   = "rejected_by_admin"
)

// File is an uploaded document moving through the two-tier approval flow.
// The uploader's name and team are stamped on the row at upload time.
type File struct {
	ID           int64     `db:"id" json:"id"`
	Filename     string    `db:"filename" json:"filename"`
	StoredName   string    `db:"stored_name" json:"-"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploaderID   int64     `db:"uploader_id" json:"uploader_id"`
	UploaderName string    `db:"uploader_name" json:"uploader_name"`
	Team         string    `db:"team" json:"team"`
	Status       string    `db:"status" json:"status"`
	Stage        string    `db:"stage" json:"stage"`
	PublicURL    *string   `db:"public_url" json:"public_url,omitempty"`
	Description  string    `db:"description" json:"description"`
	AssignmentID *int64    `db:"assignment_id" json:"assignment_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	StatusLabel string `db:"-" json:"status_label,omitempty"`
}

// IsTerminal reports whether no further review transitions are allowed.
func (f *File) IsTerminal() bool {
	switch f.Status {
	case FileStatusFinalApproved, FileStatusRejectedByLeader, FileStatusRejectedByAdmin:
		return true
	}
	return false
}

// StageForStatus maps an approval status to its workflow stage.
func StageForStatus(status string) string {
	switch status {
	case FileStatusUploaded:
		return FileStagePendingTeamLeader
	case FileStatusTeamLeaderApproved:
		return FileStagePendingAdmin
	case FileStatusFinalApproved:
		return FileStagePublished
	case FileStatusRejectedByLeader:
		return FileStageRejectedByLeader
	case FileStatusRejectedByAdmin:
		return FileStageRejectedByAdmin
	}
	return ""
}

// StatusLabel renders the human readable badge for a status/stage pair.
func StatusLabel(status, stage string) string {
	switch status {
	case FileStatusUploaded:
		return "Waiting for team leader review"
	case FileStatusTeamLeaderApproved:
		return "Waiting for admin review"
	case FileStatusFinalApproved:
		if stage == FileStagePublished {
			return "Approved and published"
		}
		return "Approved"
	case FileStatusRejectedByLeader:
		return "Rejected by team leader"
	case FileStatusRejectedByAdmin:
		return "Rejected by admin"
	}
	return "Unknown"
}
