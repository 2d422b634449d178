package dto

import "time"

// CreateAssignmentRequest creates an assignment for a team. MemberIDs is
// required when AssignedTo is "specific" and ignored for "all".
type CreateAssignmentRequest struct {
	Title            string     `json:"title" binding:"required" validate:"required,max=200"`
	Description      string     `json:"description" validate:"max=4000"`
	Team             string     `json:"team" validate:"omitempty,max=64"`
	AssignedTo       string     `json:"assigned_to" binding:"required" validate:"required,oneof=all specific"`
	MemberIDs        []int64    `json:"member_ids"`
	FileTypeRequired string     `json:"file_type_required" validate:"omitempty,max=16"`
	MaxFileSize      int64      `json:"max_file_size" validate:"omitempty,min=0"`
	DueAt            *time.Time `json:"due_at"`
}

// SubmitFileRequest attaches an already uploaded file to an assignment.
type SubmitFileRequest struct {
	FileID int64 `json:"file_id" binding:"required"`
}

// AssignmentListQuery filters GET /assignments.
type AssignmentListQuery struct {
	Team     string `form:"team"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}
