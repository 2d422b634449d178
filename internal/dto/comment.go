package dto

// CreateCommentRequest posts a plain comment on a file.
type CreateCommentRequest struct {
	Body string `json:"body" binding:"required" validate:"required,max=2000"`
}

// CreateAssignmentCommentRequest posts a comment on an assignment; ParentID
// set makes it a reply.
type CreateAssignmentCommentRequest struct {
	Body     string `json:"body" binding:"required" validate:"required,max=2000"`
	ParentID *int64 `json:"parent_id"`
}
