package dto

// UploadFileRequest carries multipart form fields alongside the file part.
type UploadFileRequest struct {
	Description  string `form:"description" validate:"max=2000"`
	AssignmentID *int64 `form:"assignment_id"`
}

// FileListQuery filters GET /files. Visibility is further narrowed by the
// caller's role inside the service.
type FileListQuery struct {
	Status   string `form:"status"`
	Stage    string `form:"stage"`
	Team     string `form:"team"`
	Uploader int64  `form:"uploader_id"`
	Search   string `form:"search"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}
