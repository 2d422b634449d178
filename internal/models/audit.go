package models

import "time"

// Activity log actions.
const (
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionUpload         = "UPLOAD_FILE"
	ActionDeleteFile     = "DELETE_FILE"
	ActionReviewApprove  = "REVIEW_APPROVE"
	ActionReviewReject   = "REVIEW_REJECT"
	ActionFinalApprove   = "FINAL_APPROVE"
	ActionFinalReject    = "FINAL_REJECT"
	ActionComment        = "COMMENT"
	ActionCreateUser     = "CREATE_USER"
	ActionUpdateUser     = "UPDATE_USER"
	ActionDeleteUser     = "DELETE_USER"
	ActionCreateTask     = "CREATE_ASSIGNMENT"
	ActionDeleteTask     = "DELETE_ASSIGNMENT"
	ActionSubmitFile     = "SUBMIT_FILE"
	ActionRemoveSubmit   = "REMOVE_SUBMISSION"
	ActionPasswordReset  = "PASSWORD_RESET"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionReindex        = "REINDEX_PUBLIC_SHARE"
	ActionExportHistory  = "EXPORT_HISTORY"
)

// ActivityLog is an append-only audit record of a user action.
type ActivityLog struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	Detail    string    `db:"detail" json:"detail"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Username string `db:"username" json:"username,omitempty"`
}
