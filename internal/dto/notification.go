package dto

// NotificationListQuery filters the caller's inbox.
type NotificationListQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Page       int  `form:"page,default=1"`
	PageSize   int  `form:"page_size,default=20"`
}
