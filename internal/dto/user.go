package dto

// CreateUserRequest registers a new account. Admin only.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required" validate:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required,min=8"`
	FullName string `json:"full_name" binding:"required" validate:"required"`
	Role     string `json:"role" binding:"required" validate:"required,oneof=USER TEAM_LEADER ADMIN"`
	Team     string `json:"team" validate:"omitempty,max=64"`
}

// UpdateUserRequest patches mutable account fields.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role" validate:"omitempty,oneof=USER TEAM_LEADER ADMIN"`
	Team     *string `json:"team"`
	IsActive *bool   `json:"is_active"`
}

// UserListQuery filters GET /users.
type UserListQuery struct {
	Team     string `form:"team"`
	Role     string `form:"role"`
	Search   string `form:"search"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}
