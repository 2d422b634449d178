package dto

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required" validate:"required,min=3"`
	Password string `json:"password" binding:"required" validate:"required,min=6"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest lets an authenticated user rotate their password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required" validate:"required,min=8"`
}

// ResetPasswordRequest consumes an admin issued reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required" validate:"required,min=8"`
}
