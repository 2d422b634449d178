package dto

// Review actions accepted by the review endpoints.
const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)

// ReviewRequest is the decision payload for team leader and admin review.
// A reject decision must carry a non-empty comment.
type ReviewRequest struct {
	Action  string `json:"action" binding:"required" validate:"required,oneof=approve reject"`
	Comment string `json:"comment" validate:"max=2000"`
}
