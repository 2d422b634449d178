package models

import "time"

// Role names used for authorization decisions.
const (
	RoleUser       = "USER"
	RoleTeamLeader = "TEAM_LEADER"
	RoleAdmin      = "ADMIN"
)

// ValidRoles lists every role the API accepts.
var ValidRoles = []string{RoleUser, RoleTeamLeader, RoleAdmin}

// User is an account row. Team groups users under a single team leader.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         string     `db:"role" json:"role"`
	Team         string     `db:"team" json:"team"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// IsTeamLeaderOf reports whether the user leads the given team.
func (u *User) IsTeamLeaderOf(team string) bool {
	return u.Role == RoleTeamLeader && u.Team == team
}

// Pagination carries list paging metadata in response envelopes.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination computes page counts from a total row count.
func NewPagination(page, pageSize int, totalItems int64) *Pagination {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}
