package model

import "time"

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Membership is the durable relationship between one user and one session.
// At most one row exists per (session_id, user_id) pair; leaving deactivates
// the row rather than deleting it, so rejoining reactivates the same row.
type Membership struct {
	ID        int64      `json:"id"`
	SessionID int64      `json:"session_id"`
	UserID    int64      `json:"user_id"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"is_active"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
}

// Member is a membership row joined with the user's display data, as returned
// by member listings.
type Member struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}
