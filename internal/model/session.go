package model

import "time"

const (
	// MinMembers and MaxMembers bound the capacity of a collaborative session.
	MinMembers = 2
	MaxMembers = 50
)

// Session is a collaborative wrapper around a single piece of cloned content.
// A session is ACTIVE until ended; ending is terminal — a new session must be
// created to collaborate on the same content again.
type Session struct {
	ID              int64      `json:"id"`
	ContentID       string     `json:"content_id"`
	Code            string     `json:"code"`
	IsCollaborative bool       `json:"is_collaborative"`
	MaxMembers      int        `json:"max_members"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	return !s.IsCollaborative || s.EndedAt != nil
}
