package model

import "time"

// Invite is a capability token granting the ability to join a specific
// session. Possession is authorization, so tokens carry at least 128 bits of
// entropy. MaxUses of 0 means unlimited; a nil ExpiresAt means non-expiring.
type Invite struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	SessionID int64      `json:"session_id"`
	IssuerID  int64      `json:"issuer_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxUses   int        `json:"max_uses"`
	UseCount  int        `json:"use_count"`
	IsRevoked bool       `json:"is_revoked"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the invite admits a join at the given time.
func (i *Invite) Usable(now time.Time) bool {
	if i.IsRevoked {
		return false
	}
	if i.ExpiresAt != nil && !now.Before(*i.ExpiresAt) {
		return false
	}
	return i.MaxUses == 0 || i.UseCount < i.MaxUses
}
