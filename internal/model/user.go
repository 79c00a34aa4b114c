package model

import "time"

// User holds the minimal display data this subsystem keeps about a user.
// Identity issuance happens elsewhere; rows here are upserted from verified
// credentials the first time a user touches a session.
type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
