package store

import (
	"errors"
	"strings"
)

// Store-level failures surfaced to callers. Handlers map these onto HTTP
// status codes; everything else coming out of a store is an internal error.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session ended")
	ErrSessionFull     = errors.New("session full")

	ErrInviteNotFound  = errors.New("invite not found")
	ErrInviteExpired   = errors.New("invite expired")
	ErrInviteRevoked   = errors.New("invite revoked")
	ErrInviteExhausted = errors.New("invite exhausted")

	ErrNotMember = errors.New("not a member")
)

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
// The driver wraps these without a typed error, so match on the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
