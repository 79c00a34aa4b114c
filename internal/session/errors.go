package session

import "errors"

var (
	// ErrForbidden means the caller lacks the role the operation requires:
	// a non-owner attempting an owner-only action, or a non-member touching
	// a member-only surface.
	ErrForbidden = errors.New("forbidden")

	// ErrSelfRemoval rejects removeMember(owner, owner): owners leave
	// through the ordinary leave path.
	ErrSelfRemoval = errors.New("cannot remove yourself")
)
