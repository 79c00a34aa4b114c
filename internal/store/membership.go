package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/studyhall/internal/model"
)

type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var leftAt sql.NullTime

	err := scanner.Scan(
		&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.IsActive, &m.JoinedAt, &leftAt,
	)
	if err != nil {
		return nil, err
	}

	if leftAt.Valid {
		m.LeftAt = &leftAt.Time
	}
	return &m, nil
}

const membershipCols = `id, session_id, user_id, role, is_active, joined_at, left_at`

// JoinResult reports the outcome of a join.
type JoinResult struct {
	Session    *model.Session
	Membership *model.Membership
	// AlreadyActive is true when the user was an active member before the
	// call, so nothing changed (idempotent re-join).
	AlreadyActive bool
	// Reactivated is true when an inactive row was flipped back to active
	// rather than a new row inserted.
	Reactivated bool
}

// Join admits a user into a session via an invite token. The whole operation
// runs inside one transaction: validate the invite, reuse or insert the
// membership row, enforce capacity, and charge the invite's use count. The
// database pool serializes writers, so two concurrent joins cannot both pass
// the capacity check; a duplicate-key insert from a racing request for the
// same user collapses to success.
func (s *MembershipStore) Join(userID int64, token string) (*JoinResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+inviteCols+` FROM invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}

	now := time.Now().UTC()
	switch {
	case inv.IsRevoked:
		return nil, ErrInviteRevoked
	case inv.ExpiresAt != nil && !now.Before(*inv.ExpiresAt):
		return nil, ErrInviteExpired
	case inv.MaxUses > 0 && inv.UseCount >= inv.MaxUses:
		return nil, ErrInviteExhausted
	}

	row = tx.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, inv.SessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Ended() {
		return nil, ErrSessionEnded
	}

	row = tx.QueryRow(
		`SELECT `+membershipCols+` FROM memberships WHERE session_id = ? AND user_id = ?`,
		sess.ID, userID,
	)
	member, err := scanMembership(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get membership: %w", err)
	}

	var reactivated bool
	switch {
	case member != nil && member.IsActive:
		// Client retries and double-fires must not double-count.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return &JoinResult{Session: sess, Membership: member, AlreadyActive: true}, nil

	case member != nil:
		if _, err := tx.Exec(
			`UPDATE memberships SET is_active = 1, left_at = NULL WHERE id = ?`,
			member.ID,
		); err != nil {
			return nil, fmt.Errorf("reactivate membership: %w", err)
		}
		member.IsActive = true
		member.LeftAt = nil
		reactivated = true

	default:
		var active int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM memberships WHERE session_id = ? AND is_active = 1`,
			sess.ID,
		).Scan(&active); err != nil {
			return nil, fmt.Errorf("count active members: %w", err)
		}
		if active >= sess.MaxMembers {
			return nil, ErrSessionFull
		}

		result, err := tx.Exec(
			`INSERT INTO memberships (session_id, user_id, role) VALUES (?, ?, ?)`,
			sess.ID, userID, model.RoleMember,
		)
		if isUniqueViolation(err) {
			// A concurrent request already admitted this user.
			row = tx.QueryRow(
				`SELECT `+membershipCols+` FROM memberships WHERE session_id = ? AND user_id = ?`,
				sess.ID, userID,
			)
			member, err = scanMembership(row)
			if err != nil {
				return nil, fmt.Errorf("get membership after conflict: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit: %w", err)
			}
			return &JoinResult{Session: sess, Membership: member, AlreadyActive: true}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("insert membership: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		row = tx.QueryRow(`SELECT `+membershipCols+` FROM memberships WHERE id = ?`, id)
		member, err = scanMembership(row)
		if err != nil {
			return nil, fmt.Errorf("read membership: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE invites SET use_count = use_count + 1 WHERE id = ?`, inv.ID); err != nil {
		return nil, fmt.Errorf("increment use count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &JoinResult{Session: sess, Membership: member, Reactivated: reactivated}, nil
}

func (s *MembershipStore) GetMember(sessionID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM memberships WHERE session_id = ? AND user_id = ?`,
		sessionID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// Deactivate flips an active membership inactive and stamps left_at. Returns
// false when the user had no active membership to deactivate.
func (s *MembershipStore) Deactivate(sessionID, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE memberships SET is_active = 0, left_at = datetime('now') WHERE session_id = ? AND user_id = ? AND is_active = 1`,
		sessionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListActive returns the active members of a session ordered by join time,
// joined with the user's display data.
func (s *MembershipStore) ListActive(sessionID int64) ([]model.Member, error) {
	rows, err := s.db.Query(
		`SELECT m.user_id, u.display_name, u.avatar_url, m.role, m.joined_at
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.session_id = ? AND m.is_active = 1
		 ORDER BY m.joined_at ASC, m.id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.AvatarURL, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *MembershipStore) CountActive(sessionID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM memberships WHERE session_id = ? AND is_active = 1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active members: %w", err)
	}
	return count, nil
}
