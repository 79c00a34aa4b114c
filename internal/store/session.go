package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"

	"github.com/dukerupert/studyhall/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var endedAt sql.NullTime

	err := scanner.Scan(
		&s.ID, &s.ContentID, &s.Code, &s.IsCollaborative, &s.MaxMembers, &endedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return &s, nil
}

const sessionCols = `id, content_id, code, is_collaborative, max_members, ended_at, created_at`

// codeAlphabet omits easily confused characters (0/O, 1/I/L).
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// generateCode returns a 6-character human-shareable session code.
func generateCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// CreateCollaborative creates a session, its OWNER membership, and one
// unlimited-use invite in a single transaction. The three rows either all
// exist or none do.
func (s *SessionStore) CreateCollaborative(contentID string, ownerID int64, maxMembers int) (*model.Session, *model.Invite, error) {
	if maxMembers < model.MinMembers || maxMembers > model.MaxMembers {
		return nil, nil, fmt.Errorf("max members %d out of range [%d, %d]", maxMembers, model.MinMembers, model.MaxMembers)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var sessionID int64
	// Session codes collide rarely; retry a few times on the unique constraint.
	for attempt := 0; ; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, nil, err
		}
		result, err := tx.Exec(
			`INSERT INTO sessions (content_id, code, max_members) VALUES (?, ?, ?)`,
			contentID, code, maxMembers,
		)
		if err == nil {
			sessionID, err = result.LastInsertId()
			if err != nil {
				return nil, nil, fmt.Errorf("last insert id: %w", err)
			}
			break
		}
		if attempt >= 4 || !isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("insert session: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO memberships (session_id, user_id, role) VALUES (?, ?, ?)`,
		sessionID, ownerID, model.RoleOwner,
	); err != nil {
		return nil, nil, fmt.Errorf("insert owner membership: %w", err)
	}

	inv, err := createInvite(tx, sessionID, ownerID, CreateOptions{})
	if err != nil {
		return nil, nil, err
	}

	row := tx.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err != nil {
		return nil, nil, fmt.Errorf("read session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return sess, inv, nil
}

func (s *SessionStore) GetByID(id int64) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) GetByCode(code string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE code = ?`, code)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by code: %w", err)
	}
	return sess, nil
}

// End deactivates every active membership, revokes every outstanding invite,
// and flips the session terminal, all in one transaction. Each statement is a
// no-op on rows already in the ended state, so a second call reports success
// without changing anything.
func (s *SessionStore) End(sessionID int64) (*model.Session, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE memberships SET is_active = 0, left_at = datetime('now') WHERE session_id = ? AND is_active = 1`,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("deactivate memberships: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE invites SET is_revoked = 1 WHERE session_id = ? AND is_revoked = 0`,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("revoke invites: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET is_collaborative = 0, ended_at = COALESCE(ended_at, datetime('now')) WHERE id = ?`,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	row := tx.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}
