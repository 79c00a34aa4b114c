package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/studyhall/internal/model"
)

type InviteStore struct {
	db *sql.DB
}

func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var i model.Invite
	var expiresAt sql.NullTime

	err := scanner.Scan(
		&i.ID, &i.Token, &i.SessionID, &i.IssuerID, &expiresAt,
		&i.MaxUses, &i.UseCount, &i.IsRevoked, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		i.ExpiresAt = &expiresAt.Time
	}
	return &i, nil
}

const inviteCols = `id, token, session_id, issuer_id, expires_at, max_uses, use_count, is_revoked, created_at`

// generateToken returns a 32-byte crypto-random token, hex encoded. The token
// is a capability: possession authorizes joining, so it must be unguessable.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateOptions bounds a new invite. Zero MaxUses means unlimited; a zero
// ExpiresIn means the invite never expires.
type CreateOptions struct {
	ExpiresIn time.Duration
	MaxUses   int
}

func (s *InviteStore) Create(sessionID, issuerID int64, opts CreateOptions) (*model.Invite, error) {
	return createInvite(s.db, sessionID, issuerID, opts)
}

// execer covers both *sql.DB and *sql.Tx so invite creation can run inside
// session-creation and reset transactions.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func createInvite(db execer, sessionID, issuerID int64, opts CreateOptions) (*model.Invite, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	var expiresAt sql.NullTime
	if opts.ExpiresIn > 0 {
		expiresAt = sql.NullTime{Time: time.Now().UTC().Add(opts.ExpiresIn), Valid: true}
	}

	result, err := db.Exec(
		`INSERT INTO invites (token, session_id, issuer_id, expires_at, max_uses) VALUES (?, ?, ?, ?, ?)`,
		token, sessionID, issuerID, expiresAt, opts.MaxUses,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := db.QueryRow(`SELECT `+inviteCols+` FROM invites WHERE id = ?`, id)
	return scanInvite(row)
}

func (s *InviteStore) GetByToken(token string) (*model.Invite, error) {
	row := s.db.QueryRow(`SELECT `+inviteCols+` FROM invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

// Revoke marks the invite unusable. Already-admitted members are unaffected.
// Revoking an already-revoked invite is a no-op.
func (s *InviteStore) Revoke(token string) (*model.Invite, error) {
	inv, err := s.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	_, err = s.db.Exec(`UPDATE invites SET is_revoked = 1 WHERE token = ? AND is_revoked = 0`, token)
	if err != nil {
		return nil, fmt.Errorf("revoke invite: %w", err)
	}
	inv.IsRevoked = true
	return inv, nil
}

// Reset atomically revokes every outstanding invite for the session and issues
// one fresh unlimited-use, non-expiring token. Used to rotate a leaked link.
func (s *InviteStore) Reset(sessionID, issuerID int64) (*model.Invite, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE invites SET is_revoked = 1 WHERE session_id = ? AND is_revoked = 0`,
		sessionID,
	); err != nil {
		return nil, fmt.Errorf("revoke invites: %w", err)
	}

	inv, err := createInvite(tx, sessionID, issuerID, CreateOptions{})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListForSession(sessionID int64) ([]model.Invite, error) {
	rows, err := s.db.Query(
		`SELECT `+inviteCols+` FROM invites WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []model.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// RevokeExpired flags long-expired invites as revoked so cleanup sweeps can
// report on them. Rows are never deleted; the table is the audit history.
func (s *InviteStore) RevokeExpired() (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invites SET is_revoked = 1 WHERE is_revoked = 0 AND expires_at IS NOT NULL AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke expired invites: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
