package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/studyhall/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, display_name, avatar_url, created_at`

// Upsert records the display data carried in a verified credential. Identity
// issuance happens outside this service, so the caller-supplied id is trusted.
func (s *UserStore) Upsert(id int64, displayName, avatarURL string) (*model.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (id, display_name, avatar_url) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, avatar_url = excluded.avatar_url`,
		id, displayName, avatarURL,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
