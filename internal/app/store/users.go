package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"agrichat/internal/app/user"
)

// Account is the internal representation of a stored user, including
// credential material that must never leave the server.
type Account struct {
	user.User
	PasswordHash string
	LastLoginAt  *time.Time
}

// NewUserParams carries the fields required to create an account.
type NewUserParams struct {
	Username     string
	PasswordHash string
	DisplayName  string
	Role         string
}

// CreateUser inserts a new account and returns its public profile.
// A username conflict surfaces as the raw pgx unique-violation error so the
// caller can distinguish it via db.IsUniqueViolation.
func (s *Store) CreateUser(ctx context.Context, p NewUserParams) (user.User, error) {
	var id pgtype.UUID

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Username, p.PasswordHash, p.DisplayName, p.Role,
	).Scan(&id)
	if err != nil {
		return user.User{}, err
	}

	return user.User{
		ID:          id.String(),
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Role:        p.Role,
	}, nil
}

// GetUserByID fetches the public profile for the given user id.
// Returns ErrNotFound if the id is malformed or no such account exists.
func (s *Store) GetUserByID(ctx context.Context, id string) (user.User, error) {
	userUUID, err := parseUUID(id)
	if err != nil {
		return user.User{}, err
	}

	var (
		uid                 pgtype.UUID
		username            string
		displayName, avatar pgtype.Text
		role                string
	)

	err = s.pool.QueryRow(ctx, `
		SELECT id, username, display_name, avatar_url, role
		FROM users
		WHERE id = $1`,
		userUUID,
	).Scan(&uid, &username, &displayName, &avatar, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user by id: %w", err)
	}

	return user.User{
		ID:          uid.String(),
		Username:    username,
		DisplayName: textOrEmpty(displayName),
		Avatar:      textOrEmpty(avatar),
		Role:        role,
	}, nil
}

// GetAccountByUsername fetches the full account record for credential verification.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (Account, error) {
	var (
		uid                 pgtype.UUID
		uname               string
		displayName, avatar pgtype.Text
		role, passwordHash  string
		lastLogin           pgtype.Timestamptz
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, username, display_name, avatar_url, role, password_hash, last_login_at
		FROM users
		WHERE username = $1`,
		username,
	).Scan(&uid, &uname, &displayName, &avatar, &role, &passwordHash, &lastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account by username: %w", err)
	}

	acct := Account{
		User: user.User{
			ID:          uid.String(),
			Username:    uname,
			DisplayName: textOrEmpty(displayName),
			Avatar:      textOrEmpty(avatar),
			Role:        role,
		},
		PasswordHash: passwordHash,
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		acct.LastLoginAt = &t
	}

	return acct, nil
}

// GetAccountByID fetches the full account record by id.
func (s *Store) GetAccountByID(ctx context.Context, id string) (Account, error) {
	userUUID, err := parseUUID(id)
	if err != nil {
		return Account{}, err
	}

	var (
		uid                 pgtype.UUID
		uname               string
		displayName, avatar pgtype.Text
		role, passwordHash  string
		lastLogin           pgtype.Timestamptz
	)

	err = s.pool.QueryRow(ctx, `
		SELECT id, username, display_name, avatar_url, role, password_hash, last_login_at
		FROM users
		WHERE id = $1`,
		userUUID,
	).Scan(&uid, &uname, &displayName, &avatar, &role, &passwordHash, &lastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account by id: %w", err)
	}

	acct := Account{
		User: user.User{
			ID:          uid.String(),
			Username:    uname,
			DisplayName: textOrEmpty(displayName),
			Avatar:      textOrEmpty(avatar),
			Role:        role,
		},
		PasswordHash: passwordHash,
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		acct.LastLoginAt = &t
	}

	return acct, nil
}

// UpdateUserPassword replaces the stored password hash for the given account.
func (s *Store) UpdateUserPassword(ctx context.Context, id string, passwordHash string) error {
	userUUID, err := parseUUID(id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1`,
		userUUID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin stamps the account's last_login_at with the current time.
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	userUUID, err := parseUUID(id)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE users SET last_login_at = now() WHERE id = $1`,
		userUUID,
	)
	return err
}
