// Package auth gates the dashboard API behind username/password logins and
// server-side sessions.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// ErrInvalidCredentials is returned for an unknown user and for a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStore keeps bcrypt password hashes in SQLite.
type UserStore struct {
	conn *sql.DB
	cost int
}

// OpenUserStore opens (creating if needed) the user database at path.
func OpenUserStore(path string) (*UserStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening user database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &UserStore{conn: conn, cost: bcrypt.DefaultCost}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing user schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *UserStore) Close() error {
	return s.conn.Close()
}

func (s *UserStore) initSchema() error {
	_, err := s.conn.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// PutUser creates a user or replaces the password of an existing one.
func (s *UserStore) PutUser(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO users (username, password_hash, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at
	`, username, string(hash), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing user: %w", err)
	}
	return nil
}

// DeleteUser removes a user. Removing an unknown user is not an error.
func (s *UserStore) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// Verify checks a username/password pair.
func (s *UserStore) Verify(ctx context.Context, username, password string) error {
	var hash string
	err := s.conn.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("querying user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// ListUsers returns all usernames in alphabetical order.
func (s *UserStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
