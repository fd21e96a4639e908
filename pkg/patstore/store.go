// Package patstore persists personal access tokens in SQLite and provides
// the verification callback expected by the auth middleware.
//
// Tokens are stored as SHA-256 hashes; the plaintext token is returned
// exactly once, at issue time.
package patstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/originate-group/common-mcp-server/internal/logger"
	"github.com/originate-group/common-mcp-server/pkg/auth"
)

// ErrNotFound is returned when a requested token does not exist.
var ErrNotFound = errors.New("token not found")

// Default TTL for tokens: 30 days.
const DefaultTTL = 30 * 24 * time.Hour

// Maximum TTL for tokens: 365 days.
const MaxTTL = 365 * 24 * time.Hour

// randomBytes of entropy per token (43 base64url chars).
const randomBytes = 32

// Token is a stored personal access token record. The plaintext is never
// stored and is only present on the record returned by Issue.
type Token struct {
	ID          string
	UserID      string
	Email       string
	Username    string
	DisplayName string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	LastUsedAt  *time.Time

	// Plaintext is set only on the token returned by Issue.
	Plaintext string
}

// Store persists personal access tokens in SQLite.
type Store struct {
	db     *sql.DB
	prefix string
}

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	email        TEXT NOT NULL DEFAULT '',
	username     TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	token_hash   TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMP NOT NULL,
	expires_at   TIMESTAMP NOT NULL,
	revoked_at   TIMESTAMP,
	last_used_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tokens_user_id ON tokens(user_id);
`

// Open creates a store at the given path. The schema is created if it
// doesn't exist, and parent directories are created as needed.
func Open(path, prefix string) (*Store, error) {
	if prefix == "" {
		return nil, fmt.Errorf("patstore: token prefix is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Infof("PAT store initialized at %s", path)
	return &Store{db: db, prefix: prefix}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Prefix returns the token prefix the store issues and accepts.
func (s *Store) Prefix() string {
	return s.prefix
}

// Issue creates a token for the given user and returns the record with
// the plaintext set. A zero ttl uses DefaultTTL; ttl above MaxTTL is an error.
func (s *Store) Issue(ctx context.Context, userID, email, username, displayName string, ttl time.Duration) (*Token, error) {
	if userID == "" {
		return nil, fmt.Errorf("patstore: user_id is required")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl < 0 || ttl > MaxTTL {
		return nil, fmt.Errorf("patstore: ttl exceeds maximum of %s", MaxTTL)
	}

	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	plaintext := s.prefix + base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now().UTC()
	token := &Token{
		ID:          uuid.NewString(),
		UserID:      userID,
		Email:       email,
		Username:    username,
		DisplayName: displayName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Plaintext:   plaintext,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, email, username, display_name, token_hash, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.Email, token.Username, token.DisplayName,
		hashToken(plaintext), token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Verify implements the auth.PATVerifier contract: it returns the mapped
// identity for a valid token, (nil, nil) for an unknown, expired or
// revoked token, and an error only on database failure.
func (s *Store) Verify(ctx context.Context, token string, _ *http.Request) (*auth.Identity, error) {
	var (
		userID, email, username, displayName string
		id                                   string
		expiresAt                            time.Time
		revokedAt                            sql.NullTime
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, email, username, display_name, expires_at, revoked_at
		 FROM tokens WHERE token_hash = ?`,
		hashToken(token)).Scan(&id, &userID, &email, &username, &displayName, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	if revokedAt.Valid || time.Now().After(expiresAt) {
		return nil, nil
	}

	// Best effort: a failed touch must not fail authentication.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		logger.Debugf("failed to update last_used_at for token %s: %v", id, err)
	}

	return &auth.Identity{
		UserID:   userID,
		Email:    email,
		Username: username,
		Name:     displayName,
		Method:   auth.MethodPAT,
	}, nil
}

// Revoke marks a token as revoked by ID.
func (s *Store) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all tokens for a user, newest first. An empty userID
// returns all tokens.
func (s *Store) List(ctx context.Context, userID string) ([]*Token, error) {
	query := `SELECT id, user_id, email, username, display_name, created_at, expires_at, revoked_at, last_used_at
		 FROM tokens`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []*Token
	for rows.Next() {
		var (
			t          Token
			revokedAt  sql.NullTime
			lastUsedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Email, &t.Username, &t.DisplayName,
			&t.CreatedAt, &t.ExpiresAt, &revokedAt, &lastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		if revokedAt.Valid {
			rt := revokedAt.Time
			t.RevokedAt = &rt
		}
		if lastUsedAt.Valid {
			lt := lastUsedAt.Time
			t.LastUsedAt = &lt
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
