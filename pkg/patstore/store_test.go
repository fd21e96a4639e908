package patstore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tokens.db"), "test_pat_")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPrefix(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "tokens.db"), ""); err == nil {
		t.Error("expected error for empty prefix")
	}
}

func TestIssueAndVerify(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-1", "u1@example.com", "u1", "User One", 0)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if !strings.HasPrefix(token.Plaintext, "test_pat_") {
		t.Errorf("expected token to carry the prefix, got %q", token.Plaintext)
	}
	if token.ID == "" {
		t.Error("expected token ID to be set")
	}

	wantExpiry := time.Now().Add(DefaultTTL)
	if diff := token.ExpiresAt.Sub(wantExpiry); diff > time.Minute || diff < -time.Minute {
		t.Errorf("expected default TTL expiry near %v, got %v", wantExpiry, token.ExpiresAt)
	}

	identity, err := store.Verify(ctx, token.Plaintext, nil)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity == nil {
		t.Fatal("expected identity for valid token")
	}
	if identity.UserID != "user-1" {
		t.Errorf("expected UserID user-1, got %s", identity.UserID)
	}
	if identity.Email != "u1@example.com" {
		t.Errorf("expected email u1@example.com, got %s", identity.Email)
	}
	if identity.Name != "User One" {
		t.Errorf("expected display name User One, got %s", identity.Name)
	}
}

func TestIssue_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "", "", "", "", 0); err == nil {
		t.Error("expected error for missing user ID")
	}

	if _, err := store.Issue(ctx, "user-1", "", "", "", MaxTTL+time.Hour); err == nil {
		t.Error("expected error for TTL above the maximum")
	}
}

func TestVerify_UnknownToken(t *testing.T) {
	store := newTestStore(t)

	identity, err := store.Verify(context.Background(), "test_pat_does-not-exist", nil)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity != nil {
		t.Error("expected nil identity for unknown token")
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-1", "", "", "", time.Millisecond)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	identity, err := store.Verify(ctx, token.Plaintext, nil)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity != nil {
		t.Error("expected nil identity for expired token")
	}
}

func TestRevoke(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "user-1", "", "", "", 0)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if err := store.Revoke(ctx, token.ID); err != nil {
		t.Fatalf("failed to revoke token: %v", err)
	}

	identity, err := store.Verify(ctx, token.Plaintext, nil)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if identity != nil {
		t.Error("expected nil identity for revoked token")
	}

	// Revoking twice reports not found
	if err := store.Revoke(ctx, token.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second revoke, got %v", err)
	}

	if err := store.Revoke(ctx, "no-such-id"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown ID, got %v", err)
	}
}

func TestList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "user-1", "", "", "", 0); err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if _, err := store.Issue(ctx, "user-1", "", "", "", 0); err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if _, err := store.Issue(ctx, "user-2", "", "", "", 0); err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("failed to list tokens: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 tokens, got %d", len(all))
	}

	forUser, err := store.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to list tokens: %v", err)
	}
	if len(forUser) != 2 {
		t.Errorf("expected 2 tokens for user-1, got %d", len(forUser))
	}
	for _, token := range forUser {
		if token.Plaintext != "" {
			t.Error("expected listed tokens to never carry plaintext")
		}
	}
}

func TestTokensAreUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		token, err := store.Issue(ctx, "user-1", "", "", "", 0)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		if seen[token.Plaintext] {
			t.Fatal("duplicate token issued")
		}
		seen[token.Plaintext] = true
	}
}
