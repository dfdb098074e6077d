package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// SessionStore is the slice of the storage layer the session manager needs.
type SessionStore interface {
	AccountByUsername(ctx context.Context, username string) (core.Account, error)
	AccountByID(ctx context.Context, id int64) (core.Account, error)
	CreateSession(ctx context.Context, token string, accountID int64, expiresAt time.Time) error
	SessionAccountID(ctx context.Context, token string, now time.Time) (int64, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionManager verifies credentials and manages session tokens. Sessions are
// persisted server-side; the browser only holds the opaque token cookie.
type SessionManager struct {
	store SessionStore
	ttl   time.Duration
}

func NewSessionManager(store SessionStore, ttl time.Duration) *SessionManager {
	return &SessionManager{store: store, ttl: ttl}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// SignIn verifies the credentials and establishes a new session. On any
// failure it returns core.ErrInvalidCredentials without distinguishing an
// unknown username from a wrong password.
func (m *SessionManager) SignIn(ctx context.Context, username, password string) (string, error) {
	account, err := m.store.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.ErrInvalidCredentials
		}
		return "", fmt.Errorf("look up account: %w", err)
	}

	if !VerifyPassword(password, account.PasswordHash) {
		return "", core.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	expiresAt := time.Now().Add(m.ttl)
	if err := m.store.CreateSession(ctx, token, account.ID, expiresAt); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	slog.InfoContext(ctx, "Session established",
		"account_id", account.ID,
		"expires_at", expiresAt.Format(time.RFC3339))
	return token, nil
}

// SignOut invalidates the session token. Unknown tokens are not an error.
func (m *SessionManager) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve returns the account owning a live session token. Expired or unknown
// tokens yield core.ErrNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (core.Account, error) {
	if token == "" {
		return core.Account{}, core.ErrNotFound
	}
	accountID, err := m.store.SessionAccountID(ctx, token, time.Now())
	if err != nil {
		return core.Account{}, err
	}
	return m.store.AccountByID(ctx, accountID)
}

// Sweep deletes expired session rows. Intended to run periodically.
func (m *SessionManager) Sweep(ctx context.Context) error {
	removed, err := m.store.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("sweep sessions: %w", err)
	}
	if removed > 0 {
		slog.DebugContext(ctx, "Expired sessions removed", "count", removed)
	}
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
