package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrInvalidUserID is returned when creating a session without a user.
var ErrInvalidUserID = errors.New("userID is required")

// SessionRecord is one issued session token and its expiry bounds.
// ExpiresAt slides forward on activity when idle timeouts are enabled;
// AbsoluteExpiresAt never moves.
type SessionRecord struct {
	Token             string    `json:"token"`
	UserID            string    `json:"userId"`
	ExpiresAt         time.Time `json:"expiresAt"`
	AbsoluteExpiresAt time.Time `json:"absoluteExpiresAt"`
}

// SessionStore is the persistence contract for session tokens.
type SessionStore interface {
	Save(record SessionRecord) error
	Get(token string) (SessionRecord, bool, error)
	Delete(token string) error
	PurgeExpired(now time.Time) error
}

// Manager issues and validates session tokens against a backing store.
type Manager struct {
	store       SessionStore
	absoluteTTL time.Duration
	idleTimeout time.Duration
	tokenBytes  int
	now         func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore injects a custom SessionStore implementation.
func WithStore(store SessionStore) ManagerOption {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithIdleTimeout makes sessions expire after the given duration of
// inactivity. Validation slides the expiry forward, capped at the absolute
// TTL.
func WithIdleTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.idleTimeout = timeout
		}
	}
}

// NewManager constructs a Manager with the given absolute TTL. Without
// options it defaults to a 7-day TTL and an in-memory store.
func NewManager(ttl time.Duration, opts ...ManagerOption) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	manager := &Manager{
		absoluteTTL: ttl,
		tokenBytes:  32,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.store == nil {
		manager.store = NewMemorySessionStore()
	}
	return manager
}

// Create issues a new session token for the user.
func (m *Manager) Create(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrInvalidUserID
	}
	buf := make([]byte, m.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, err
	}
	token := hex.EncodeToString(buf)

	now := m.now().UTC()
	absolute := now.Add(m.absoluteTTL)
	expires := absolute
	if m.idleTimeout > 0 {
		expires = now.Add(m.idleTimeout)
		if expires.After(absolute) {
			expires = absolute
		}
	}
	record := SessionRecord{
		Token:             token,
		UserID:            userID,
		ExpiresAt:         expires,
		AbsoluteExpiresAt: absolute,
	}
	if err := m.store.Save(record); err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Validate resolves a token to its user, refreshing the sliding expiry when
// idle timeouts are enabled. Expired tokens are deleted on sight.
func (m *Manager) Validate(token string) (string, time.Time, bool, error) {
	if token == "" {
		return "", time.Time{}, false, nil
	}
	record, ok, err := m.store.Get(token)
	if err != nil {
		return "", time.Time{}, false, err
	}
	if !ok {
		return "", time.Time{}, false, nil
	}
	now := m.now().UTC()
	absolute := record.AbsoluteExpiresAt
	if absolute.IsZero() {
		absolute = record.ExpiresAt
	}
	if now.After(record.ExpiresAt) || now.After(absolute) {
		_ = m.store.Delete(token)
		return "", time.Time{}, false, nil
	}
	expires := record.ExpiresAt
	if m.idleTimeout > 0 {
		refreshed := now.Add(m.idleTimeout)
		if refreshed.After(absolute) {
			refreshed = absolute
		}
		if refreshed.After(record.ExpiresAt) {
			record.ExpiresAt = refreshed
			if err := m.store.Save(record); err != nil {
				return "", time.Time{}, false, err
			}
			expires = refreshed
		}
	}
	return record.UserID, expires, true, nil
}

// Revoke deletes the session token.
func (m *Manager) Revoke(token string) error {
	if token == "" {
		return nil
	}
	return m.store.Delete(token)
}

// PurgeExpired removes expired sessions from the backing store.
func (m *Manager) PurgeExpired() error {
	return m.store.PurgeExpired(m.now().UTC())
}

// Ping verifies the backing store is reachable when it supports pinging.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pinger, ok := m.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
