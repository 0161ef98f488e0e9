// Package session holds the explicit session context of a signed-in user.
//
// A session is created on login, persisted as two keys of the device store
// (<id>/token and <id>/user), rebuilt from the store on every request, and
// destroyed on logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rotary-ams-gateway/internal/metrics"
	"rotary-ams-gateway/internal/model"
	"rotary-ams-gateway/internal/store"
)

var (
	// ErrNoSession is returned when no session is stored under an id.
	ErrNoSession = errors.New("no active session")
	// ErrForbidden is returned when the session user lacks the admin role.
	ErrForbidden = errors.New("admin role required")
)

// Context is the signed-in user and the AMS API token issued to them.
type Context struct {
	ID    string
	Token string
	User  model.User
}

// RequireAdmin returns ErrForbidden unless the session user is an admin.
func (c *Context) RequireAdmin() error {
	if !c.User.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// Authenticator exchanges credentials for an AMS API token.
type Authenticator interface {
	Login(ctx context.Context, username, password, pushToken string) (*model.LoginResult, error)
}

// Manager creates, loads and destroys sessions.
type Manager struct {
	kv    store.KV
	auth  Authenticator
	newID func() string
}

func NewManager(kv store.KV, auth Authenticator) *Manager {
	return &Manager{kv: kv, auth: auth, newID: uuid.NewString}
}

func tokenKey(id string) string { return id + "/token" }
func userKey(id string) string  { return id + "/user" }

// Login authenticates against the AMS API and persists the new session.
// Errors from the API are returned unwrapped so callers can show their message.
func (m *Manager) Login(ctx context.Context, username, password, pushToken string) (*Context, error) {
	res, err := m.auth.Login(ctx, username, password, pushToken)
	if err != nil {
		return nil, err
	}

	sess := &Context{ID: m.newID(), Token: res.Token, User: res.User}
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := m.kv.Set(ctx, tokenKey(sess.ID), sess.Token); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	if err := m.kv.Set(ctx, userKey(sess.ID), string(userJSON)); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.ActiveSessions.Inc()
	return sess, nil
}

// Load rebuilds the session stored under id.
func (m *Manager) Load(ctx context.Context, id string) (*Context, error) {
	if id == "" {
		return nil, ErrNoSession
	}

	token, err := m.kv.Get(ctx, tokenKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rawUser, err := m.kv.Get(ctx, userKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return nil, fmt.Errorf("stored user of session %s is corrupt: %w", id, err)
	}
	return &Context{ID: id, Token: token, User: user}, nil
}

// Logout deletes both keys of the session. It is safe to call twice; only
// a session that still existed counts against the active session gauge.
func (m *Manager) Logout(ctx context.Context, id string) error {
	_, err := m.kv.Get(ctx, tokenKey(id))
	existed := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := m.kv.Delete(ctx, tokenKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := m.kv.Delete(ctx, userKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if existed {
		metrics.ActiveSessions.Dec()
	}
	return nil
}
