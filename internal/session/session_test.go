package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/metrics"
	"rotary-ams-gateway/internal/model"
	"rotary-ams-gateway/internal/store"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeAuth struct {
	result *model.LoginResult
	err    error
}

func (f fakeAuth) Login(context.Context, string, string, string) (*model.LoginResult, error) {
	return f.result, f.err
}

func newTestManager(kv store.KV, auth Authenticator) *Manager {
	m := NewManager(kv, auth)
	m.newID = func() string { return "sess-1" }
	return m
}

func TestManager_LoginLoadLogout(t *testing.T) {
	kv := newMemKV()
	manager := newTestManager(kv, fakeAuth{result: &model.LoginResult{
		Token: "api-token",
		User:  model.User{ID: 4, Username: "ana", Role: "admin"},
	}})
	ctx := context.Background()

	sess, err := manager.Login(ctx, "ana", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "api-token", kv.data["sess-1/token"])
	assert.JSONEq(t, `{"id":4,"username":"ana","role":"admin"}`, kv.data["sess-1/user"])

	loaded, err := manager.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)
	assert.NoError(t, loaded.RequireAdmin())

	require.NoError(t, manager.Logout(ctx, "sess-1"))
	assert.Empty(t, kv.data)

	_, err = manager.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_LogoutKeepsGaugeConsistent(t *testing.T) {
	manager := newTestManager(newMemKV(), fakeAuth{result: &model.LoginResult{Token: "api-token"}})
	ctx := context.Background()
	baseline := testutil.ToFloat64(metrics.ActiveSessions)

	_, err := manager.Login(ctx, "ana", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, baseline+1, testutil.ToFloat64(metrics.ActiveSessions))

	require.NoError(t, manager.Logout(ctx, "sess-1"))
	require.NoError(t, manager.Logout(ctx, "sess-1"))
	require.NoError(t, manager.Logout(ctx, "never-existed"))
	assert.Equal(t, baseline, testutil.ToFloat64(metrics.ActiveSessions), "only live sessions are counted down")
}

func TestManager_LoginRejectedPersistsNothing(t *testing.T) {
	kv := newMemKV()
	rejected := errors.New("invalid credentials")
	manager := newTestManager(kv, fakeAuth{err: rejected})

	_, err := manager.Login(context.Background(), "ana", "wrong", "")
	assert.ErrorIs(t, err, rejected)
	assert.Empty(t, kv.data)
}

func TestManager_LoadCorruptUser(t *testing.T) {
	kv := newMemKV()
	kv.data["s/token"] = "t"
	kv.data["s/user"] = "{not json"

	_, err := newTestManager(kv, nil).Load(context.Background(), "s")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSession))

	_, err = newTestManager(kv, nil).Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestContext_RequireAdmin(t *testing.T) {
	sess := &Context{User: model.User{Role: "member"}}
	assert.ErrorIs(t, sess.RequireAdmin(), ErrForbidden)
}

func newTestTokens(now time.Time) *Tokens {
	tokens := NewTokens(config.SessionConfig{SigningKey: "k", Issuer: "test", TTL: time.Hour})
	tokens.now = func() time.Time { return now }
	return tokens
}

func TestTokens(t *testing.T) {
	now := time.Now()
	tokens := newTestTokens(now)

	signed, exp, err := tokens.Issue("sess-1")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), exp, time.Second)

	id, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)

	t.Run("expired", func(t *testing.T) {
		_, err := newTestTokens(now.Add(2 * time.Hour)).Parse(signed)
		assert.Error(t, err)
	})

	t.Run("other key", func(t *testing.T) {
		other := NewTokens(config.SessionConfig{SigningKey: "other", Issuer: "test", TTL: time.Hour})
		_, err := other.Parse(signed)
		assert.Error(t, err)
	})

	t.Run("other issuer", func(t *testing.T) {
		other := NewTokens(config.SessionConfig{SigningKey: "k", Issuer: "someone-else", TTL: time.Hour})
		_, err := other.Parse(signed)
		assert.Error(t, err)
	})
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	kv := newMemKV()
	manager := newTestManager(kv, fakeAuth{result: &model.LoginResult{
		Token: "api-token",
		User:  model.User{ID: 4, Username: "ana", Role: "member"},
	}})
	tokens := newTestTokens(time.Now())

	_, err := manager.Login(context.Background(), "ana", "secret", "")
	require.NoError(t, err)
	valid, _, err := tokens.Issue("sess-1")
	require.NoError(t, err)
	orphan, _, err := tokens.Issue("gone")
	require.NoError(t, err)

	router := gin.New()
	router.Use(RequireSession(tokens, manager))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": FromGin(c).User.Username})
	})
	router.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	testCases := []struct {
		name           string
		path           string
		authorization  string
		expectedStatus int
	}{
		{name: "valid token", path: "/me", authorization: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "lowercase scheme", path: "/me", authorization: "bearer " + valid, expectedStatus: http.StatusOK},
		{name: "missing header", path: "/me", expectedStatus: http.StatusUnauthorized},
		{name: "garbage token", path: "/me", authorization: "Bearer nope", expectedStatus: http.StatusUnauthorized},
		{name: "destroyed session", path: "/me", authorization: "Bearer " + orphan, expectedStatus: http.StatusUnauthorized},
		{name: "non admin", path: "/admin", authorization: "Bearer " + valid, expectedStatus: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.authorization != "" {
				req.Header.Set("Authorization", tc.authorization)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}
