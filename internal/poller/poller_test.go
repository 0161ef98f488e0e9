package poller

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/db"
	"rotary-ams-gateway/internal/model"
	"rotary-ams-gateway/internal/notification"
	"rotary-ams-gateway/internal/session"
	"rotary-ams-gateway/internal/store"
)

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func TestPoller_PollOnce(t *testing.T) {
	// --- Setup ---
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			io.WriteString(w, `{"token":"api-token","user":{"id":1,"username":"ana","role":"member"}}`)
		case "/api/notifications":
			assert.Equal(t, "Bearer api-token", r.Header.Get("Authorization"))
			io.WriteString(w, `{"notifications":[
				{"title":"old","body":"","sent_at":"2024-03-01 12:00:00","seen":false},
				{"title":"newest","body":"","sent_at":"2024-03-05 12:00:00","seen":false},
				{"title":"read","body":"","sent_at":"2024-03-03 12:00:00","seen":true},
				{"title":"new","body":"","sent_at":"2024-03-04 12:00:00","seen":false}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	st := newTestStore(t)
	client := amsclient.New(server.URL, server.Client())
	sessions := session.NewManager(st, client)
	ctx := context.Background()

	sess, err := sessions.Login(ctx, "ana", "secret", "")
	require.NoError(t, err)

	require.NoError(t, st.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/a", P256DH: "k", Auth: "a",
		SessionID: sess.ID, LastNotifiedAt: day(2),
	}))
	require.NoError(t, st.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/ghost", P256DH: "k", Auth: "a",
		SessionID: "logged-out", LastNotifiedAt: day(1),
	}))

	cfg := &config.Config{WorkerPool: config.WorkerPoolConfig{Size: 1}}
	service := NewService(cfg, st, sessions, client, zap.NewNop())

	var mu sync.Mutex
	var dispatched []string
	go func() {
		for job := range service.workerPool.Jobs() {
			mu.Lock()
			dispatched = append(dispatched, job.Notification.Title)
			mu.Unlock()
		}
	}()

	// --- Execution ---
	count := service.PollOnce(ctx)

	// --- Verification ---
	assert.Equal(t, 2, count)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dispatched) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"new", "newest"}, dispatched, "only unseen notifications newer than the cursor, oldest first")
	mu.Unlock()

	subs, err := st.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1, "subscriptions of destroyed sessions are dropped")
	assert.True(t, day(5).Equal(subs[0].LastNotifiedAt), "cursor moves to the newest pushed notification")

	assert.Equal(t, 0, service.PollOnce(ctx), "nothing is pushed twice")
}

func TestPoller_UpstreamFailureKeepsCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			io.WriteString(w, `{"token":"api-token","user":{"id":1,"username":"ana","role":"member"}}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	st := newTestStore(t)
	client := amsclient.New(server.URL, server.Client())
	sessions := session.NewManager(st, client)
	ctx := context.Background()

	sess, err := sessions.Login(ctx, "ana", "secret", "")
	require.NoError(t, err)
	require.NoError(t, st.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/a", P256DH: "k", Auth: "a",
		SessionID: sess.ID, LastNotifiedAt: day(2),
	}))

	service := NewService(&config.Config{WorkerPool: config.WorkerPoolConfig{Size: 1}}, st, sessions, client, zap.NewNop())
	assert.Equal(t, 0, service.PollOnce(ctx))

	subs, err := st.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, day(2).Equal(subs[0].LastNotifiedAt))
}

func TestPoller_RunDisabled(t *testing.T) {
	service := NewService(&config.Config{WorkerPool: config.WorkerPoolConfig{Size: 1}}, nil, nil, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		service.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when the poller is disabled")
	}
}

var _ notification.SubscriptionRemover = (*store.GormStore)(nil)
