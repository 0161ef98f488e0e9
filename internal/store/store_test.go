package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rotary-ams-gateway/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would otherwise open its own empty database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.KVEntry{}, &model.PushSubscription{}))
	return NewGormStore(db)
}

func TestGormStore_GetMissingKey(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries" WHERE "kv_entries"."key" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}))

	_, err := store.Get(context.Background(), "abc/token")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetFailure(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "kv_entries"`)).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "abc/token")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Delete(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "kv_entries" WHERE "kv_entries"."key" = $1`)).
		WithArgs("abc/token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Delete(context.Background(), "abc/token"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AdvanceCursor(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "push_subscriptions" SET "last_notified_at"=$1 WHERE "push_subscriptions"."endpoint" = $2`)).
		WithArgs(Any{}, "https://push.example.com/1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.AdvanceCursor(context.Background(), "https://push.example.com/1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_KVRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "s1/token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "s1/token", "first"))
	require.NoError(t, store.Set(ctx, "s1/token", "second"))

	value, err := store.Get(ctx, "s1/token")
	require.NoError(t, err)
	assert.Equal(t, "second", value, "Set overwrites the previous value")

	require.NoError(t, store.Delete(ctx, "s1/token"))
	require.NoError(t, store.Delete(ctx, "s1/token"), "deleting twice is fine")

	_, err = store.Get(ctx, "s1/token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_Subscriptions(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return start }

	require.NoError(t, store.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/a", P256DH: "k1", Auth: "a1", SessionID: "s1",
	}))
	require.NoError(t, store.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/b", P256DH: "k2", Auth: "a2", SessionID: "s2",
	}))
	// Re-registering an endpoint rebinds it.
	require.NoError(t, store.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/a", P256DH: "k3", Auth: "a3", SessionID: "s3",
	}))

	subs, err := store.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	byEndpoint := map[string]model.PushSubscription{}
	for _, sub := range subs {
		byEndpoint[sub.Endpoint] = sub
	}
	assert.Equal(t, "s3", byEndpoint["https://push.example.com/a"].SessionID)
	assert.Equal(t, "k3", byEndpoint["https://push.example.com/a"].P256DH)
	assert.True(t, start.Equal(byEndpoint["https://push.example.com/b"].LastNotifiedAt))

	later := start.Add(time.Hour)
	require.NoError(t, store.AdvanceCursor(ctx, "https://push.example.com/b", later))
	require.NoError(t, store.DeleteSessionSubscriptions(ctx, "s3"))

	subs, err = store.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/b", subs[0].Endpoint)
	assert.True(t, later.Equal(subs[0].LastNotifiedAt))

	require.NoError(t, store.DeleteSubscription(ctx, "https://push.example.com/b"))
	subs, err = store.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestGormStore_DeleteSessionSubscription(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example.com/a", P256DH: "k", Auth: "a", SessionID: "s1",
	}))

	require.NoError(t, store.DeleteSessionSubscription(ctx, "s2", "https://push.example.com/a"))
	subs, err := store.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1, "another session cannot remove the subscription")

	require.NoError(t, store.DeleteSessionSubscription(ctx, "s1", "https://push.example.com/a"))
	subs, err = store.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
