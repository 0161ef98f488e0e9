package store

import (
	"context"
	"errors"
	"time"

	"rotary-ams-gateway/internal/model"
)

// ErrNotFound is returned by Get for a key that was never set or was deleted.
var ErrNotFound = errors.New("key not found")

// KV is the device key-value store. Every operation touches a single key.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store is the gateway's persistence: the KV plus Web Push subscriptions.
type Store interface {
	KV
	PutSubscription(ctx context.Context, sub model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	// DeleteSessionSubscription removes endpoint only if it belongs to sessionID.
	DeleteSessionSubscription(ctx context.Context, sessionID, endpoint string) error
	DeleteSessionSubscriptions(ctx context.Context, sessionID string) error
	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
	// AdvanceCursor records that every notification sent up to at has been pushed.
	AdvanceCursor(ctx context.Context, endpoint string, at time.Time) error
	// Healthy reports whether every backend answers.
	Healthy(ctx context.Context) bool
}
