package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rotary-ams-gateway/internal/model"
)

// GormStore implements Store on postgres or sqlite through GORM.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var entry model.KVEntry
	err := s.db.WithContext(ctx).Where(&model.KVEntry{Key: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return entry.Value, nil
}

// Set upserts key in a single statement.
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := model.KVEntry{Key: key, Value: value, UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where(&model.KVEntry{Key: key}).Delete(&model.KVEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// PutSubscription registers sub or rebinds an existing endpoint to a new session.
// The cursor of a new subscription starts now so older notifications are not pushed.
func (s *GormStore) PutSubscription(ctx context.Context, sub model.PushSubscription) error {
	now := s.now()
	if sub.LastNotifiedAt.IsZero() {
		sub.LastNotifiedAt = now
	}
	sub.CreatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "session_id"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Where(&model.PushSubscription{Endpoint: endpoint}).Delete(&model.PushSubscription{}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteSessionSubscription(ctx context.Context, sessionID, endpoint string) error {
	err := s.db.WithContext(ctx).
		Where(&model.PushSubscription{Endpoint: endpoint, SessionID: sessionID}).
		Delete(&model.PushSubscription{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteSessionSubscriptions(ctx context.Context, sessionID string) error {
	if err := s.db.WithContext(ctx).Where(&model.PushSubscription{SessionID: sessionID}).Delete(&model.PushSubscription{}).Error; err != nil {
		return fmt.Errorf("failed to delete subscriptions of session %s: %w", sessionID, err)
	}
	return nil
}

func (s *GormStore) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Order("created_at").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *GormStore) AdvanceCursor(ctx context.Context, endpoint string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.PushSubscription{}).
		Where(&model.PushSubscription{Endpoint: endpoint}).
		Update("last_notified_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	return nil
}

func (s *GormStore) Healthy(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

type splitStore struct {
	KV
	subs *GormStore
}

// WithKV keeps subscriptions in base and device keys in kv.
func WithKV(base *GormStore, kv KV) Store {
	return splitStore{KV: kv, subs: base}
}

func (s splitStore) PutSubscription(ctx context.Context, sub model.PushSubscription) error {
	return s.subs.PutSubscription(ctx, sub)
}

func (s splitStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.subs.DeleteSubscription(ctx, endpoint)
}

func (s splitStore) DeleteSessionSubscription(ctx context.Context, sessionID, endpoint string) error {
	return s.subs.DeleteSessionSubscription(ctx, sessionID, endpoint)
}

func (s splitStore) DeleteSessionSubscriptions(ctx context.Context, sessionID string) error {
	return s.subs.DeleteSessionSubscriptions(ctx, sessionID)
}

func (s splitStore) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	return s.subs.Subscriptions(ctx)
}

func (s splitStore) AdvanceCursor(ctx context.Context, endpoint string, at time.Time) error {
	return s.subs.AdvanceCursor(ctx, endpoint, at)
}

func (s splitStore) Healthy(ctx context.Context) bool {
	if checker, ok := s.KV.(interface{ Healthy(context.Context) bool }); ok && !checker.Healthy(ctx) {
		return false
	}
	return s.subs.Healthy(ctx)
}
