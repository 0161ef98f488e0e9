// Package poller watches the notification feed of every session that
// registered a Web Push subscription and hands newly arrived unseen
// notifications to the push worker pool.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/model"
	"rotary-ams-gateway/internal/notification"
	"rotary-ams-gateway/internal/session"
	"rotary-ams-gateway/internal/store"
)

// Service polls the AMS API on a timer.
type Service struct {
	cfg        *config.Config
	store      store.Store
	sessions   *session.Manager
	client     *amsclient.Client
	workerPool *notification.WorkerPool
	log        *zap.Logger
}

// NewService creates the poller and its push worker pool.
func NewService(cfg *config.Config, st store.Store, sessions *session.Manager, client *amsclient.Client, log *zap.Logger) *Service {
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	return &Service{
		cfg:        cfg,
		store:      st,
		sessions:   sessions,
		client:     client,
		workerPool: notification.NewWorkerPool(cfg.WorkerPool.Size, st, &webpushOptions, log.Named("push")),
		log:        log.Named("poller"),
	}
}

// Run starts the worker pool and polls until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Poller.Enabled || !s.cfg.PushEnabled() {
		s.log.Info("poller is disabled, not starting")
		return
	}
	s.log.Info("starting poller", zap.Duration("interval", s.cfg.Poller.Interval))

	s.workerPool.Start(ctx)

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.Poller.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("poller shutting down")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.Poller.Interval)
		}
	}
}

// PollOnce checks every subscribed session once and returns the number of
// push jobs dispatched.
func (s *Service) PollOnce(ctx context.Context) int {
	subs, err := s.store.Subscriptions(ctx)
	if err != nil {
		s.log.Warn("failed to list subscriptions", zap.Error(err))
		return 0
	}

	bySession := make(map[string][]model.PushSubscription)
	var order []string
	for _, sub := range subs {
		if _, seen := bySession[sub.SessionID]; !seen {
			order = append(order, sub.SessionID)
		}
		bySession[sub.SessionID] = append(bySession[sub.SessionID], sub)
	}

	dispatched := 0
	for _, sessionID := range order {
		dispatched += s.pollSession(ctx, sessionID, bySession[sessionID])
	}
	if dispatched > 0 {
		s.log.Info("dispatched push notifications", zap.Int("count", dispatched))
	}
	return dispatched
}

func (s *Service) pollSession(ctx context.Context, sessionID string, subs []model.PushSubscription) int {
	log := s.log.With(zap.String("session", sessionID))

	sess, err := s.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNoSession) {
		log.Info("session is gone, dropping its subscriptions")
		if err := s.store.DeleteSessionSubscriptions(ctx, sessionID); err != nil {
			log.Warn("failed to drop subscriptions", zap.Error(err))
		}
		return 0
	}
	if err != nil {
		log.Warn("failed to load session", zap.Error(err))
		return 0
	}

	list, err := s.client.WithToken(sess.Token).Notifications(ctx)
	if err != nil {
		log.Warn("failed to fetch notifications", zap.Error(err))
		return 0
	}
	list = notification.Sort(list)

	dispatched := 0
	for _, sub := range subs {
		cursor := sub.LastNotifiedAt
		// Oldest first so the newest notification lands on top of the tray.
		for i := len(list) - 1; i >= 0; i-- {
			item := list[i]
			if item.Seen || !item.SentAt.After(sub.LastNotifiedAt) {
				continue
			}
			if !s.workerPool.Dispatch(ctx, notification.Job{Subscription: sub, Notification: item}) {
				return dispatched
			}
			dispatched++
			if item.SentAt.After(cursor) {
				cursor = item.SentAt.Time
			}
		}
		if cursor.After(sub.LastNotifiedAt) {
			if err := s.store.AdvanceCursor(ctx, sub.Endpoint, cursor); err != nil {
				log.Warn("failed to advance push cursor", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			}
		}
	}
	return dispatched
}
