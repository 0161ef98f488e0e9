package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"rotary-ams-gateway/internal/metrics"
	"rotary-ams-gateway/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionRemover deletes subscriptions the push service reports as gone.
type SubscriptionRemover interface {
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Job is one notification to deliver to one subscription.
type Job struct {
	Subscription model.PushSubscription
	Notification model.Notification
}

// Payload is the JSON body received by the service worker.
type Payload struct {
	Title  string          `json:"title"`
	Body   string          `json:"body"`
	SentAt model.Timestamp `json:"sent_at"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	subs    SubscriptionRemover
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs SubscriptionRemover, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("push worker started")
	for {
		select {
		case job := <-wp.jobs:
			wp.send(ctx, log, job)
		case <-ctx.Done():
			log.Debug("push worker shutting down")
			return
		}
	}
}

// Dispatch queues a job, giving up when ctx is done.
func (wp *WorkerPool) Dispatch(ctx context.Context, job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

func (wp *WorkerPool) send(ctx context.Context, log *zap.Logger, job Job) {
	sub := job.Subscription
	log = log.With(zap.String("endpoint", sub.Endpoint))

	payload, err := json.Marshal(Payload{
		Title:  job.Notification.Title,
		Body:   job.Notification.Body,
		SentAt: job.Notification.SentAt,
	})
	if err != nil {
		log.Error("failed to encode push payload", zap.Error(err))
		return
	}

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.PushesSent.WithLabelValues("error").Inc()
		log.Warn("failed to send push notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		metrics.PushesSent.WithLabelValues("gone").Inc()
		log.Info("push subscription expired, deleting")
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Warn("failed to delete expired subscription", zap.Error(err))
		}
		return
	}
	if resp.StatusCode >= 400 {
		metrics.PushesSent.WithLabelValues("rejected").Inc()
		log.Warn("push service rejected notification", zap.Int("status", resp.StatusCode))
		return
	}
	metrics.PushesSent.WithLabelValues("ok").Inc()
}
