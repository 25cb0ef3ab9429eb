package notification

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"looksdehoje-backend/internal/model"
	"looksdehoje-backend/internal/store"
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

// queuePerWorker bounds how many pending pieces each worker may have queued.
const queuePerWorker = 16

// WorkerPool sends "piece available again" notifications to the piece's subscribers.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*queuePerWorker),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := wp.log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case pieceID := <-wp.jobs:
			log.Debug("processing piece", zap.String("piece_id", pieceID))
			wp.notifySubscribers(ctx, pieceID)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues pieceID without blocking the caller. It reports false when the queue is full.
func (wp *WorkerPool) Dispatch(pieceID string) bool {
	select {
	case wp.jobs <- pieceID:
		return true
	default:
		wp.log.Warn("notification queue full, dropping job", zap.String("piece_id", pieceID))
		return false
	}
}

// SetSender replaces the web push transport. Call it before Start.
func (wp *WorkerPool) SetSender(s NotificationSender) {
	wp.sender = s
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// Message is the notification text for a piece that can be rented again.
func Message(pieceName string) string {
	return fmt.Sprintf("%s está disponível novamente!", pieceName)
}

func (wp *WorkerPool) notifySubscribers(ctx context.Context, pieceID string) {
	subscriptions, err := wp.store.SubscribersOf(ctx, pieceID)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", zap.String("piece_id", pieceID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	label := "Uma peça"
	if name, err := wp.store.PieceName(ctx, pieceID); err != nil {
		wp.log.Warn("failed to fetch piece name", zap.String("piece_id", pieceID), zap.Error(err))
	} else if name != "" {
		label = name
	}

	wp.log.Info("sending availability notifications",
		zap.String("piece_id", pieceID), zap.Int("subscribers", len(subscriptions)))
	payload := []byte(Message(label))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
