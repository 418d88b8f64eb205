package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

var ErrNoSubscription = errors.New("no push subscription")

type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	// Subscriber is a mailto: or https: contact sent to the push service.
	Subscriber string
	// TTL is how long the push service keeps an undelivered message.
	TTL time.Duration
	// HTTPClient overrides the client used to reach the push service.
	HTTPClient *http.Client
}

// pushPayload is what the service worker receives.
type pushPayload struct {
	Type string `json:"type"` // "show" or "dismiss"
	Notification
}

// WebPush delivers notifications to one browser push subscription using
// VAPID. Permission stays default until the browser registers a
// subscription.
type WebPush struct {
	cfg WebPushConfig

	mu  sync.RWMutex
	sub *webpush.Subscription
}

func NewWebPush(cfg WebPushConfig) *WebPush {
	return &WebPush{cfg: cfg}
}

// SetSubscription registers the browser's push subscription, given as the
// JSON produced by PushSubscription.toJSON().
func (w *WebPush) SetSubscription(raw []byte) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decode push subscription: %w", err)
	}
	if sub.Endpoint == "" || sub.Keys.Auth == "" || sub.Keys.P256dh == "" {
		return fmt.Errorf("%w: incomplete subscription", ErrNoSubscription)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sub = &sub
	return nil
}

func (w *WebPush) subscription() *webpush.Subscription {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sub
}

func (w *WebPush) Permission() Permission {
	if w.subscription() == nil {
		return PermissionDefault
	}
	return PermissionGranted
}

func (w *WebPush) Notify(ctx context.Context, n Notification) (Handle, error) {
	if err := w.push(ctx, pushPayload{Type: "show", Notification: n}); err != nil {
		return nil, err
	}

	return newHandle(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.push(ctx, pushPayload{Type: "dismiss", Notification: Notification{MessageID: n.MessageID}}); err != nil {
			slog.Warn("push dismiss failed", "message_id", n.MessageID, "error", err)
		}
	}), nil
}

func (w *WebPush) push(ctx context.Context, payload pushPayload) error {
	sub := w.subscription()
	if sub == nil {
		return ErrNoSubscription
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	opts := &webpush.Options{
		Subscriber:      w.cfg.Subscriber,
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: w.cfg.PrivateKey,
		TTL:             int(w.cfg.TTL / time.Second),
		Urgency:         webpush.UrgencyHigh,
	}
	if w.cfg.HTTPClient != nil {
		opts.HTTPClient = w.cfg.HTTPClient
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, sub, opts)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push service responded %s", resp.Status)
	}
	return nil
}
