// Package session runs one chat client session: it follows the auth
// state, loads the own profile, keeps exactly one live subscription to
// the message log while signed in and profiled, and feeds every
// snapshot and focus change through the reconcile engine one at a time.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kidoku/internal/backend"
	"kidoku/internal/models"
	"kidoku/internal/notify"
	"kidoku/internal/reconcile"
	"kidoku/internal/transcript"
)

const (
	DefaultDismissAfter = 5 * time.Second
	DefaultRetryMin     = time.Second
	DefaultRetryMax     = 30 * time.Second

	subscriptionWarning = "live updates interrupted, reconnecting"
)

var (
	ErrAuthFailure  = errors.New("sign in failed")
	ErrSendFailure  = errors.New("message could not be sent")
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a message is already being sent")
	ErrNotSignedIn  = errors.New("not signed in")
	ErrNoProfile    = errors.New("profile is not set up")
)

type Config struct {
	Auth     backend.Auth
	Profiles backend.ProfileStore
	Messages backend.MessageStore
	Notifier notify.Notifier

	// DismissAfter is how long a notification stays up.
	DismissAfter time.Duration
	// RetryMin and RetryMax bound the re-subscribe backoff.
	RetryMin time.Duration
	RetryMax time.Duration
	// Focused is the window state before the first signal arrives.
	Focused bool
}

type (
	authEvent     struct{ account *models.Account }
	signalEvent   struct{ sig Signal }
	profileEvent  struct{ profile models.Profile }
	activateEvent struct{}
)

type Session struct {
	auth     backend.Auth
	profiles backend.ProfileStore
	messages backend.MessageStore
	notifier notify.Notifier

	dismissAfter time.Duration
	retryMin     time.Duration
	retryMax     time.Duration

	events   chan any
	done     chan struct{}
	watchers *watchers
	sending  atomic.Bool

	// Identity is written by the loop and read by Send and SaveNickname.
	mu      sync.RWMutex
	account *models.Account
	profile *models.Profile

	// Everything below is owned by the Run loop.
	status  transcript.Status
	focus   *FocusTracker
	engine  *reconcile.Engine
	sub     backend.Subscription
	retry   *time.Timer
	retryC  <-chan time.Time
	backoff time.Duration
	warning string
	note    notify.Handle
}

func New(cfg Config) *Session {
	s := &Session{
		auth:         cfg.Auth,
		profiles:     cfg.Profiles,
		messages:     cfg.Messages,
		notifier:     cfg.Notifier,
		dismissAfter: cfg.DismissAfter,
		retryMin:     cfg.RetryMin,
		retryMax:     cfg.RetryMax,
		events:       make(chan any, 64),
		done:         make(chan struct{}),
		status:       transcript.StatusSignedOut,
		focus:        NewFocusTracker(cfg.Focused),
	}
	if s.notifier == nil {
		s.notifier = notify.Disabled{}
	}
	if s.dismissAfter <= 0 {
		s.dismissAfter = DefaultDismissAfter
	}
	if s.retryMin <= 0 {
		s.retryMin = DefaultRetryMin
	}
	if s.retryMax < s.retryMin {
		s.retryMax = max(DefaultRetryMax, s.retryMin)
	}
	s.watchers = newWatchers(s.buildView())
	return s
}

// Run processes events until ctx is done. All reconciliation happens on
// this goroutine.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.watchers.closeAll()

	unsubscribe := s.auth.OnAuthChange(func(account *models.Account) {
		s.post(authEvent{account: account})
	})
	defer unsubscribe()
	defer s.teardown()

	for {
		var subEvents <-chan backend.SnapshotEvent
		if s.sub != nil {
			subEvents = s.sub.Events()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		case ev, ok := <-subEvents:
			s.handleSnapshot(ctx, ev, ok)
		case <-s.retryC:
			s.retryC = nil
			if s.status == transcript.StatusReady && s.sub == nil {
				s.subscribe(ctx)
			}
		}

		s.watchers.publish(s.buildView())
	}
}

// Watch returns a channel of views, starting with the current one.
func (s *Session) Watch() (<-chan transcript.View, func()) {
	return s.watchers.add()
}

// View returns the most recently published view.
func (s *Session) View() transcript.View {
	return s.watchers.current()
}

// Signal reports a window focus, blur or visibility change.
func (s *Session) Signal(sig Signal) {
	s.post(signalEvent{sig: sig})
}

// ActivateNotification handles a click on the shown notification: it is
// dismissed and the session counts as focused again.
func (s *Session) ActivateNotification() {
	s.post(activateEvent{})
}

func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Session) identity() (*models.Account, *models.Profile) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.profile
}

func (s *Session) setIdentity(account *models.Account, profile *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	s.profile = profile
}

func (s *Session) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case authEvent:
		s.onAuthChange(ctx, ev.account)
	case signalEvent:
		s.onSignal(ctx, ev.sig)
	case profileEvent:
		s.onProfile(ctx, ev.profile)
	case activateEvent:
		if s.note != nil {
			s.note.Dismiss()
			s.note = nil
		}
		s.onSignal(ctx, SignalFocus)
	}
}

func (s *Session) onAuthChange(ctx context.Context, account *models.Account) {
	current, _ := s.identity()

	if account == nil {
		if current == nil {
			return
		}
		slog.Info("signed out", "account_id", current.ID)
		s.teardown()
		s.setIdentity(nil, nil)
		s.engine = nil
		s.warning = ""
		s.status = transcript.StatusSignedOut
		if s.note != nil {
			s.note.Dismiss()
			s.note = nil
		}
		return
	}

	if current != nil && current.ID == account.ID {
		return
	}

	s.teardown()
	s.setIdentity(account, nil)
	s.engine = reconcile.New(reconcile.Config{
		Self:       account.ID,
		Profiles:   s.profiles,
		Receipts:   s.messages,
		Permission: s.notifier.Permission,
		Focused:    s.focus.Active(),
	})
	s.status = transcript.StatusLoadingProfile
	s.loadProfile(ctx)
}

func (s *Session) loadProfile(ctx context.Context) {
	account, _ := s.identity()
	if account == nil {
		return
	}

	profile, err := s.profiles.GetProfile(ctx, account.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		slog.Info("profile not found, setup required", "account_id", account.ID)
		s.status = transcript.StatusNeedsProfile
	case err != nil:
		// Retried on the next focus gain or profile save.
		slog.Error("profile load failed", "account_id", account.ID, "error", err)
		s.status = transcript.StatusLoadingProfile
	default:
		s.onProfile(ctx, profile)
	}
}

func (s *Session) onProfile(ctx context.Context, profile models.Profile) {
	account, _ := s.identity()
	if account == nil || profile.AccountID != account.ID {
		return
	}

	s.setIdentity(account, &profile)
	s.status = transcript.StatusReady
	if s.sub == nil && s.retryC == nil {
		s.subscribe(ctx)
	}
}

func (s *Session) onSignal(ctx context.Context, sig Signal) {
	activated := s.focus.Apply(sig)
	if s.engine != nil {
		if n := s.engine.SetFocus(ctx, s.focus.Active()); n > 0 {
			slog.Debug("flushed deferred read receipts", "count", n)
		}
	}
	if activated && s.status == transcript.StatusLoadingProfile {
		s.loadProfile(ctx)
	}
}

func (s *Session) subscribe(ctx context.Context) {
	sub, err := s.messages.Subscribe(ctx)
	if err != nil {
		slog.Error("subscribe failed", "error", err)
		s.warning = subscriptionWarning
		s.scheduleRetry()
		return
	}
	s.sub = sub
}

func (s *Session) handleSnapshot(ctx context.Context, ev backend.SnapshotEvent, ok bool) {
	if !ok || ev.Err != nil {
		err := ev.Err
		if !ok {
			err = errors.New("subscription closed")
		}
		slog.Error("subscription failed", "error", err)
		_ = s.sub.Close()
		s.sub = nil
		s.warning = subscriptionWarning
		s.scheduleRetry()
		return
	}

	s.backoff = 0
	s.warning = ""
	if s.engine == nil {
		return
	}

	pass := s.engine.Reconcile(ctx, ev.Messages)
	if pass.Notification != nil {
		s.showNotification(ctx, *pass.Notification)
	}
}

func (s *Session) showNotification(ctx context.Context, n notify.Notification) {
	h, err := s.notifier.Notify(ctx, n)
	if err != nil {
		slog.Warn("notification failed", "message_id", n.MessageID, "error", err)
		return
	}
	s.note = h
	time.AfterFunc(s.dismissAfter, h.Dismiss)
}

func (s *Session) scheduleRetry() {
	if s.backoff == 0 {
		s.backoff = s.retryMin
	} else {
		s.backoff = min(s.backoff*2, s.retryMax)
	}
	if s.retry != nil {
		s.retry.Stop()
	}
	s.retry = time.NewTimer(s.backoff)
	s.retryC = s.retry.C
	slog.Info("re-subscribing", "after", s.backoff)
}

func (s *Session) teardown() {
	if s.sub != nil {
		if err := s.sub.Close(); err != nil {
			slog.Warn("closing subscription", "error", err)
		}
		s.sub = nil
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.retryC = nil
	s.backoff = 0
}

func (s *Session) buildView() transcript.View {
	v := transcript.View{
		Status:  s.status,
		Focused: s.focus.Active(),
		Warning: s.warning,
		Entries: []transcript.Entry{},
	}

	account, profile := s.identity()
	if account != nil {
		v.Email = account.Email
	}
	if profile != nil {
		v.Nickname = profile.Nickname
	}
	if account != nil && s.engine != nil && s.status == transcript.StatusReady {
		v.Entries = transcript.Build(s.engine.Messages(), account.ID, s.engine.DisplayName)
	}
	return v
}
