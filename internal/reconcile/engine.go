// Package reconcile turns the live snapshot feed of the messages
// collection into what a chat client shows and writes back: resolved
// author names, read receipts and new-message notifications.
//
// An Engine is not safe for concurrent use. The owning session feeds it
// one event at a time.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"kidoku/internal/models"
	"kidoku/internal/notify"

	"golang.org/x/sync/errgroup"
)

type ProfileFetcher interface {
	GetProfile(ctx context.Context, accountID string) (models.Profile, error)
}

type ReceiptWriter interface {
	MarkRead(ctx context.Context, messageID, accountID string) error
}

type Config struct {
	// Self is the signed-in account id.
	Self       string
	Profiles   ProfileFetcher
	Receipts   ReceiptWriter
	Permission func() notify.Permission
	// Focused is the initial window focus state.
	Focused bool
}

type Engine struct {
	self       string
	profiles   ProfileFetcher
	receipts   ReceiptWriter
	permission func() notify.Permission
	cache      *ProfileCache

	messages  []models.Message
	prevCount int
	focused   bool
	// Receipts were due while unfocused and wait for focus to return.
	deferred bool
}

// Pass is the outcome of reconciling one snapshot.
type Pass struct {
	Messages []models.Message
	// Arrived is the newly arrived tail message, if any.
	Arrived *models.Message
	// Notification is set when the arrival must be shown to the user.
	Notification *notify.Notification
	// ReceiptsWritten counts successful read-receipt writes.
	ReceiptsWritten int
	// ReceiptsDeferred is set when receipts wait for focus.
	ReceiptsDeferred bool
}

func New(cfg Config) *Engine {
	permission := cfg.Permission
	if permission == nil {
		permission = func() notify.Permission { return notify.PermissionDefault }
	}
	return &Engine{
		self:       cfg.Self,
		profiles:   cfg.Profiles,
		receipts:   cfg.Receipts,
		permission: permission,
		cache:      NewProfileCache(),
		focused:    cfg.Focused,
	}
}

// Reconcile processes snapshot S against the retained state.
func (e *Engine) Reconcile(ctx context.Context, snapshot []models.Message) Pass {
	ordered := Order(snapshot)
	pass := Pass{Messages: ordered}

	// Size delta only. A reorder or an edit between two snapshots of the
	// same length is not detected.
	if len(ordered) > e.prevCount && e.prevCount > 0 {
		tail := ordered[len(ordered)-1]
		pass.Arrived = &tail
	}

	e.resolveProfiles(ctx, ordered)
	e.messages = ordered

	if e.focused {
		pass.ReceiptsWritten = e.writeReceipts(ctx)
	} else if len(PendingReceipts(ordered, e.self)) > 0 {
		e.deferred = true
		pass.ReceiptsDeferred = true
	}

	if ShouldNotify(pass.Arrived, e.self, e.focused, e.permission()) {
		pass.Notification = &notify.Notification{
			Title:     e.DisplayName(*pass.Arrived),
			Body:      pass.Arrived.Text,
			MessageID: pass.Arrived.ID,
		}
	}

	e.prevCount = len(ordered)
	return pass
}

// SetFocus records the window focus state. A transition to focused
// flushes deferred receipts and returns how many were written.
func (e *Engine) SetFocus(ctx context.Context, focused bool) int {
	wasFocused := e.focused
	e.focused = focused
	if !focused || wasFocused || !e.deferred {
		return 0
	}
	return e.writeReceipts(ctx)
}

func (e *Engine) Focused() bool {
	return e.focused
}

// Messages returns the last reconciled ordered snapshot.
func (e *Engine) Messages() []models.Message {
	return e.messages
}

func (e *Engine) DisplayName(m models.Message) string {
	return DisplayName(m, e.self, e.cache)
}

// Cache exposes the profile cache, e.g. to seed the own profile.
func (e *Engine) Cache() *ProfileCache {
	return e.cache
}

func (e *Engine) resolveProfiles(ctx context.Context, messages []models.Message) {
	if e.profiles == nil {
		return
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, m := range messages {
		if _, ok := seen[m.AuthorID]; ok || m.AuthorID == e.self {
			continue
		}
		seen[m.AuthorID] = struct{}{}
		if _, ok := e.cache.Get(m.AuthorID); ok {
			continue
		}
		missing = append(missing, m.AuthorID)
	}
	if len(missing) == 0 {
		return
	}

	var (
		mu      sync.Mutex
		fetched []models.Profile
		g       errgroup.Group
	)
	for _, id := range missing {
		g.Go(func() error {
			p, err := e.profiles.GetProfile(ctx, id)
			if errors.Is(err, models.ErrNotFound) {
				slog.Debug("author has no profile", "account_id", id)
				return nil
			}
			if err != nil {
				slog.Warn("profile fetch failed", "account_id", id, "error", err)
				return nil
			}
			p.AccountID = id
			mu.Lock()
			fetched = append(fetched, p)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range fetched {
		e.cache.Set(p)
	}
}

func (e *Engine) writeReceipts(ctx context.Context) int {
	e.deferred = false
	if e.receipts == nil {
		return 0
	}

	written := 0
	for _, id := range PendingReceipts(e.messages, e.self) {
		if err := e.receipts.MarkRead(ctx, id, e.self); err != nil {
			slog.Warn("read receipt failed", "message_id", id, "error", err)
			continue
		}
		written++
	}
	return written
}
