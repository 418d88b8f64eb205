package ws

import (
	"context"
	"log/slog"
	"sync"

	"kidoku/internal/notify"
)

// browserNotifier asks the connected page to show notifications. The page
// reports the permission it holds.
type browserNotifier struct {
	out chan<- ServerMessage

	mu         sync.RWMutex
	permission notify.Permission
}

func newBrowserNotifier(out chan<- ServerMessage) *browserNotifier {
	return &browserNotifier{
		out:        out,
		permission: notify.PermissionDefault,
	}
}

func (b *browserNotifier) setPermission(p notify.Permission) {
	switch p {
	case notify.PermissionGranted, notify.PermissionDenied, notify.PermissionDefault:
	default:
		slog.Warn("ignoring unknown notification permission", "permission", p)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.permission = p
}

func (b *browserNotifier) Permission() notify.Permission {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.permission
}

func (b *browserNotifier) Notify(ctx context.Context, n notify.Notification) (notify.Handle, error) {
	if b.Permission() != notify.PermissionGranted {
		return nil, notify.ErrPermissionDenied
	}

	b.enqueue(ServerMessage{Type: ServerMessageTypeNotification, Notification: &n})
	return dismissFunc(func() {
		b.enqueue(ServerMessage{
			Type:         ServerMessageTypeDismiss,
			Notification: &notify.Notification{MessageID: n.MessageID},
		})
	}), nil
}

// enqueue never blocks: the session loop calls Notify, and the connection
// loop may itself be waiting on the session.
func (b *browserNotifier) enqueue(msg ServerMessage) {
	select {
	case b.out <- msg:
	default:
		slog.Warn("dropping notification, connection is backed up", "type", msg.Type)
	}
}

type dismissFunc func()

func (f dismissFunc) Dismiss() { f() }
