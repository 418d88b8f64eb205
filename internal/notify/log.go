package notify

import (
	"context"
	"log/slog"
)

// Log writes notifications to the structured log. It always has
// permission; useful for headless runs and development.
type Log struct{}

func (Log) Permission() Permission { return PermissionGranted }

func (Log) Notify(ctx context.Context, n Notification) (Handle, error) {
	slog.Info("notification", "title", n.Title, "body", n.Body, "message_id", n.MessageID)
	return newHandle(func() {
		slog.Debug("notification dismissed", "message_id", n.MessageID)
	}), nil
}

// Fanout shows each notification on every backend that has permission.
type Fanout []Notifier

// Permission is granted if any backend grants it, otherwise denied if
// any denies, otherwise default.
func (f Fanout) Permission() Permission {
	result := PermissionDefault
	for _, n := range f {
		switch n.Permission() {
		case PermissionGranted:
			return PermissionGranted
		case PermissionDenied:
			result = PermissionDenied
		}
	}
	return result
}

func (f Fanout) Notify(ctx context.Context, n Notification) (Handle, error) {
	var handles []Handle
	var lastErr error
	for _, notifier := range f {
		if notifier.Permission() != PermissionGranted {
			continue
		}
		h, err := notifier.Notify(ctx, n)
		if err != nil {
			slog.Warn("notifier failed", "message_id", n.MessageID, "error", err)
			lastErr = err
			continue
		}
		handles = append(handles, h)
	}

	if len(handles) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrPermissionDenied
	}

	return newHandle(func() {
		for _, h := range handles {
			h.Dismiss()
		}
	}), nil
}
