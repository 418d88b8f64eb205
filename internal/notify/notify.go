// Package notify delivers "new message" alerts to the user outside the
// chat window.
package notify

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("notification permission not granted")
)

// Permission mirrors the browser notification permission states.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

type Notification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	MessageID string `json:"messageId,omitempty"`
}

// Handle is a shown notification.
type Handle interface {
	// Dismiss removes the notification. Calling it more than once is fine.
	Dismiss()
}

type Notifier interface {
	Permission() Permission
	Notify(ctx context.Context, n Notification) (Handle, error)
}

// Disabled never has permission.
type Disabled struct{}

func (Disabled) Permission() Permission { return PermissionDenied }

func (Disabled) Notify(ctx context.Context, n Notification) (Handle, error) {
	return nil, ErrPermissionDenied
}

// onceHandle runs dismiss at most once.
type onceHandle struct {
	once    sync.Once
	dismiss func()
}

func newHandle(dismiss func()) *onceHandle {
	return &onceHandle{dismiss: dismiss}
}

func (h *onceHandle) Dismiss() {
	h.once.Do(func() {
		if h.dismiss != nil {
			h.dismiss()
		}
	})
}
