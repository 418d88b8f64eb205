// Package backend defines the narrow contract the chat client needs from
// the hosted service: password auth, the users collection and the
// messages collection with a live ordered query.
package backend

import (
	"context"

	"kidoku/internal/models"
)

// Auth is a per-session view of the auth provider.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (models.Account, error)
	SignUp(ctx context.Context, email, password string) (models.Account, error)
	SignOut(ctx context.Context) error
	// OnAuthChange registers fn to be called with the current account (nil
	// when signed out) on every auth state change. The returned func
	// unregisters it.
	OnAuthChange(fn func(*models.Account)) (unsubscribe func())
}

// ProfileStore is the users collection.
type ProfileStore interface {
	// GetProfile returns models.ErrNotFound when the account has no profile.
	GetProfile(ctx context.Context, accountID string) (models.Profile, error)
	// PutProfile fully replaces the profile. CreatedAt is assigned by the store.
	PutProfile(ctx context.Context, profile models.Profile) error
}

// MessageStore is the messages collection.
type MessageStore interface {
	// Subscribe opens a live query over all messages ordered by creation time.
	Subscribe(ctx context.Context) (Subscription, error)
	// CreateMessage stores a new message with a server assigned timestamp
	// and returns the generated id.
	CreateMessage(ctx context.Context, message models.Message) (string, error)
	// MarkRead adds accountID to the message's read set. It is a set union,
	// repeating it is harmless.
	MarkRead(ctx context.Context, messageID, accountID string) error
}

// SnapshotEvent carries either a full ordered snapshot or an error.
type SnapshotEvent struct {
	Messages []models.Message
	Err      error
}

// Subscription is one live query. Events is closed after Close or after
// the subscription fails for good.
type Subscription interface {
	Events() <-chan SnapshotEvent
	Close() error
}
