// Package local is an embedded stand-in for the hosted chat backend. It
// keeps accounts, profiles and messages in a bbolt file and fans
// message snapshots out to in-process subscribers.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kidoku/internal/backend"
	"kidoku/internal/models"

	"github.com/google/uuid"
)

var (
	_ backend.ProfileStore = (*Backend)(nil)
	_ backend.MessageStore = (*Backend)(nil)
	_ backend.Auth         = (*Auth)(nil)
)

type Backend struct {
	storage  *BboltStorage
	accounts *Accounts
	feed     *Feed
	now      func() time.Time

	// Serializes message writes with the snapshot they publish, so
	// subscribers never see an older snapshot after a newer one.
	writeMu sync.Mutex
}

func New(path string) (*Backend, error) {
	storage, err := NewBboltStorage(path)
	if err != nil {
		return nil, err
	}

	accounts, err := NewAccounts(storage)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	return &Backend{
		storage:  storage,
		accounts: accounts,
		feed:     NewFeed(),
		now:      time.Now,
	}, nil
}

func (b *Backend) Close() error {
	return b.storage.Close()
}

// NewAuth returns a fresh signed-out auth state for one session.
func (b *Backend) NewAuth() backend.Auth {
	return b.accounts.NewAuth()
}

func (b *Backend) GetProfile(ctx context.Context, accountID string) (models.Profile, error) {
	return b.storage.GetProfile(accountID)
}

func (b *Backend) PutProfile(ctx context.Context, profile models.Profile) error {
	profile.CreatedAt = b.now()
	return b.storage.PutProfile(profile)
}

func (b *Backend) Subscribe(ctx context.Context) (backend.Subscription, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	messages, err := b.storage.ListMessages()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return b.feed.Subscribe(ctx, messages), nil
}

func (b *Backend) CreateMessage(ctx context.Context, message models.Message) (string, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	message.ID = uuid.NewString()
	message.CreatedAt = b.now()
	if err := b.storage.InsertMessage(message); err != nil {
		return "", err
	}
	b.publishLocked()
	return message.ID, nil
}

func (b *Backend) MarkRead(ctx context.Context, messageID, accountID string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	changed, err := b.storage.AddReader(messageID, accountID)
	if err != nil {
		return err
	}
	if changed {
		b.publishLocked()
	}
	return nil
}

func (b *Backend) publishLocked() {
	messages, err := b.storage.ListMessages()
	if err != nil {
		// The write already succeeded; subscribers catch up on the next change.
		slog.Error("failed to publish snapshot", "error", err)
		return
	}
	b.feed.Publish(messages)
}
