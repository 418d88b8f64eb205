// Package firebase talks to Cloud Firestore and Firebase Auth.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kidoku/internal/backend"
	"kidoku/internal/models"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	_ backend.ProfileStore = (*Client)(nil)
	_ backend.MessageStore = (*Client)(nil)
)

type Config struct {
	ProjectID string
	// APIKey is the web API key used for password sign-in.
	APIKey string
	// CredentialsFile is a service account file. Application default
	// credentials are used when empty.
	CredentialsFile string
}

type Client struct {
	firestoreClient *firestore.Client
	identity        *identitytoolkit.Service
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firestore client: %w", err)
	}

	identity, err := identitytoolkit.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		_ = firestoreClient.Close()
		return nil, fmt.Errorf("initializing identity toolkit: %w", err)
	}

	return &Client{
		firestoreClient: firestoreClient,
		identity:        identity,
	}, nil
}

func (c *Client) Close() error {
	return c.firestoreClient.Close()
}

// NewAuth returns a fresh signed-out auth state for one session.
func (c *Client) NewAuth() backend.Auth {
	return &Auth{identity: c.identity}
}

func (c *Client) GetProfile(ctx context.Context, accountID string) (models.Profile, error) {
	docSnap, err := c.firestoreClient.Collection(userCollection).Doc(accountID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.Profile{}, models.ErrNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("unable to fetch profile %s: %w", accountID, err)
	}

	var doc profileDoc
	if err := docSnap.DataTo(&doc); err != nil {
		return models.Profile{}, fmt.Errorf("unable to unmarshal profile %s: %w", accountID, err)
	}
	return doc.toModel(), nil
}

func (c *Client) PutProfile(ctx context.Context, profile models.Profile) error {
	_, err := c.firestoreClient.Collection(userCollection).Doc(profile.AccountID).Set(ctx, map[string]interface{}{
		"uid":          profile.AccountID,
		"email":        profile.Email,
		"nickname":     profile.Nickname,
		fieldCreatedAt: firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("unable to save profile %s: %w", profile.AccountID, err)
	}
	return nil
}

func (c *Client) CreateMessage(ctx context.Context, message models.Message) (string, error) {
	ref, _, err := c.firestoreClient.Collection(messageCollection).Add(ctx, map[string]interface{}{
		"text":         message.Text,
		"uid":          message.AuthorID,
		"email":        message.AuthorEmail,
		"nickname":     message.AuthorNickname,
		fieldCreatedAt: firestore.ServerTimestamp,
		fieldReadBy:    message.ReadBy,
	})
	if err != nil {
		return "", fmt.Errorf("unable to add message: %w", err)
	}
	return ref.ID, nil
}

func (c *Client) MarkRead(ctx context.Context, messageID, accountID string) error {
	_, err := c.firestoreClient.Collection(messageCollection).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: fieldReadBy, Value: firestore.ArrayUnion(accountID)},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	return err
}

func (c *Client) Subscribe(ctx context.Context) (backend.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := c.firestoreClient.Collection(messageCollection).OrderBy(fieldCreatedAt, firestore.Asc).Snapshots(ctx)

	sub := &subscription{
		it:     it,
		cancel: cancel,
		events: make(chan backend.SnapshotEvent, 1),
		done:   make(chan struct{}),
	}
	go sub.run(ctx)
	return sub, nil
}

// snapshotIterator is the part of *firestore.QuerySnapshotIterator a
// subscription drives.
type snapshotIterator interface {
	Next() (*firestore.QuerySnapshot, error)
	Stop()
}

type subscription struct {
	it     snapshotIterator
	cancel context.CancelFunc
	events chan backend.SnapshotEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan backend.SnapshotEvent {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.it.Stop()
	})
	<-s.done
	return nil
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		qs, err := s.it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
				return
			}
			s.send(ctx, backend.SnapshotEvent{Err: err})
			return
		}

		docs, err := qs.Documents.GetAll()
		if err != nil {
			s.send(ctx, backend.SnapshotEvent{Err: err})
			return
		}

		messages := make([]models.Message, 0, len(docs))
		for _, docSnap := range docs {
			var doc messageDoc
			if err := docSnap.DataTo(&doc); err != nil {
				slog.Error("unable to unmarshal message", "message_id", docSnap.Ref.ID, "error", err)
				continue
			}
			messages = append(messages, doc.toModel(docSnap.Ref.ID))
		}

		s.replace(backend.SnapshotEvent{Messages: messages})
	}
}

// replace queues ev, dropping a snapshot the consumer has not read yet.
func (s *subscription) replace(ev backend.SnapshotEvent) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

// send blocks until ev is taken or the subscription is closed.
func (s *subscription) send(ctx context.Context, ev backend.SnapshotEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
