package firebase

import (
	"context"
	"os"
	"testing"
	"time"

	"kidoku/internal/backend"
	"kidoku/internal/models"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// stubIterator returns err from Next, or blocks until Stop when err is nil.
type stubIterator struct {
	err     error
	stopped chan struct{}
}

func (it *stubIterator) Next() (*firestore.QuerySnapshot, error) {
	if it.err != nil {
		return nil, it.err
	}
	<-it.stopped
	return nil, status.Error(codes.Canceled, "stopped")
}

func (it *stubIterator) Stop() {
	select {
	case <-it.stopped:
	default:
		close(it.stopped)
	}
}

func startSubscription(it *stubIterator) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		it:     it,
		cancel: cancel,
		events: make(chan backend.SnapshotEvent, 1),
		done:   make(chan struct{}),
	}
	go sub.run(ctx)
	return sub
}

func nextEvent(t *testing.T, events <-chan backend.SnapshotEvent) (backend.SnapshotEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-events:
		return ev, ok
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for snapshot event")
		return backend.SnapshotEvent{}, false
	}
}

func TestSubscription_ErrorThenClose(t *testing.T) {
	failure := status.Error(codes.PermissionDenied, "denied")
	sub := startSubscription(&stubIterator{err: failure, stopped: make(chan struct{})})
	defer func() { _ = sub.Close() }()

	ev, ok := nextEvent(t, sub.Events())
	require.True(t, ok)
	require.ErrorIs(t, ev.Err, failure)

	_, ok = nextEvent(t, sub.Events())
	require.False(t, ok, "events must be closed after an error")
}

func TestSubscription_CloseUnblocksNext(t *testing.T) {
	sub := startSubscription(&stubIterator{stopped: make(chan struct{})})

	closed := make(chan struct{})
	go func() {
		_ = sub.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	_, ok := nextEvent(t, sub.Events())
	require.False(t, ok)
	require.NoError(t, sub.Close())
}

// newEmulatorClient connects to the Firestore emulator under a fresh
// project, so runs do not see each other's documents.
func newEmulatorClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}

	fc, err := firestore.NewClient(context.Background(), "kidoku-test-"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { _ = fc.Close() })
	return &Client{firestoreClient: fc}
}

func TestClient_Emulator(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()

	_, err := c.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, c.PutProfile(ctx, models.Profile{AccountID: "u1", Email: "a@example.com", Nickname: "Tom & Jerry"}))
	p, err := c.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Tom & Jerry", p.Nickname)
	require.False(t, p.CreatedAt.IsZero())

	sub, err := c.Subscribe(ctx)
	require.NoError(t, err)

	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		id, err := c.CreateMessage(ctx, models.Message{Text: text, AuthorID: "u1", ReadBy: []string{"u1"}})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, c.MarkRead(ctx, ids[0], "u2"))
	require.NoError(t, c.MarkRead(ctx, ids[0], "u2"))

	err = c.MarkRead(ctx, "missing", "u2")
	require.ErrorIs(t, err, models.ErrNotFound)

	deadline := time.After(10 * time.Second)
	for {
		var ev backend.SnapshotEvent
		select {
		case ev = <-sub.Events():
		case <-deadline:
			t.Fatal("timeout waiting for the ordered snapshot")
		}
		require.NoError(t, ev.Err)
		if len(ev.Messages) == 3 && len(ev.Messages[0].ReadBy) == 2 {
			require.Equal(t, "first", ev.Messages[0].Text)
			require.Equal(t, "second", ev.Messages[1].Text)
			require.Equal(t, "third", ev.Messages[2].Text)
			require.Equal(t, []string{"u1", "u2"}, ev.Messages[0].ReadBy)
			break
		}
	}

	require.NoError(t, sub.Close())
	for range sub.Events() {
	}
}
