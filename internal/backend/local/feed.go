package local

import (
	"context"
	"sync"

	"kidoku/internal/backend"
	"kidoku/internal/models"
)

// Feed fans snapshots of the messages collection out to live
// subscriptions. Each subscriber holds at most one pending snapshot;
// a newer snapshot replaces an unread one, since every snapshot is the
// complete ordered log.
type Feed struct {
	subscribers map[int]*subscription
	nextID      int

	mu sync.Mutex
}

func NewFeed() *Feed {
	return &Feed{
		subscribers: make(map[int]*subscription),
	}
}

type subscription struct {
	id     int
	feed   *Feed
	events chan backend.SnapshotEvent
	once   sync.Once
	stop   chan struct{}
}

func (s *subscription) Events() <-chan backend.SnapshotEvent {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.feed.remove(s.id)
		close(s.stop)
	})
	return nil
}

// Subscribe registers a subscriber and queues the initial snapshot.
// The subscription ends when ctx is done or Close is called.
func (f *Feed) Subscribe(ctx context.Context, initial []models.Message) backend.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &subscription{
		id:     f.nextID,
		feed:   f,
		events: make(chan backend.SnapshotEvent, 1),
		stop:   make(chan struct{}),
	}
	f.nextID++
	f.subscribers[s.id] = s
	deliver(s.events, backend.SnapshotEvent{Messages: cloneAll(initial)})

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.stop:
		}
	}()

	return s
}

// Publish delivers snapshot to every subscriber.
func (f *Feed) Publish(snapshot []models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subscribers {
		deliver(s.events, backend.SnapshotEvent{Messages: cloneAll(snapshot)})
	}
}

func (f *Feed) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.subscribers[id]; ok {
		delete(f.subscribers, id)
		close(s.events)
	}
}

// deliver must be called with the feed lock held, so it is the only sender.
func deliver(ch chan backend.SnapshotEvent, ev backend.SnapshotEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		// Drop the stale snapshot the subscriber has not picked up yet.
		select {
		case <-ch:
		default:
		}
	}
}

func cloneAll(messages []models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}
