package session

import (
	"sync"

	"kidoku/internal/transcript"
)

// watchers fans views out to observers. A slow observer only ever gets
// the newest view.
type watchers struct {
	chans  map[int]chan transcript.View
	nextID int
	last   transcript.View

	mu sync.Mutex
}

func newWatchers(initial transcript.View) *watchers {
	return &watchers{
		chans: make(map[int]chan transcript.View),
		last:  initial,
	}
}

func (w *watchers) add() (<-chan transcript.View, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan transcript.View, 1)
	ch <- w.last
	w.chans[id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if ch, ok := w.chans[id]; ok {
			delete(w.chans, id)
			close(ch)
		}
	}
}

func (w *watchers) publish(v transcript.View) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.last = v
	for _, ch := range w.chans {
		replace(ch, v)
	}
}

func replace(ch chan transcript.View, v transcript.View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (w *watchers) current() transcript.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.chans {
		delete(w.chans, id)
		close(ch)
	}
}
