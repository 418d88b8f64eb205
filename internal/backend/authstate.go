package backend

import (
	"sync"

	"kidoku/internal/models"
)

// AuthState keeps the signed-in account of one session and the
// listeners registered through OnAuthChange. Adapters embed it.
type AuthState struct {
	mu        sync.Mutex
	current   *models.Account
	listeners map[int]func(*models.Account)
	nextID    int
}

// Current returns the signed-in account, or nil.
func (s *AuthState) Current() *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	account := *s.current
	return &account
}

// SetCurrent replaces the signed-in account and notifies listeners.
func (s *AuthState) SetCurrent(account *models.Account) {
	s.mu.Lock()
	if account != nil {
		copied := *account
		account = &copied
	}
	s.current = account
	listeners := make([]func(*models.Account), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(account)
	}
}

func (s *AuthState) OnAuthChange(fn func(*models.Account)) func() {
	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(*models.Account))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	current := s.current
	s.mu.Unlock()

	// Like the hosted SDKs, a new listener learns the current state right away.
	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
