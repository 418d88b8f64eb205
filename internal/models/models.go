package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Account is the identity handed out by the auth provider.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the display identity of an account.
type Profile struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message represents a chat message as stored by the backend.
// Text and author fields never change after creation; ReadBy only grows.
type Message struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"authorId"`
	AuthorEmail    string    `json:"authorEmail"`    // Email at send time
	AuthorNickname string    `json:"authorNickname"` // Nickname at send time, may be empty
	CreatedAt      time.Time `json:"createdAt"`      // Server assigned
	ReadBy         []string  `json:"readBy"`
}

// IsReadBy reports whether accountID is in the message's read set.
func (m Message) IsReadBy(accountID string) bool {
	return slices.Contains(m.ReadBy, accountID)
}

// Readers returns the number of distinct accounts other than the author
// that have read the message.
func (m Message) Readers() int {
	seen := make(map[string]struct{}, len(m.ReadBy))
	for _, id := range m.ReadBy {
		if id == m.AuthorID {
			continue
		}
		seen[id] = struct{}{}
	}
	return len(seen)
}

// Clone returns a deep copy so that snapshot consumers cannot alias
// backend-owned slices.
func (m Message) Clone() Message {
	m.ReadBy = slices.Clone(m.ReadBy)
	return m
}

type ReadStatus string

const (
	ReadStatusUnread ReadStatus = "unread"
	ReadStatusRead   ReadStatus = "read"
)

// ReadStatusLabel is the status shown under an own message.
func ReadStatusLabel(m Message) string {
	switch n := m.Readers(); n {
	case 0:
		return string(ReadStatusUnread)
	case 1:
		return string(ReadStatusRead)
	default:
		return fmt.Sprintf("%s ×%d", ReadStatusRead, n)
	}
}

// AddReader returns readBy with accountID added if it was missing.
func AddReader(readBy []string, accountID string) []string {
	if slices.Contains(readBy, accountID) {
		return readBy
	}
	return append(readBy, accountID)
}
