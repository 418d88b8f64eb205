// Package transcript builds the view model the presentation layer
// renders for one session.
package transcript

import (
	"kidoku/internal/content"
	"kidoku/internal/models"
)

type Status string

const (
	StatusSignedOut      Status = "signed-out"
	StatusLoadingProfile Status = "loading-profile"
	StatusNeedsProfile   Status = "needs-profile"
	StatusReady          Status = "ready"
)

// Entry is one rendered chat bubble.
type Entry struct {
	ID        string `json:"id"`
	Own       bool   `json:"own"`
	Author    string `json:"author,omitempty"` // Empty for own messages
	Text      string `json:"text"`             // HTML-escaped
	HTML      string `json:"html"`
	Timestamp int64  `json:"timestamp"`           // Unix milliseconds
	ReadLabel string `json:"readLabel,omitempty"` // Own messages only
}

type View struct {
	Status   Status  `json:"status"`
	Email    string  `json:"email,omitempty"`
	Nickname string  `json:"nickname,omitempty"`
	Focused  bool    `json:"focused"`
	Entries  []Entry `json:"entries"`
	// Warning describes a non-fatal problem, e.g. a lost live feed.
	Warning string `json:"warning,omitempty"`
}

// Build renders ordered messages as seen by self. name resolves the
// author label of messages by others.
func Build(messages []models.Message, self string, name func(models.Message) string) []Entry {
	entries := make([]Entry, 0, len(messages))
	for _, m := range messages {
		e := Entry{
			ID:        m.ID,
			Own:       m.AuthorID == self,
			Text:      content.Escape(m.Text),
			HTML:      content.Render(m.Text),
			Timestamp: m.CreatedAt.UnixMilli(),
		}
		if e.Own {
			e.ReadLabel = models.ReadStatusLabel(m)
		} else if name != nil {
			e.Author = name(m)
		}
		entries = append(entries, e)
	}
	return entries
}
