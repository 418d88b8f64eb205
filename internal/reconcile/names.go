package reconcile

import (
	"sort"

	"kidoku/internal/models"
	"kidoku/internal/notify"
)

// DisplayName resolves the author label of m as seen by self. Own
// messages are unlabeled. Otherwise the nickname stored on the message
// wins over the cached profile nickname, which wins over the raw email.
func DisplayName(m models.Message, self string, cache *ProfileCache) string {
	if m.AuthorID == self {
		return ""
	}
	if m.AuthorNickname != "" {
		return m.AuthorNickname
	}
	if cache != nil {
		if p, ok := cache.Get(m.AuthorID); ok && p.Nickname != "" {
			return p.Nickname
		}
	}
	return m.AuthorEmail
}

// Order returns a copy of snapshot sorted by creation time. Equal
// timestamps keep their snapshot positions.
func Order(snapshot []models.Message) []models.Message {
	ordered := make([]models.Message, len(snapshot))
	copy(ordered, snapshot)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered
}

// ShouldNotify decides whether a newly arrived message raises a
// notification. arrived is nil when the pass found no new tail message.
func ShouldNotify(arrived *models.Message, self string, focused bool, permission notify.Permission) bool {
	if arrived == nil || arrived.AuthorID == self {
		return false
	}
	return !focused && permission == notify.PermissionGranted
}

// PendingReceipts lists the ids of messages by others that self has not
// read yet, each id once.
func PendingReceipts(messages []models.Message, self string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, m := range messages {
		if m.AuthorID == self || m.IsReadBy(self) {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	return ids
}
