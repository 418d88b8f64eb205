package firebase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageDoc_ToModel(t *testing.T) {
	created := time.Unix(1700000000, 0)
	doc := messageDoc{
		Text:      "こんにちは",
		UID:       "u1",
		Email:     "a@example.com",
		Nickname:  "A",
		CreatedAt: created,
		ReadBy:    []string{"u1", "u2"},
	}

	m := doc.toModel("m1")
	require.Equal(t, "m1", m.ID)
	require.Equal(t, "u1", m.AuthorID)
	require.Equal(t, "A", m.AuthorNickname)
	require.Equal(t, "a@example.com", m.AuthorEmail)
	require.True(t, m.CreatedAt.Equal(created))
	require.True(t, m.IsReadBy("u2"))
}

func TestProfileDoc_ToModel(t *testing.T) {
	p := profileDoc{UID: "u1", Email: "a@example.com", Nickname: "A"}.toModel()
	require.Equal(t, "u1", p.AccountID)
	require.Equal(t, "A", p.Nickname)
}
