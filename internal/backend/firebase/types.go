package firebase

import (
	"time"

	"kidoku/internal/models"
)

const (
	userCollection    = "users"
	messageCollection = "messages"

	fieldCreatedAt = "createdAt"
	fieldReadBy    = "readBy"
)

type profileDoc struct {
	UID       string    `firestore:"uid"`
	Email     string    `firestore:"email"`
	Nickname  string    `firestore:"nickname"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type messageDoc struct {
	Text      string    `firestore:"text"`
	UID       string    `firestore:"uid"`
	Email     string    `firestore:"email"`
	Nickname  string    `firestore:"nickname"`
	CreatedAt time.Time `firestore:"createdAt"`
	ReadBy    []string  `firestore:"readBy"`
}

func (d profileDoc) toModel() models.Profile {
	return models.Profile{
		AccountID: d.UID,
		Email:     d.Email,
		Nickname:  d.Nickname,
		CreatedAt: d.CreatedAt,
	}
}

func (d messageDoc) toModel(id string) models.Message {
	return models.Message{
		ID:             id,
		Text:           d.Text,
		AuthorID:       d.UID,
		AuthorEmail:    d.Email,
		AuthorNickname: d.Nickname,
		CreatedAt:      d.CreatedAt,
		ReadBy:         d.ReadBy,
	}
}
