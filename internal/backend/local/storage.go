package local

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"kidoku/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketAccounts   = []byte("accounts")
	bucketUsers      = []byte("users")
	bucketMessages   = []byte("messages")
	bucketMessageIDs = []byte("message_ids")
)

var (
	ErrAccountExists = errors.New("account already exists")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, bucketUsers, bucketMessages, bucketMessageIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

func put(b *bbolt.Bucket, item Storeable) error {
	data, err := item.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return b.Put(item.Key(), data)
}

// InsertAccount stores a new account. Accounts are keyed by email.
func (s *BboltStorage) InsertAccount(account DBAccount) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if b.Get(account.Key()) != nil {
			return ErrAccountExists
		}
		return put(b, &account)
	})
}

// ListAccounts returns all accounts stored in the database.
func (s *BboltStorage) ListAccounts() ([]DBAccount, error) {
	var accounts []DBAccount
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var account DBAccount
			if err := account.UnmarshalBinary(v); err != nil {
				return err
			}
			accounts = append(accounts, account)
			return nil
		})
	})
	return accounts, err
}

// GetProfile returns models.ErrNotFound if the account has no profile yet.
func (s *BboltStorage) GetProfile(accountID string) (models.Profile, error) {
	var profile models.Profile
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(accountID))
		if data == nil {
			return models.ErrNotFound
		}
		var dbProfile DBProfile
		if err := dbProfile.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		profile = models.Profile{
			AccountID: dbProfile.UID,
			Email:     dbProfile.Email,
			Nickname:  dbProfile.Nickname,
			CreatedAt: time.Unix(0, dbProfile.CreatedAt),
		}
		return nil
	})
	return profile, err
}

// PutProfile replaces the whole profile document.
func (s *BboltStorage) PutProfile(profile models.Profile) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket(bucketUsers), &DBProfile{
			UID:       profile.AccountID,
			Email:     profile.Email,
			Nickname:  profile.Nickname,
			CreatedAt: profile.CreatedAt.UnixNano(),
		})
	})
}

// InsertMessage appends a message. The id and timestamp must already be set.
func (s *BboltStorage) InsertMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages)
		idBucket := tx.Bucket(bucketMessageIDs)

		if idBucket.Get([]byte(message.ID)) != nil {
			return fmt.Errorf("message %s already exists", message.ID)
		}

		seq, err := msgBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		dbMessage := DBMessage{
			Seq:       seq,
			ID:        message.ID,
			Text:      message.Text,
			UID:       message.AuthorID,
			Email:     message.AuthorEmail,
			Nickname:  message.AuthorNickname,
			CreatedAt: message.CreatedAt.UnixNano(),
			ReadBy:    slices.Clone(message.ReadBy),
		}
		if err := put(msgBucket, &dbMessage); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}
		return idBucket.Put([]byte(message.ID), dbMessage.Key())
	})
}

// AddReader adds accountID to the message's read set. It reports whether
// the set changed.
func (s *BboltStorage) AddReader(messageID, accountID string) (bool, error) {
	changed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketMessageIDs).Get([]byte(messageID))
		if key == nil {
			return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
		}

		msgBucket := tx.Bucket(bucketMessages)
		data := msgBucket.Get(key)
		if data == nil {
			return fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
		}

		var dbMessage DBMessage
		if err := dbMessage.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("failed to unmarshal message: %w", err)
		}

		readBy := models.AddReader(dbMessage.ReadBy, accountID)
		if len(readBy) == len(dbMessage.ReadBy) {
			return nil
		}
		dbMessage.ReadBy = readBy
		changed = true
		return put(msgBucket, &dbMessage)
	})
	return changed, err
}

// ListMessages returns every message ordered by creation time. Messages
// with equal timestamps keep insertion order.
func (s *BboltStorage) ListMessages() ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMessages).ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				ID:             dbMsg.ID,
				Text:           dbMsg.Text,
				AuthorID:       dbMsg.UID,
				AuthorEmail:    dbMsg.Email,
				AuthorNickname: dbMsg.Nickname,
				CreatedAt:      time.Unix(0, dbMsg.CreatedAt),
				ReadBy:         dbMsg.ReadBy,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}
