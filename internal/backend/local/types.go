package local

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBAccount struct {
	ID           string `msgpack:"id"`
	Email        string `msgpack:"email"`
	PasswordHash string `msgpack:"passwordHash"`
}

func (a *DBAccount) Key() []byte {
	return []byte(a.Email)
}

func (a *DBAccount) MarshalBinary() (data []byte, err error) {
	type alias DBAccount
	return msgpack.Marshal((*alias)(a))
}

func (a *DBAccount) UnmarshalBinary(data []byte) error {
	type alias DBAccount
	return msgpack.Unmarshal(data, (*alias)(a))
}

type DBProfile struct {
	UID       string `msgpack:"uid"`
	Email     string `msgpack:"email"`
	Nickname  string `msgpack:"nickname"`
	CreatedAt int64  `msgpack:"createdAt"` // Unix nanoseconds
}

func (p *DBProfile) Key() []byte {
	return []byte(p.UID)
}

func (p *DBProfile) MarshalBinary() (data []byte, err error) {
	type alias DBProfile
	return msgpack.Marshal((*alias)(p))
}

func (p *DBProfile) UnmarshalBinary(data []byte) error {
	type alias DBProfile
	return msgpack.Unmarshal(data, (*alias)(p))
}

type DBMessage struct {
	Seq       uint64   `msgpack:"seq"` // Insertion order, breaks createdAt ties
	ID        string   `msgpack:"id"`
	Text      string   `msgpack:"text"`
	UID       string   `msgpack:"uid"`
	Email     string   `msgpack:"email"`
	Nickname  string   `msgpack:"nickname"`
	CreatedAt int64    `msgpack:"createdAt"` // Unix nanoseconds
	ReadBy    []string `msgpack:"readBy"`
}

func (m *DBMessage) Key() []byte {
	return seqKey(m.Seq)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
