package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var subscribersBucket = []byte("subscribers")

// BoltStore keeps subscribers in a bbolt file keyed by address.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open subscribers db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(subscribersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create subscribers bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Add(_ context.Context, raw string) (Subscriber, error) {
	email, err := NormalizeEmail(raw)
	if err != nil {
		return Subscriber{}, err
	}

	sub := Subscriber{Email: email, SubscribedAt: s.now().UTC()}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(subscribersBucket)
		if b.Get([]byte(email)) != nil {
			return ErrAlreadySubscribed
		}
		val, err := json.Marshal(sub)
		if err != nil {
			return err
		}
		return b.Put([]byte(email), val)
	})
	if err != nil {
		return Subscriber{}, err
	}
	return sub, nil
}

// List returns subscribers ordered by address.
func (s *BoltStore) List(context.Context) ([]Subscriber, error) {
	var out []Subscriber
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(subscribersBucket).ForEach(func(_, v []byte) error {
			var sub Subscriber
			if err := json.Unmarshal(v, &sub); err != nil {
				return err
			}
			out = append(out, sub)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	if out == nil {
		out = []Subscriber{}
	}
	return out, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
