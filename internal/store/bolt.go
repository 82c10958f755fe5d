package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements KV using BoltDB, one bucket per namespace.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database and its namespaces.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, ns := range []string{NamespaceWiFi, NamespaceLED, NamespaceSchedule} {
			if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(namespace, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", namespace, key, ErrNotFound)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", namespace, key, ErrNotFound)
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return out, nil
}

func (s *BoltStore) GetAll(namespace string, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if v := b.Get([]byte(k)); v != nil {
				out[k] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, namespace, err)
	}
	return out, nil
}

func (s *BoltStore) Put(namespace, key string, value []byte) error {
	return s.PutAll(namespace, map[string][]byte{key: value})
}

func (s *BoltStore) PutAll(namespace string, values map[string][]byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		for k, v := range values {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, namespace, err)
	}
	return nil
}

func (s *BoltStore) Delete(namespace string, keys ...string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil // no bucket = nothing to delete
		}
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, namespace, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// wrap leaves ErrNotFound untouched and marks everything else unavailable.
func (s *BoltStore) wrap(err error) error {
	if isNotFound(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
