// Package boltstore is a durable, single-file kvstore.Store backed by
// go.etcd.io/bbolt, so `contentctl serve` has a real embedded backend
// without standing up a Cassandra cluster. Grounded on
// storj-storj/private/kvstore/boltdb, which wraps the same library
// (originally boltdb/bolt, now its etcd-io fork) behind the same
// kvstore.Store shape.
package boltstore

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// Store is a single bbolt bucket addressed as a flat byte-string
// keyspace, matching storj's boltdb.Client.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

// New opens (creating if necessary) a bbolt database at path and
// ensures bucket exists.
func New(path string, bucket string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boltstore: create bucket %s: %w", bucket, err)
	}
	return &Store{db: db, bucket: []byte(bucket)}, nil
}

func (s *Store) Get(ctx context.Context, key kvstore.Key, _ kvstore.Consistency) (kvstore.Value, error) {
	var out kvstore.Value
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(s.bucket).Get(key)
		if v == nil {
			return kvstore.ErrKeyNotFound
		}
		out = make(kvstore.Value, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Put(ctx context.Context, key kvstore.Key, value kvstore.Value, _ kvstore.Consistency) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put(key, value)
	})
}

func (s *Store) Delete(ctx context.Context, key kvstore.Key, _ kvstore.Consistency) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete(key)
	})
}

func (s *Store) Range(ctx context.Context, prefix kvstore.Key, fn func(ctx context.Context, item kvstore.Item) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			item := kvstore.Item{Key: append([]byte{}, k...), Value: append([]byte{}, v...)}
			if err := fn(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
