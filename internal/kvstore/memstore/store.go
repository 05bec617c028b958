// Package memstore is an in-process, map-backed kvstore.Store used by
// every other package's unit tests in place of a live Cassandra
// cluster. Grounded on storj-storj/private/kvstore/teststore, which
// plays the identical role for storj's own kvstore.Store interface.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// Store is a sorted, mutex-protected map. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, key kvstore.Key, _ kvstore.Consistency) (kvstore.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, kvstore.ErrKeyNotFound
	}
	out := make(kvstore.Value, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Put(ctx context.Context, key kvstore.Key, value kvstore.Value, _ kvstore.Consistency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
	return nil
}

func (s *Store) Delete(ctx context.Context, key kvstore.Key, _ kvstore.Consistency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

func (s *Store) Range(ctx context.Context, prefix kvstore.Key, fn func(ctx context.Context, item kvstore.Item) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	items := make([]kvstore.Item, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(s.data[k]))
		copy(v, s.data[k])
		items = append(items, kvstore.Item{Key: []byte(k), Value: v})
	}
	s.mu.RUnlock()

	for _, item := range items {
		if err := fn(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
