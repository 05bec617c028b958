package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/kvstore/boltstore"
)

func open(t *testing.T) *boltstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contentengine.db")
	s, err := boltstore.New(path, "contentengine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	_, err := s.Get(ctx, []byte("a/b"), kvstore.Default)
	require.ErrorIs(t, err, kvstore.ErrKeyNotFound)

	require.NoError(t, s.Put(ctx, []byte("a/b"), []byte("hello"), kvstore.Default))
	v, err := s.Get(ctx, []byte("a/b"), kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), []byte(v))

	require.NoError(t, s.Delete(ctx, []byte("a/b"), kvstore.Default))
	_, err = s.Get(ctx, []byte("a/b"), kvstore.Default)
	require.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestRangeOrderedByPrefix(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	items := map[string]string{
		"full/path/3": "c",
		"full/path/1": "a",
		"other/path":  "z",
		"full/path/2": "b",
	}
	for k, v := range items {
		require.NoError(t, s.Put(ctx, []byte(k), []byte(v), kvstore.Default))
	}

	var keys []string
	err := s.Range(ctx, []byte("full/"), func(ctx context.Context, item kvstore.Item) error {
		keys = append(keys, string(item.Key))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"full/path/1", "full/path/2", "full/path/3"}, keys)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contentengine.db")

	s1, err := boltstore.New(path, "contentengine")
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, []byte("durable"), []byte("yes"), kvstore.Default))
	require.NoError(t, s1.Close())

	s2, err := boltstore.New(path, "contentengine")
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	v, err := s2.Get(ctx, []byte("durable"), kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, []byte("yes"), []byte(v))
}
