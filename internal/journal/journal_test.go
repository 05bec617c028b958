package journal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/kvstore/memstore"
)

func newEngine(now int64) (*journal.Engine, *kvstore.Table) {
	table := kvstore.NewTable(memstore.New(), "journal")
	return journal.New(table, func() int64 { return now }), table
}

func TestAddAndDoneClearsEntry(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(1000)
	chain := journal.NewChain()
	list := eng.AcquireList(chain)

	require.NoError(t, list.AddPageURL(ctx, "http://x/new"))
	pending, err := eng.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, list.Done(ctx))
	pending, err = eng.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestNestedChainOnlyClearsWhenOutermostDone(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(1000)
	chain := journal.NewChain()

	outer := eng.AcquireList(chain)
	require.NoError(t, outer.AddPageURL(ctx, "http://x/parent"))

	inner := eng.AcquireList(chain)
	require.NoError(t, inner.AddPageURL(ctx, "http://x/child"))
	require.NoError(t, inner.Done(ctx))

	pending, err := eng.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2, "entries survive until the outer frame completes")

	require.NoError(t, outer.Done(ctx))
	pending, err = eng.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMissingDoneLeavesEntry(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(1000)
	chain := journal.NewChain()
	list := eng.AcquireList(chain)
	require.NoError(t, list.AddPageURL(ctx, "http://x/crashed"))
	// Simulate a crash: no Done() call.

	pending, err := eng.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

// TestReapDestroysStaleEntries implements scenario S4 from spec §8.
func TestReapDestroysStaleEntries(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(0)
	chain := journal.NewChain()
	list := eng.AcquireList(chain)
	require.NoError(t, list.AddPageURL(ctx, "http://x/new"))

	const fiveMinutes = int64(5 * 60 * 1e6)
	sixMinutesLater := int64(6 * 60 * 1e6)

	var destroyed []string
	reaped, err := eng.Reap(ctx, sixMinutesLater, fiveMinutes, func(ctx context.Context, url string) error {
		destroyed = append(destroyed, url)
		return nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)
	require.Equal(t, []string{"http://x/new"}, destroyed)

	pending, err := eng.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReapDropsRowEvenOnDestroyError(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(0)
	chain := journal.NewChain()
	list := eng.AcquireList(chain)
	require.NoError(t, list.AddPageURL(ctx, "http://x/new"))

	var loggedErr error
	reaped, err := eng.Reap(ctx, 1_000_000, 0, func(ctx context.Context, url string) error {
		return require.AnError
	}, func(url string, err error) {
		loggedErr = err
	})
	require.NoError(t, err)
	require.Equal(t, 1, reaped)
	require.Error(t, loggedErr)

	pending, err := eng.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDoneTwiceErrors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(0)
	list := eng.AcquireList(journal.NewChain())
	require.NoError(t, list.Done(ctx))
	require.ErrorIs(t, list.Done(ctx), journal.ErrAlreadyDone)
}
