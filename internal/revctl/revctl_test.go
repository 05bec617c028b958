package revctl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/kvstore/memstore"
	"github.com/snapwebsites/contentengine/internal/revctl"
)

func newControl(t *testing.T) (*revctl.Control, *kvstore.Table, *kvstore.Table) {
	t.Helper()
	store := memstore.New()
	content := kvstore.NewTable(store, "content")
	branch := kvstore.NewTable(store, "branch")
	ctrl := revctl.New(content, branch, distlock.NewInProcess(), func() int64 { return 42 })
	return ctrl, content, branch
}

func TestNewBranchNeverAllocatesZero(t *testing.T) {
	ctrl, _, _ := newControl(t)
	ctx := context.Background()

	b1, err := ctrl.NewBranch(ctx, "http://x/a", "")
	require.NoError(t, err)
	require.EqualValues(t, keying.FirstUserBranch, b1)

	b2, err := ctrl.NewBranch(ctx, "http://x/a", "")
	require.NoError(t, err)
	require.EqualValues(t, 2, b2)
}

func TestLastBranchMonotonic(t *testing.T) {
	ctrl, _, _ := newControl(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ctrl.NewBranch(ctx, "http://x/a", "")
		require.NoError(t, err)
	}
	last, ok, err := ctrl.CurrentBranch(ctx, "http://x/a", false)
	_ = last
	require.NoError(t, err)
	require.False(t, ok) // current_branch pointer was never set, only last_branch

	require.NoError(t, ctrl.SetBranch(ctx, "http://x/a", 3, false))
	cur, ok, err := ctrl.CurrentBranch(ctx, "http://x/a", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, cur)

	// Setting a branch below last_branch must not lower it.
	require.NoError(t, ctrl.SetBranch(ctx, "http://x/a", 1, false))
	b6, err := ctrl.NewBranch(ctx, "http://x/a", "")
	require.NoError(t, err)
	require.EqualValues(t, 6, b6)
}

func TestNewRevisionAllocatesSequentially(t *testing.T) {
	ctrl, _, _ := newControl(t)
	ctx := context.Background()

	_, err := ctrl.NewBranch(ctx, "http://x/a", "")
	require.NoError(t, err)

	r1, err := ctrl.NewRevision(ctx, "http://x/a", 1, "", false, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, r1)

	r2, err := ctrl.NewRevision(ctx, "http://x/a", 1, "", false, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, r2)
}

func TestNewRevisionRejectsBranchBeyondLast(t *testing.T) {
	ctrl, _, _ := newControl(t)
	ctx := context.Background()
	_, err := ctrl.NewBranch(ctx, "http://x/a", "")
	require.NoError(t, err)

	_, err = ctrl.NewRevision(ctx, "http://x/a", 99, "", false, nil, nil)
	require.Error(t, err)
}

func TestNewRevisionRepeatCopies(t *testing.T) {
	ctrl, _, _ := newControl(t)
	ctx := context.Background()
	_, err := ctrl.NewBranch(ctx, "http://x/a", "")
	require.NoError(t, err)

	r1, err := ctrl.NewRevision(ctx, "http://x/a", 1, "", false, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, r1)

	var copiedFrom, copiedTo string
	r2, err := ctrl.NewRevision(ctx, "http://x/a", 1, "", true, nil, func(ctx context.Context, from, to string) error {
		copiedFrom, copiedTo = from, to
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, r2)
	require.Equal(t, keying.RevisionKey("http://x/a", 1, 1, ""), copiedFrom)
	require.Equal(t, keying.RevisionKey("http://x/a", 1, 2, ""), copiedTo)
}

func TestCopyBranchRequiresOrderAndExistence(t *testing.T) {
	ctrl, _, branch := newControl(t)
	ctx := context.Background()

	err := ctrl.CopyBranch(ctx, "http://x/a", 2, 1)
	require.ErrorIs(t, err, revctl.ErrCopyBranchOrder)

	err = ctrl.CopyBranch(ctx, "http://x/a", 1, 2)
	require.ErrorIs(t, err, revctl.ErrSourceBranchMissing)

	srcKey := keying.BranchKey("http://x/a", 1)
	require.NoError(t, branch.PutCell(ctx, srcKey, "content::created", []byte{0, 0, 0, 0, 0, 0, 0, 1}, kvstore.Default))
	require.NoError(t, branch.PutCell(ctx, srcKey, "content::parent", []byte("http://x"), kvstore.Default))
	require.NoError(t, branch.PutCell(ctx, srcKey, "custom::field", []byte("value"), kvstore.Default))

	require.NoError(t, ctrl.CopyBranch(ctx, "http://x/a", 1, 2))

	dstKey := keying.BranchKey("http://x/a", 2)
	cells, err := branch.Cells(ctx, dstKey)
	require.NoError(t, err)
	require.Contains(t, cells, "custom::field")
	require.NotContains(t, cells, "content::parent")
}

func TestSetCurrentRevisionRaisesLastRevision(t *testing.T) {
	ctrl, _, _ := newControl(t)
	ctx := context.Background()

	require.NoError(t, ctrl.SetCurrentRevision(ctx, "http://x/a", 1, 5, "en", false))
	cur, ok, err := ctrl.CurrentRevision(ctx, "http://x/a", 1, "en", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 5, cur)

	key, ok, err := ctrl.GetRevisionKey(ctx, "http://x/a", 1, "en", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, keying.RevisionKey("http://x/a", 1, 5, "en"), key)

	r, err := ctrl.NewRevision(ctx, "http://x/a", 1, "en", false, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 6, r)
}
