package pageops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/kvstore/memstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
	"github.com/snapwebsites/contentengine/internal/revctl"
	"github.com/snapwebsites/contentengine/internal/status"
)

type harness struct {
	engine  *pageops.Engine
	content *kvstore.Table
	branch  *kvstore.Table
	status  *status.Store
	clock   int64
}

func newHarness() *harness {
	store := memstore.New()
	content := kvstore.NewTable(store, "content")
	branch := kvstore.NewTable(store, "branch")
	revision := kvstore.NewTable(store, "revision")
	files := kvstore.NewTable(store, "files")
	journalTable := kvstore.NewTable(store, "journal")

	h := &harness{clock: 1000, content: content, branch: branch}
	now := func() int64 { return h.clock }

	locker := distlock.NewInProcess()
	rc := revctl.New(content, branch, locker, now)
	st := status.NewStore(content, h.clock)
	j := journal.New(journalTable, now)

	h.status = st
	h.engine = pageops.New(store, content, branch, revision, files, rc, st, j, locker, now)
	return h
}

func TestCreateContentNewPage(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	result, err := h.engine.Create(ctx, chain, pageops.CreateRequest{
		Site:         "http://example.com",
		Path:         "about",
		Owner:        "content",
		Type:         "page",
		WithRevision: true,
	})
	require.NoError(t, err)
	require.False(t, result.Resurrected)
	require.Equal(t, uint32(1), result.Branch)
	require.Equal(t, uint32(1), result.Revision)
	require.Equal(t, "http://example.com/about", result.Page)
}

func TestCreateContentTwiceFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()
	req := pageops.CreateRequest{Site: "http://example.com", Path: "about", Owner: "content"}

	_, err := h.engine.Create(ctx, chain, req)
	require.NoError(t, err)

	_, err = h.engine.Create(ctx, chain, req)
	require.ErrorIs(t, err, pageops.ErrAlreadyExists)
}

func TestCreateContentResurrectsDeletedPage(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()
	req := pageops.CreateRequest{Site: "http://example.com", Path: "about", Owner: "content"}

	_, err := h.engine.Create(ctx, chain, req)
	require.NoError(t, err)
	require.NoError(t, h.status.Set(ctx, "http://example.com/about", status.Deleted))

	result, err := h.engine.Create(ctx, chain, req)
	require.NoError(t, err)
	require.True(t, result.Resurrected)

	st, _, err := h.status.Read(ctx, "http://example.com/about")
	require.NoError(t, err)
	require.Equal(t, status.Normal, st)
}

func TestCreateContentRefusesFinalParent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	_, err := h.engine.Create(ctx, chain, pageops.CreateRequest{
		Site: "http://example.com", Path: "docs", Owner: "content",
	})
	require.NoError(t, err)
	require.NoError(t, h.content.PutCell(ctx, "http://example.com/docs", pageops.CellFinal, cellcodec.True, kvstore.Default))

	_, err = h.engine.Create(ctx, chain, pageops.CreateRequest{
		Site: "http://example.com", Path: "docs/page1", Owner: "content",
	})
	require.ErrorIs(t, err, pageops.ErrParentFinal)
}

func TestTrashRefusesPreventDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	_, err := h.engine.Create(ctx, chain, pageops.CreateRequest{
		Site: "http://example.com", Path: "locked", Owner: "content",
	})
	require.NoError(t, err)
	require.NoError(t, h.content.PutCell(ctx, "http://example.com/locked", pageops.CellPreventDelete, cellcodec.True, kvstore.Default))

	_, err = h.engine.Trash(ctx, chain, "http://example.com", "http://example.com/locked")
	require.ErrorIs(t, err, pageops.ErrPreventDelete)
}

func TestTrashSucceedsWithoutPreventDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	_, err := h.engine.Create(ctx, chain, pageops.CreateRequest{
		Site: "http://example.com", Path: "locked", Owner: "content",
	})
	require.NoError(t, err)

	dest, err := h.engine.Trash(ctx, chain, "http://example.com", "http://example.com/locked")
	require.NoError(t, err)
	require.Contains(t, dest, "http://example.com/trashcan/")
}

func TestTrashCreatesTrashcanOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	_, err := h.engine.Create(ctx, chain, pageops.CreateRequest{Site: "http://example.com", Path: "a", Owner: "content"})
	require.NoError(t, err)
	_, err = h.engine.Create(ctx, chain, pageops.CreateRequest{Site: "http://example.com", Path: "b", Owner: "content"})
	require.NoError(t, err)

	destA, err := h.engine.Trash(ctx, chain, "http://example.com", "http://example.com/a")
	require.NoError(t, err)
	destB, err := h.engine.Trash(ctx, chain, "http://example.com", "http://example.com/b")
	require.NoError(t, err)
	require.NotEqual(t, destA, destB)
}

func TestModifiedOnMissingPageIsNotAnError(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	require.NoError(t, h.engine.Modified(ctx, "http://example.com/ghost", 1))
}

func TestModifiedStampsContentAndBranch(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	result, err := h.engine.Create(ctx, chain, pageops.CreateRequest{
		Site: "http://example.com", Path: "about", Owner: "content",
	})
	require.NoError(t, err)

	h.clock = 5000
	require.NoError(t, h.engine.Modified(ctx, result.Page, result.Branch))

	want := cellcodec.EncodeInt64(5000)
	raw, err := h.content.GetCell(ctx, result.Page, pageops.CellModified, kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, want, []byte(raw))

	raw, err = h.branch.GetCell(ctx, keying.BranchKey(result.Page, result.Branch), pageops.CellModified, kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, want, []byte(raw))
}

func TestDestroyRemovesChildrenRecursively(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	chain := journal.NewChain()

	_, err := h.engine.Create(ctx, chain, pageops.CreateRequest{Site: "http://example.com", Path: "parent", Owner: "content"})
	require.NoError(t, err)
	_, err = h.engine.Create(ctx, chain, pageops.CreateRequest{Site: "http://example.com", Path: "parent/child", Owner: "content"})
	require.NoError(t, err)

	require.NoError(t, h.engine.Destroy(ctx, "http://example.com/parent"))

	exists, err := h.content.HasRow(ctx, "http://example.com/parent")
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = h.content.HasRow(ctx, "http://example.com/parent/child")
	require.NoError(t, err)
	require.False(t, exists)
}
