package worker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/attachment"
	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/kvstore/memstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
	"github.com/snapwebsites/contentengine/internal/revctl"
	"github.com/snapwebsites/contentengine/internal/status"
	"github.com/snapwebsites/contentengine/internal/worker"
)

type harness struct {
	store      kvstore.Store
	content    *kvstore.Table
	processing *kvstore.Table
	index      *kvstore.Table
	journalTbl *journal.Engine
	pages      *pageops.Engine
	st         *status.Store
	engine     *worker.Engine
	clock      int64
}

func newHarness() *harness {
	store := memstore.New()
	content := kvstore.NewTable(store, "content")
	branch := kvstore.NewTable(store, "branch")
	revision := kvstore.NewTable(store, "revision")
	files := kvstore.NewTable(store, "files")
	processing := kvstore.NewTable(store, "processing")
	journalTable := kvstore.NewTable(store, "journal")

	h := &harness{store: store, content: content, processing: processing, index: kvstore.NewTable(store, "index"), clock: 1000}
	now := func() int64 { return h.clock }

	locker := distlock.NewInProcess()
	rc := revctl.New(content, branch, locker, now)
	st := status.NewStore(content, h.clock)
	j := journal.New(journalTable, now)

	h.st = st
	h.journalTbl = j
	h.pages = pageops.New(store, content, branch, revision, files, rc, st, j, locker, now)

	att := attachment.New(content, branch, revision, files, rc, h.pages, now)
	h.engine = worker.New(store, content, processing, st, j, att, h.pages, now)
	return h
}

func (h *harness) createPage(t *testing.T, site, path string) string {
	t.Helper()
	res, err := h.pages.Create(context.Background(), journal.NewChain(), pageops.CreateRequest{
		Site: site, Path: path, Owner: "content", Type: "page",
	})
	require.NoError(t, err)
	return res.Page
}

func TestReapProcessingDropsEveryRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	page := h.createPage(t, "http://example.com", "about")

	require.NoError(t, h.processing.PutCell(ctx, page, "content::processing::marker", cellcodec.True, kvstore.Default))

	reaped, err := h.engine.ReapProcessing(ctx, "http://example.com")
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	has, err := h.processing.HasRow(ctx, page)
	require.NoError(t, err)
	require.False(t, has)
}

func TestReapProcessingPromotesStuckCreate(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	page := h.createPage(t, "http://example.com", "draft")

	// pageops.Create always finishes by promoting to NORMAL; to exercise
	// the "crashed between writing primary_owner and promoting out of
	// CREATE" scenario, drop content::status back out so it synthesizes
	// as CREATE again, and stamp an old status_changed so the page looks
	// stuck past the 10-minute window.
	require.NoError(t, h.content.DeleteCell(ctx, page, "content::status", kvstore.Quorum))
	require.NoError(t, h.content.PutCell(ctx, page, "content::status_changed", cellcodec.EncodeInt64(0), kvstore.Quorum))
	require.NoError(t, h.processing.PutCell(ctx, page, "content::processing::marker", cellcodec.True, kvstore.Default))

	h.clock = 11 * 60 * 1000000 // 11 minutes past epoch in micros
	_, err := h.engine.ReapProcessing(ctx, "http://example.com")
	require.NoError(t, err)

	st, kind, err := h.st.Read(ctx, page)
	require.NoError(t, err)
	require.Equal(t, status.NoError, kind)
	require.Equal(t, status.Normal, st)
}

func TestForceReapProcessingPromotesRegardlessOfAge(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	page := h.createPage(t, "http://example.com", "draft")

	require.NoError(t, h.content.DeleteCell(ctx, page, "content::status", kvstore.Quorum))
	require.NoError(t, h.content.PutCell(ctx, page, "content::status_changed", cellcodec.EncodeInt64(0), kvstore.Quorum))
	require.NoError(t, h.processing.PutCell(ctx, page, "content::processing::marker", cellcodec.True, kvstore.Default))

	// clock is still at 1000µs: a plain ReapProcessing would not consider
	// this stuck, but forceresetstatus ignores the staleness window.
	_, err := h.engine.ForceReapProcessing(ctx, "http://example.com")
	require.NoError(t, err)

	st, kind, err := h.st.Read(ctx, page)
	require.NoError(t, err)
	require.Equal(t, status.NoError, kind)
	require.Equal(t, status.Normal, st)
}

func TestRebuildIndexAddsAndRemoves(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	page := h.createPage(t, "http://example.com", "about")

	// pageops.Create already indexes the page; drop that entry so the
	// forward pass has something to add back.
	require.NoError(t, h.index.DeleteCell(ctx, "*index*", page, kvstore.Default))

	added, removed, err := h.engine.RebuildIndex(ctx, "http://example.com")
	require.NoError(t, err)
	require.GreaterOrEqual(t, added, 1)
	require.Equal(t, 0, removed)

	val, err := h.index.GetCell(ctx, "*index*", page, kvstore.Default)
	require.NoError(t, err)
	require.True(t, cellcodec.IsTrue(val))

	// Drop content::created out from under the index entry and rerun:
	// the reverse pass should remove it.
	require.NoError(t, h.content.DeleteCell(ctx, page, pageops.CellCreated, kvstore.Default))
	_, removed, err = h.engine.RebuildIndex(ctx, "http://example.com")
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = h.index.GetCell(ctx, "*index*", page, kvstore.Default)
	require.ErrorIs(t, err, kvstore.ErrKeyNotFound)
}

func TestRunCycleReapsJournalEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.createPage(t, "http://example.com", "home")

	chain := journal.NewChain()
	list := h.journalTbl.AcquireList(chain)
	require.NoError(t, list.AddPageURL(ctx, "http://example.com/stuck-page"))
	// Deliberately not calling Done: simulates a crash mid create_content.

	h.clock = 10 * 60 * 1000000
	result, err := h.engine.RunCycle(ctx, "http://example.com", 5*60*1000000, 100)
	require.NoError(t, err)
	require.Equal(t, 1, result.JournalReaped)

	pending, err := h.journalTbl.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}
