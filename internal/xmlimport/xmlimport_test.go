package xmlimport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/attachment"
	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/kvstore/memstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
	"github.com/snapwebsites/contentengine/internal/revctl"
	"github.com/snapwebsites/contentengine/internal/status"
	"github.com/snapwebsites/contentengine/internal/xmlimport"
)

type harness struct {
	content  *kvstore.Table
	branch   *kvstore.Table
	revision *kvstore.Table
	engine   *xmlimport.Engine
}

func newHarness() *harness {
	store := memstore.New()
	content := kvstore.NewTable(store, "content")
	branch := kvstore.NewTable(store, "branch")
	revision := kvstore.NewTable(store, "revision")
	files := kvstore.NewTable(store, "files")
	journalTable := kvstore.NewTable(store, "journal")

	now := func() int64 { return 1000 }
	locker := distlock.NewInProcess()
	rc := revctl.New(content, branch, locker, now)
	st := status.NewStore(content, now())
	j := journal.New(journalTable, now)
	pages := pageops.New(store, content, branch, revision, files, rc, st, j, locker, now)
	att := attachment.New(content, branch, revision, files, rc, pages, now)

	return &harness{
		content:  content,
		branch:   branch,
		revision: revision,
		engine:   xmlimport.New(content, branch, revision, rc, pages, att, locker, now),
	}
}

const sampleDoc = `<snap-content>
  <content path="products" owner="catalog" type="page">
    <param name="title">Products</param>
  </content>
  <content path="products/widget" owner="catalog" type="page">
    <param name="title" lang="en">Widget</param>
    <param name="price" type="int32" revision="branch">1999</param>
    <link name="category" to="products/categories/widgets">products/categories/widgets</link>
  </content>
</snap-content>`

func TestApplyCreatesParentBeforeChild(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	result, err := h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(sampleDoc))
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Equal(t, "http://example.com/products", result.Created[0], "parent created before child")
	require.Equal(t, "http://example.com/products/widget", result.Created[1])

	has, err := h.content.HasRow(ctx, "http://example.com/products/widget")
	require.NoError(t, err)
	require.True(t, has)
}

func TestApplyWritesGlobalBranchAndRevisionParams(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	_, err := h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(sampleDoc))
	require.NoError(t, err)

	page := "http://example.com/products/widget"

	branchKey := keying.BranchKey(page, keying.SystemBranch)
	priceRaw, err := h.branch.GetCell(ctx, branchKey, "price", kvstore.Default)
	require.NoError(t, err)
	require.Len(t, priceRaw, 4)

	revKey := keying.RevisionKey(page, keying.SystemBranch, 1, "en")
	titleRaw, err := h.revision.GetCell(ctx, revKey, "title::en", kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, "Widget", string(titleRaw))
}

func TestApplyWritesLinkCell(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	_, err := h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(sampleDoc))
	require.NoError(t, err)

	page := "http://example.com/products/widget"
	raw, err := h.content.GetCell(ctx, page, "links::category", kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, "products/categories/widgets", string(raw))
}

func TestApplySkipsExistingPageButStillAppliesParams(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	first := `<snap-content><content path="about" owner="content"/></snap-content>`
	result, err := h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(first))
	require.NoError(t, err)
	require.Len(t, result.Created, 1)

	second := `<snap-content><content path="about" owner="content"><param name="title">About Us</param></content></snap-content>`
	result, err = h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(second))
	require.NoError(t, err)
	require.Empty(t, result.Created)
	require.Len(t, result.Skipped, 1)

	revKey := keying.RevisionKey("http://example.com/about", keying.SystemBranch, 1, "")
	raw, err := h.revision.GetCell(ctx, revKey, "title", kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, "About Us", string(raw))
}

func TestApplyPriorityConflictResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	doc := `<snap-content>
  <content path="home" owner="content">
    <param name="title" priority="5">Low Priority Title</param>
  </content>
</snap-content>`
	_, err := h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(doc))
	require.NoError(t, err)

	page := "http://example.com/home"
	revKey := keying.RevisionKey(page, keying.SystemBranch, 1, "")

	// Priority is tracked per Apply call only: a second pass over home
	// would simply overwrite its title. So exercise priority ordering
	// within a single Apply call's two <param> entries for the same page
	// instead, which is the documented hazard (spec §4.10).
	doc2 := `<snap-content>
  <content path="other" owner="content">
    <param name="title" priority="1">First</param>
    <param name="title" priority="10">Second</param>
  </content>
</snap-content>`
	_, err = h.engine.Apply(ctx, journal.NewChain(), "http://example.com", []byte(doc2))
	require.NoError(t, err)

	otherRevKey := keying.RevisionKey("http://example.com/other", keying.SystemBranch, 1, "")
	raw, err := h.revision.GetCell(ctx, otherRevKey, "title", kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, "Second", string(raw), "higher priority write wins even when applied after the lower one")

	raw, err = h.revision.GetCell(ctx, revKey, "title", kvstore.Default)
	require.NoError(t, err)
	require.Equal(t, "Low Priority Title", string(raw))
}

func TestParseRejectsMissingRequiredAttributes(t *testing.T) {
	_, err := xmlimport.Parse([]byte(`<snap-content><content path=""/></snap-content>`))
	require.ErrorIs(t, err, xmlimport.ErrInvalidInputXml)

	_, err = xmlimport.Parse([]byte(`<snap-content><content path="x"><link to="y">y</link></content></snap-content>`))
	require.ErrorIs(t, err, xmlimport.ErrInvalidInputXml)
}
