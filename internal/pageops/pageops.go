// Package pageops implements the page lifecycle operations of spec
// §4.6: create, clone, move, trash, destroy and modified. It is the
// component that ties keying, revctl, status and journal together into
// the actual multi-cell writes a caller issues against a page.
package pageops

import (
	"context"
	"errors"
	"strings"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/clog"
	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/revctl"
	"github.com/snapwebsites/contentengine/internal/status"
)

// Cell names this package owns directly, spec §6.2.
const (
	CellCreated       = "content::created"
	CellModified      = "content::modified"
	CellFinal         = "content::final"
	CellCloned        = "content::cloned"
	CellPreventDelete = "content::prevent_delete"

	// Attachment back-reference cells destroy_revision unwinds. The
	// attachment engine owns writing them (spec §4.7); pageops only
	// needs to know their shape to clean them up.
	cellAttachment          = "content::attachment"
	cellFileReferencePrefix = "content::files::reference::"
	cellAttachmentRefPrefix = "content::attachment::reference::"
)

const (
	indexTable = "index"
	indexRow   = "*index*"
)

var (
	// ErrAlreadyExists is returned by Create when the page already has an
	// owner and is not in a resurrectable (DELETED/MOVED) status.
	ErrAlreadyExists = errors.New("pageops: page already exists")
	// ErrParentFinal is returned by Create when the parent page has
	// content::final set.
	ErrParentFinal = errors.New("pageops: parent page is final")
	// ErrDestinationExists is returned by Clone when destination already
	// has a content row.
	ErrDestinationExists = errors.New("pageops: destination already exists")
	// ErrPreventDelete is returned by Move/Trash when the source page has
	// content::prevent_delete set.
	ErrPreventDelete = errors.New("pageops: page has prevent_delete set")
)

// Engine wires the tables and components a page operation touches.
// Callers construct one Engine per content-engine process (or per test)
// and pass it explicitly; there is no package-level singleton, per spec
// design notes §9.
type Engine struct {
	content  *kvstore.Table
	branch   *kvstore.Table
	revision *kvstore.Table
	files    *kvstore.Table
	index    *kvstore.Table

	rc      *revctl.Control
	st      *status.Store
	journal *journal.Engine
	events  *Events
	locker  distlock.Locker
	now     func() int64
}

// New binds an Engine to its tables and collaborators. store backs the
// index table; every other table is passed in explicitly.
func New(store kvstore.Store, content, branch, revision, files *kvstore.Table, rc *revctl.Control, st *status.Store, j *journal.Engine, locker distlock.Locker, now func() int64) *Engine {
	return &Engine{
		content:  content,
		branch:   branch,
		revision: revision,
		files:    files,
		index:    kvstore.NewTable(store, indexTable),
		rc:       rc,
		st:       st,
		journal:  j,
		events:   NewEvents(),
		locker:   locker,
		now:      now,
	}
}

// Events exposes the plugin event bus for registration.
func (e *Engine) Events() *Events { return e.events }

// parentOf returns page's immediate parent within site, and whether
// page has one (false when page is the site root itself).
func parentOf(site, page string) (string, bool) {
	site = strings.TrimRight(site, "/")
	if page == site {
		return "", false
	}
	idx := strings.LastIndex(page, "/")
	if idx < 0 || idx < len(site) {
		return site, true
	}
	return page[:idx], true
}

// parentChain returns every ancestor of page within site, nearest
// first, ending with the site root inclusive.
func parentChain(site, page string) []string {
	var chain []string
	cur := page
	for {
		parent, ok := parentOf(site, cur)
		if !ok {
			return chain
		}
		chain = append(chain, parent)
		cur = parent
	}
}

func isFinal(ctx context.Context, content *kvstore.Table, page string) (bool, error) {
	raw, err := content.GetCell(ctx, page, CellFinal, kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return cellcodec.IsTrue(raw), nil
}

func preventsDelete(ctx context.Context, content *kvstore.Table, page string) (bool, error) {
	raw, err := content.GetCell(ctx, page, CellPreventDelete, kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return cellcodec.IsTrue(raw), nil
}

func addToIndex(ctx context.Context, index *kvstore.Table, page string) error {
	return index.PutCell(ctx, indexRow, page, cellcodec.True, kvstore.Default)
}

func removeFromIndex(ctx context.Context, index *kvstore.Table, page string) error {
	return index.DeleteCell(ctx, indexRow, page, kvstore.Default)
}

func warnIfMissing(page string, err error) bool {
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		clog.Warnf("pageops: %s not found", page)
		return true
	}
	return false
}
