// Package revctl allocates and persists branch and revision numbers
// and tracks the current/working/last pointers, per spec §4.3. All
// increments run under a page-scoped distlock.Locker hold for the
// read-modify-write window.
package revctl

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// ErrCopyBranchOrder is returned by CopyBranch when dst <= src.
var ErrCopyBranchOrder = errors.New("revctl: destination branch must exceed source branch")

// ErrSourceBranchMissing is returned by CopyBranch when the source
// branch row has no content::created cell.
var ErrSourceBranchMissing = errors.New("revctl: source branch does not exist")

const (
	cellLastBranch        = "content::revision_control::last_branch"
	prefixLastRevision    = "content::revision_control::last_revision::"
	prefixCurrentRevision = "content::revision_control::current_revision::"
	prefixWorkingRevision = "content::revision_control::current_working_revision::"
	prefixCurrentRevKey   = "content::revision_control::current_revision_key::"
	prefixWorkingRevKey   = "content::revision_control::current_working_revision_key::"
	cellCurrentBranch     = "content::revision_control::current_branch"
	cellWorkingBranch     = "content::revision_control::current_working_branch"
	cellCurrentBranchKey  = "content::revision_control::current_branch_key"
	cellWorkingBranchKey  = "content::revision_control::current_working_branch_key"

	cellCreated  = "content::created"
	cellModified = "content::modified"
)

// linkCellNames are rewritten by the link layer, not plain copy (spec
// §4.3 CopyBranch, §4.6 clone_page).
var linkCellNames = map[string]bool{
	"content::page_type":     true,
	"content::parent":        true,
	"content::children":      true,
	"content::clone":         true,
	"content::original_page": true,
}

// Control is the Revision Control component. It owns the content and
// branch tables and a page-scoped locker.
type Control struct {
	content *kvstore.Table
	branch  *kvstore.Table
	locker  distlock.Locker
	now     func() int64 // current wall-clock time in microseconds
}

// New binds Control to its tables, locker, and clock.
func New(content, branch *kvstore.Table, locker distlock.Locker, now func() int64) *Control {
	return &Control{content: content, branch: branch, locker: locker, now: now}
}

func revisionCellName(prefix string, branch uint32, locale string) string {
	name := fmt.Sprintf("%s%d", prefix, branch)
	if locale != "" {
		name += "::" + locale
	}
	return name
}

func saturatingNext(v uint32) uint32 {
	if v == math.MaxUint32 {
		return v
	}
	return v + 1
}

func (c *Control) readUint32(ctx context.Context, page, cell string) (uint32, bool, error) {
	raw, err := c.content.GetCell(ctx, page, cell, kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	v, err := cellcodec.DecodeUint32(raw)
	return v, true, err
}

// NewBranch allocates the next branch number for page (never branch 0,
// which is reserved for declarative imports) and initializes its
// last_revision counter to 0. It holds the page lock for its whole
// read-modify-write window.
func (c *Control) NewBranch(ctx context.Context, page, locale string) (uint32, error) {
	release, err := c.locker.Lock(ctx, page)
	if err != nil {
		return 0, err
	}
	defer release()

	last, _, err := c.readUint32(ctx, page, cellLastBranch)
	if err != nil {
		return 0, err
	}
	next := saturatingNext(last)
	if next == keying.SystemBranch {
		next = keying.FirstUserBranch
	}
	if err := c.content.PutCell(ctx, page, cellLastBranch, cellcodec.EncodeUint32(next), kvstore.Default); err != nil {
		return 0, err
	}
	revCell := revisionCellName(prefixLastRevision, next, locale)
	if err := c.content.PutCell(ctx, page, revCell, cellcodec.EncodeUint32(0), kvstore.Default); err != nil {
		return 0, err
	}
	return next, nil
}

// NewRevision allocates the next revision number for (page, branch,
// locale). When repeat is true, copyRevision is non-nil, either the new
// revision is >0 or oldBranch is given, and the prior revision differs
// from the new one, copyRevision is called with the prior and the new
// revision row keys to copy the prior row. A branch above last_branch
// is rejected with an error.
func (c *Control) NewRevision(ctx context.Context, page string, branch uint32, locale string, repeat bool, oldBranch *uint32, copyRevision func(ctx context.Context, fromKey, toKey string) error) (uint32, error) {
	release, err := c.locker.Lock(ctx, page)
	if err != nil {
		return 0, err
	}
	defer release()

	if lastBranch, ok, err := c.readUint32(ctx, page, cellLastBranch); err != nil {
		return 0, err
	} else if ok && branch > lastBranch {
		return 0, fmt.Errorf("revctl: branch %d exceeds last_branch %d", branch, lastBranch)
	}

	revCell := revisionCellName(prefixLastRevision, branch, locale)
	prior, _, err := c.readUint32(ctx, page, revCell)
	if err != nil {
		return 0, err
	}
	next := saturatingNext(prior)

	if err := c.content.PutCell(ctx, page, revCell, cellcodec.EncodeUint32(next), kvstore.Default); err != nil {
		return 0, err
	}

	if repeat && (next > 0 || oldBranch != nil) && prior != next && copyRevision != nil {
		fromBranch := branch
		if oldBranch != nil {
			fromBranch = *oldBranch
		}
		fromKey := keying.RevisionKey(page, fromBranch, prior, locale)
		toKey := keying.RevisionKey(page, branch, next, locale)
		if err := copyRevision(ctx, fromKey, toKey); err != nil {
			return 0, err
		}
	}

	return next, nil
}

// LastBranch returns the highest branch number ever allocated for
// page, for callers (clone_page, destroy_page) that must iterate every
// branch a page has.
func (c *Control) LastBranch(ctx context.Context, page string) (uint32, bool, error) {
	return c.readUint32(ctx, page, cellLastBranch)
}

// CopyBranch copies every non-link, non-content::modified cell of
// branch src into branch dst, requiring src < dst and that src exists
// (has content::created). It stamps dst's content::created to now if
// dst doesn't already have one. Link-valued cells are left to the
// caller's link layer to rewrite (spec §4.3).
func (c *Control) CopyBranch(ctx context.Context, page string, src, dst uint32) error {
	if !(src < dst) {
		return ErrCopyBranchOrder
	}
	srcKey := keying.BranchKey(page, src)
	dstKey := keying.BranchKey(page, dst)

	cells, err := c.branch.Cells(ctx, srcKey)
	if err != nil {
		return err
	}
	if _, ok := cells[cellCreated]; !ok {
		return ErrSourceBranchMissing
	}

	for name, value := range cells {
		if name == cellModified || linkCellNames[name] {
			continue
		}
		if err := c.branch.PutCell(ctx, dstKey, name, value, kvstore.Default); err != nil {
			return err
		}
	}

	if _, err := c.branch.GetCell(ctx, dstKey, cellCreated, kvstore.Default); errors.Is(err, kvstore.ErrKeyNotFound) {
		if err := c.branch.PutCell(ctx, dstKey, cellCreated, cellcodec.EncodeInt64(c.now()), kvstore.Default); err != nil {
			return err
		}
	}
	return nil
}

func branchCellName(working bool) string {
	if working {
		return cellWorkingBranch
	}
	return cellCurrentBranch
}

func branchKeyCellName(working bool) string {
	if working {
		return cellWorkingBranchKey
	}
	return cellCurrentBranchKey
}

func revisionCellNameFor(working bool, branch uint32, locale string) string {
	prefix := prefixCurrentRevision
	if working {
		prefix = prefixWorkingRevision
	}
	return revisionCellName(prefix, branch, locale)
}

func revisionKeyCellNameFor(working bool, branch uint32, locale string) string {
	prefix := prefixCurrentRevKey
	if working {
		prefix = prefixWorkingRevKey
	}
	return revisionCellName(prefix, branch, locale)
}

// CurrentBranch returns the current (or working) branch pointer.
func (c *Control) CurrentBranch(ctx context.Context, page string, working bool) (uint32, bool, error) {
	return c.readUint32(ctx, page, branchCellName(working))
}

// CurrentRevision returns the current (or working) revision pointer
// for (branch, locale).
func (c *Control) CurrentRevision(ctx context.Context, page string, branch uint32, locale string, working bool) (uint32, bool, error) {
	return c.readUint32(ctx, page, revisionCellNameFor(working, branch, locale))
}

// GetBranchKey returns the cached, fully-formed branch row key, if set.
func (c *Control) GetBranchKey(ctx context.Context, page string, working bool) (string, bool, error) {
	raw, err := c.content.GetCell(ctx, page, branchKeyCellName(working), kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(raw), true, nil
}

// GetRevisionKey returns the cached, fully-formed revision row key, if set.
func (c *Control) GetRevisionKey(ctx context.Context, page string, branch uint32, locale string, working bool) (string, bool, error) {
	raw, err := c.content.GetCell(ctx, page, revisionKeyCellNameFor(working, branch, locale), kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(raw), true, nil
}

// SetBranch writes the current (or working) branch pointer and its
// cached key, raising last_branch if branch exceeds it.
func (c *Control) SetBranch(ctx context.Context, page string, branch uint32, working bool) error {
	if err := c.content.PutCell(ctx, page, branchCellName(working), cellcodec.EncodeUint32(branch), kvstore.Default); err != nil {
		return err
	}
	if err := c.content.PutCell(ctx, page, branchKeyCellName(working), []byte(keying.BranchKey(page, branch)), kvstore.Default); err != nil {
		return err
	}
	last, ok, err := c.readUint32(ctx, page, cellLastBranch)
	if err != nil {
		return err
	}
	if !ok || branch > last {
		return c.content.PutCell(ctx, page, cellLastBranch, cellcodec.EncodeUint32(branch), kvstore.Default)
	}
	return nil
}

// SetCurrentRevision writes the current (or working) revision pointer
// and its cached key for (branch, locale), raising last_revision
// monotonically.
func (c *Control) SetCurrentRevision(ctx context.Context, page string, branch, revision uint32, locale string, working bool) error {
	if err := c.content.PutCell(ctx, page, revisionCellNameFor(working, branch, locale), cellcodec.EncodeUint32(revision), kvstore.Default); err != nil {
		return err
	}
	key := keying.RevisionKey(page, branch, revision, locale)
	if err := c.content.PutCell(ctx, page, revisionKeyCellNameFor(working, branch, locale), []byte(key), kvstore.Default); err != nil {
		return err
	}
	lastCell := revisionCellName(prefixLastRevision, branch, locale)
	last, ok, err := c.readUint32(ctx, page, lastCell)
	if err != nil {
		return err
	}
	if !ok || revision > last {
		return c.content.PutCell(ctx, page, lastCell, cellcodec.EncodeUint32(revision), kvstore.Default)
	}
	return nil
}
