package pageops

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/linklayer"
)

// Destroy implements destroy_page, spec §4.6. Unlike the teacher
// behavior the spec calls out as a known defect — the children pass
// destroying only direct children without recursing into
// grandchildren — this implementation recurses the full subtree before
// unwinding the page itself, since nothing in this engine depends on
// the shallow behavior and an orphaned grandchild page is strictly
// worse than the extra recursion.
func (e *Engine) Destroy(ctx context.Context, page string) error {
	children, err := linklayer.Children(ctx, e.content, page)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := e.Destroy(ctx, child); err != nil {
			return err
		}
	}

	if parent, ok, err := linklayer.GetParent(ctx, e.content, page); err != nil {
		return err
	} else if ok {
		if err := linklayer.RemoveChild(ctx, e.content, parent, page); err != nil {
			return err
		}
	}

	if err := e.revision.RangeRows(ctx, page+"#", func(ctx context.Context, row string, cells map[string]kvstore.Value) error {
		return e.DestroyRevision(ctx, row)
	}); err != nil {
		return err
	}

	if err := e.branch.RangeRows(ctx, page+"#", func(ctx context.Context, row string, cells map[string]kvstore.Value) error {
		return e.branch.DeleteRow(ctx, row)
	}); err != nil {
		return err
	}

	if err := removeFromIndex(ctx, e.index, page); err != nil {
		return err
	}
	return e.content.DeleteRow(ctx, page)
}

// DestroyRevision implements destroy_revision, spec §4.6: it unwinds
// the attachment back-references a revision holds (if any) before
// dropping the revision row itself.
func (e *Engine) DestroyRevision(ctx context.Context, revKey string) error {
	page, branch, _, _, err := keying.ParseRevisionKey(revKey)
	if err != nil {
		return e.revision.DeleteRow(ctx, revKey)
	}

	md5Raw, err := e.revision.GetCell(ctx, revKey, cellAttachment, kvstore.Default)
	if err == nil && len(md5Raw) == 16 {
		md5Hex := hex.EncodeToString(md5Raw)
		if e.files != nil {
			if err := e.files.DeleteCell(ctx, md5Hex, cellFileReferencePrefix+page, kvstore.Default); err != nil {
				return err
			}
		}
		branchKey := keying.BranchKey(page, branch)
		if err := e.branch.DeleteCell(ctx, branchKey, cellAttachmentRefPrefix+md5Hex, kvstore.Default); err != nil {
			return err
		}
		if e.files != nil {
			refs, err := e.files.CellsWithPrefix(ctx, md5Hex, cellFileReferencePrefix)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				if err := e.files.DeleteRow(ctx, md5Hex); err != nil {
					return err
				}
			}
		}
	} else if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return err
	}

	return e.revision.DeleteRow(ctx, revKey)
}
