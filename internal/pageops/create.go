package pageops

import (
	"context"
	"errors"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/clog"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/linklayer"
	"github.com/snapwebsites/contentengine/internal/status"
)

// typeTaxonomyRoot is where page-type links point, spec §4.6 step 8.
const typeTaxonomyRoot = "types/taxonomy/system/content-types/"

// CreateRequest describes a create_content call.
type CreateRequest struct {
	Site   string
	Path   string
	Owner  string
	Type   string // defaults to "page" if empty
	Locale string
	// Declarative selects the system branch (0), reserved for XML
	// imports; otherwise a fresh branch is allocated.
	Declarative bool
	// WithRevision additionally allocates revision 1 on the new branch.
	WithRevision bool
}

// CreateResult reports what Create actually did.
type CreateResult struct {
	Page        string
	Branch      uint32
	Revision    uint32
	HasRevision bool
	Resurrected bool
}

// Create implements create_content, spec §4.6. chain threads the
// journal call-chain so a create that triggers nested creates (e.g. the
// attachment engine creating an attachment page) shares one crash-
// recovery frame.
func (e *Engine) Create(ctx context.Context, chain *journal.Chain, req CreateRequest) (CreateResult, error) {
	page := keying.ContentKey(req.Site, req.Path)
	result := CreateResult{Page: page}
	pageType := req.Type
	if pageType == "" {
		pageType = "page"
	}

	_, err := e.content.GetCell(ctx, page, status.CellPrimaryOwner, kvstore.Default)
	hasOwner := err == nil
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return result, err
	}
	if hasOwner {
		st, _, err := e.st.Read(ctx, page)
		if err != nil {
			return result, err
		}
		if st == status.Deleted || st == status.Moved {
			if err := e.st.Set(ctx, page, status.Normal); err != nil {
				return result, err
			}
			result.Resurrected = true
			return result, nil
		}
		return result, ErrAlreadyExists
	}

	if parent, ok := parentOf(req.Site, page); ok {
		final, err := isFinal(ctx, e.content, parent)
		if err != nil {
			return result, err
		}
		if final {
			return result, ErrParentFinal
		}
	}

	list := e.journal.AcquireList(chain)
	if err := list.AddPageURL(ctx, page); err != nil {
		return result, err
	}

	if err := e.content.PutCell(ctx, page, status.CellPrimaryOwner, []byte(req.Owner), kvstore.Default); err != nil {
		return result, err
	}

	var branch uint32
	if req.Declarative {
		branch = keying.SystemBranch
	} else {
		branch, err = e.rc.NewBranch(ctx, page, req.Locale)
		if err != nil {
			return result, err
		}
	}
	result.Branch = branch

	if err := e.rc.SetBranch(ctx, page, branch, false); err != nil {
		return result, err
	}
	if err := e.rc.SetBranch(ctx, page, branch, true); err != nil {
		return result, err
	}

	if req.WithRevision {
		revision, err := e.rc.NewRevision(ctx, page, branch, req.Locale, false, nil, nil)
		if err != nil {
			return result, err
		}
		if err := e.rc.SetCurrentRevision(ctx, page, branch, revision, req.Locale, false); err != nil {
			return result, err
		}
		if err := e.rc.SetCurrentRevision(ctx, page, branch, revision, req.Locale, true); err != nil {
			return result, err
		}
		result.Revision = revision
		result.HasRevision = true
	}

	now := cellcodec.EncodeInt64(e.now())
	if err := e.content.PutCell(ctx, page, CellCreated, now, kvstore.Default); err != nil {
		return result, err
	}
	branchKey := keying.BranchKey(page, branch)
	if err := e.branch.PutCell(ctx, branchKey, CellCreated, now, kvstore.Default); err != nil {
		return result, err
	}
	if err := e.branch.PutCell(ctx, branchKey, CellModified, now, kvstore.Default); err != nil {
		return result, err
	}

	if err := linklayer.SetPageType(ctx, e.content, page, typeTaxonomyRoot+pageType); err != nil {
		return result, err
	}

	child := page
	for _, ancestor := range parentChain(req.Site, page) {
		if err := linklayer.SetParent(ctx, e.content, child, ancestor); err != nil {
			return result, err
		}
		if err := linklayer.AddChild(ctx, e.content, ancestor, child); err != nil {
			return result, err
		}
		child = ancestor
	}

	if err := e.events.Emit(ctx, EventCreateContent, page); err != nil {
		clog.Warnf("pageops: create_content listener error for %s: %v", page, err)
	}

	if err := e.st.Set(ctx, page, status.Normal); err != nil {
		return result, err
	}
	if err := addToIndex(ctx, e.index, page); err != nil {
		return result, err
	}

	if err := list.Done(ctx); err != nil {
		return result, err
	}
	return result, nil
}
