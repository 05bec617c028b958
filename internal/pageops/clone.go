package pageops

import (
	"context"
	"strings"

	"github.com/snapwebsites/contentengine/internal/clog"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/linklayer"
	"github.com/snapwebsites/contentengine/internal/status"
)

// revisionControlKeyPrefix matches the *_key cells revctl maintains on
// the content row (current_branch_key, current_revision_key::<n>, ...):
// their values are fully-formed row keys into the branch/revision
// tables and must be rewritten from source to destination on clone.
const revisionControlKeyPrefix = "content::revision_control::"

var cloneSkipContentCells = map[string]bool{
	status.CellStatus:        true,
	status.CellStatusChanged: true,
	CellCloned:               true,
}

func isLinkCell(name string) bool {
	switch name {
	case linklayer.CellParent, linklayer.CellPageType, linklayer.CellClone, linklayer.CellOriginal:
		return true
	}
	return strings.HasPrefix(name, linklayer.ChildPrefix)
}

// cloneContentRow copies source's content row to destination per spec
// §4.6 clone_page: status-family cells are dropped (the caller sets
// destination's status explicitly afterward), and any revision-control
// "*_key" cell whose cached value starts with the source key has that
// prefix rewritten to destination.
func cloneContentRow(ctx context.Context, content *kvstore.Table, source, destination string) error {
	cells, err := content.Cells(ctx, source)
	if err != nil {
		return err
	}
	for name, value := range cells {
		if cloneSkipContentCells[name] {
			continue
		}
		if strings.HasPrefix(name, revisionControlKeyPrefix) && strings.Contains(name, "_key") && strings.HasPrefix(string(value), source) {
			value = []byte(destination + strings.TrimPrefix(string(value), source))
		}
		if err := content.PutCell(ctx, destination, name, value, kvstore.Default); err != nil {
			return err
		}
	}
	return nil
}

// CloneRequest parameterizes clone_page.
type CloneRequest struct {
	Source      string
	Destination string
	SourceDone  status.Status
	DestDone    status.Status
}

// Clone implements clone_page, spec §4.6: it copies a page's content
// row, every branch that has been allocated, and every revision of
// every such branch, then sets both pages' final status.
func (e *Engine) Clone(ctx context.Context, req CloneRequest) error {
	exists, err := e.content.HasRow(ctx, req.Destination)
	if err != nil {
		return err
	}
	if exists {
		return ErrDestinationExists
	}

	if err := cloneContentRow(ctx, e.content, req.Source, req.Destination); err != nil {
		return err
	}

	last, ok, err := e.rc.LastBranch(ctx, req.Source)
	if err != nil {
		return err
	}
	if ok {
		for b := keying.SystemBranch; ; b++ {
			if err := e.cloneBranch(ctx, req.Source, req.Destination, b); err != nil {
				return err
			}
			if b == last {
				break
			}
		}
	}

	if err := e.events.Emit(ctx, EventPageCloned, req.Destination); err != nil {
		clog.Warnf("pageops: page_cloned listener error for %s: %v", req.Destination, err)
	}

	if err := e.st.Set(ctx, req.Destination, req.DestDone); err != nil {
		return err
	}
	return e.st.Set(ctx, req.Source, req.SourceDone)
}

func (e *Engine) cloneBranch(ctx context.Context, source, destination string, branch uint32) error {
	srcKey := keying.BranchKey(source, branch)
	cells, err := e.branch.Cells(ctx, srcKey)
	if err != nil {
		return err
	}
	if _, ok := cells[CellCreated]; !ok {
		return nil
	}
	dstKey := keying.BranchKey(destination, branch)
	for name, value := range cells {
		if isLinkCell(name) {
			continue
		}
		if err := e.branch.PutCell(ctx, dstKey, name, value, kvstore.Default); err != nil {
			return err
		}
	}
	if err := linklayer.SetCloneLinks(ctx, e.branch, dstKey, srcKey); err != nil {
		return err
	}

	return e.revision.RangeRows(ctx, source+"#", func(ctx context.Context, row string, revCells map[string]kvstore.Value) error {
		_, revBranch, revision, locale, err := keying.ParseRevisionKey(row)
		if err != nil || revBranch != branch {
			return nil
		}
		dstRevKey := keying.RevisionKey(destination, branch, revision, locale)
		for name, value := range revCells {
			if err := e.revision.PutCell(ctx, dstRevKey, name, value, kvstore.Default); err != nil {
				return err
			}
		}
		return nil
	})
}
