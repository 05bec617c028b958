// Package linklayer implements the small subset of link-cell behavior
// Page Ops touches directly: parent/children chains, the page-type
// link, and per-branch clone/original-page pointers. The full link
// layer (arbitrary named *:* links with branch-scoped multiplicity,
// spec §4.10) is an out-of-scope collaborator per spec §1 ("the links
// plugin"); this package is the minimal, concretely-typed stand-in
// Page Ops and the XML ingestor need to compile against.
package linklayer

import (
	"context"
	"strings"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

const (
	CellParent   = "content::parent"
	ChildPrefix  = "content::children::"
	CellPageType = "content::page_type"
	CellClone    = "content::clone"
	CellOriginal = "content::original_page"
)

// SetParent points child at parent.
func SetParent(ctx context.Context, content *kvstore.Table, child, parent string) error {
	return content.PutCell(ctx, child, CellParent, []byte(parent), kvstore.Default)
}

// GetParent returns the page's parent, if any.
func GetParent(ctx context.Context, content *kvstore.Table, page string) (string, bool, error) {
	raw, err := content.GetCell(ctx, page, CellParent, kvstore.Default)
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return string(raw), true, nil
}

// AddChild records child as one of parent's children.
func AddChild(ctx context.Context, content *kvstore.Table, parent, child string) error {
	return content.PutCell(ctx, parent, ChildPrefix+child, cellcodec.True, kvstore.Default)
}

// RemoveChild removes child from parent's children set.
func RemoveChild(ctx context.Context, content *kvstore.Table, parent, child string) error {
	return content.DeleteCell(ctx, parent, ChildPrefix+child, kvstore.Default)
}

// Children lists every child key recorded under page.
func Children(ctx context.Context, content *kvstore.Table, page string) ([]string, error) {
	cells, err := content.CellsWithPrefix(ctx, page, ChildPrefix)
	if err != nil {
		return nil, err
	}
	children := make([]string, 0, len(cells))
	for name := range cells {
		children = append(children, strings.TrimPrefix(name, ChildPrefix))
	}
	return children, nil
}

// SetPageType points page at its content-type taxonomy entry.
func SetPageType(ctx context.Context, content *kvstore.Table, page, typeKey string) error {
	return content.PutCell(ctx, page, CellPageType, []byte(typeKey), kvstore.Default)
}

// SetCloneLinks records, on a branch row, that it is a clone of
// originalBranchKey.
func SetCloneLinks(ctx context.Context, branch *kvstore.Table, cloneBranchKey, originalBranchKey string) error {
	if err := branch.PutCell(ctx, cloneBranchKey, CellClone, []byte(originalBranchKey), kvstore.Default); err != nil {
		return err
	}
	return branch.PutCell(ctx, originalBranchKey, CellOriginal, []byte(cloneBranchKey), kvstore.Default)
}
