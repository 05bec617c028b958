package attachment

import (
	"context"

	"github.com/snapwebsites/contentengine/internal/keying"
)

// Prune implements the revision_limit cleanup pass, spec §4.7: once
// newRevision exceeds limit, every revision from newRevision-limit down
// to 0 is destroyed, skipping the current and working revisions. The
// walk stops at the first revision key that doesn't exist — an
// approximation the spec itself documents as a known limitation,
// since a gap earlier in the sequence leaves everything below it
// unpruned.
func (e *Engine) Prune(ctx context.Context, page string, branch uint32, locale string, newRevision, limit uint32) error {
	if limit == 0 || newRevision <= limit {
		return nil
	}

	current, hasCurrent, err := e.rc.CurrentRevision(ctx, page, branch, locale, false)
	if err != nil {
		return err
	}
	working, hasWorking, err := e.rc.CurrentRevision(ctx, page, branch, locale, true)
	if err != nil {
		return err
	}

	for r := newRevision - limit; ; r-- {
		skip := (hasCurrent && r == current) || (hasWorking && r == working)
		if !skip {
			key := keying.RevisionKey(page, branch, r, locale)
			has, err := e.revision.HasRow(ctx, key)
			if err != nil {
				return err
			}
			if !has {
				return nil
			}
			if err := e.pages.DestroyRevision(ctx, key); err != nil {
				return err
			}
		}
		if r == 0 {
			return nil
		}
	}
}
