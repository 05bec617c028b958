package pageops

import (
	"context"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// Modified implements modified_content, spec §4.6: it stamps
// content::modified on both the content row and the given branch's
// row. A missing page is not an error; it is logged and silently
// ignored, matching the original's tolerance for late or duplicate
// notifications.
func (e *Engine) Modified(ctx context.Context, page string, branch uint32) error {
	exists, err := e.content.HasRow(ctx, page)
	if err != nil {
		return err
	}
	if !exists {
		warnIfMissing(page, kvstore.ErrKeyNotFound)
		return nil
	}

	now := cellcodec.EncodeInt64(e.now())
	if err := e.content.PutCell(ctx, page, CellModified, now, kvstore.Default); err != nil {
		return err
	}
	return e.branch.PutCell(ctx, keying.BranchKey(page, branch), CellModified, now, kvstore.Default)
}
