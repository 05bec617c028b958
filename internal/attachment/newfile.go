package attachment

import (
	"context"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// MarkNew implements spec §6.3 `content::newfile MD5`: force an
// already-ingested file back into the `new` queue so the next
// snapbackend pass re-runs security scanning and JS/CSS processing on
// it, resetting every `content::files::reference::*` cell on the row
// to `1` (new) the same way a first upload would leave them.
func (e *Engine) MarkNew(ctx context.Context, md5Hex string) error {
	refs, err := e.files.CellsWithPrefix(ctx, md5Hex, cellFileReferencePrefix)
	if err != nil {
		return err
	}
	for name := range refs {
		if err := e.files.PutCell(ctx, md5Hex, name, cellcodec.True, kvstore.Default); err != nil {
			return err
		}
	}
	return e.files.PutCell(ctx, newIndexRow, md5Hex, cellcodec.True, kvstore.Default)
}
