package migrate

import (
	"context"

	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// legacyFilesCompressorCell is the obsolete per-file compressor marker
// the original content plugin replaced with separate
// content::files::data::<compressor> and content::files::size::<compressor>
// cells. It never existed in this engine's write paths, but a store
// migrated forward from an older snapshot may still carry it.
const legacyFilesCompressorCell = "content::files::compressor"

// removeFilesCompressor drops the legacy compressor cell from every row
// of the files table.
func removeFilesCompressor(ctx context.Context, t Tables) error {
	return t.Files.RangeRows(ctx, "", func(ctx context.Context, row string, cells map[string]kvstore.Value) error {
		if _, ok := cells[legacyFilesCompressorCell]; !ok {
			return nil
		}
		return t.Files.DeleteCell(ctx, row, legacyFilesCompressorCell, kvstore.Default)
	})
}
