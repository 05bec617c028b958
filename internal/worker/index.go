package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
)

// RebuildIndex implements spec §4.8 step 2, the `*index*` maintenance
// pass: a forward pass adds every live page under site that is missing
// from the index, and a reverse pass drops every indexed page under
// site that no longer has content::created. Run independently of
// ReapProcessing (content::rebuildindex is its own CLI action, spec
// §6.3).
func (e *Engine) RebuildIndex(ctx context.Context, site string) (added, removed int, err error) {
	err = e.content.RangeRows(ctx, site, func(ctx context.Context, row string, cells map[string]kvstore.Value) error {
		if row == "" || strings.HasPrefix(row, "*") {
			return nil
		}
		if _, ok := cells[pageops.CellCreated]; !ok {
			return nil
		}
		already, err := e.index.GetCell(ctx, indexRow, row, kvstore.Default)
		if err == nil && cellcodec.IsTrue(already) {
			return nil
		}
		if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
			return err
		}
		if err := e.index.PutCell(ctx, indexRow, row, cellcodec.True, kvstore.Default); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		return added, removed, err
	}

	indexed, err := e.index.Cells(ctx, indexRow)
	if err != nil {
		return added, removed, err
	}
	for page := range indexed {
		if !strings.HasPrefix(page, site) {
			continue
		}
		_, err := e.content.GetCell(ctx, page, pageops.CellCreated, kvstore.Default)
		if err == nil {
			continue
		}
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			return added, removed, err
		}
		if err := e.index.DeleteCell(ctx, indexRow, page, kvstore.Default); err != nil {
			return added, removed, err
		}
		removed++
	}
	return added, removed, nil
}
