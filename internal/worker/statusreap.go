package worker

import (
	"context"
	"errors"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/status"
)

// processingStaleMicros is the "now - 10 min" threshold spec §4.8
// hard-codes for promoting a stuck CREATE out of the processing table.
const processingStaleMicros = 10 * 60 * 1000000

// ReapProcessing implements spec §4.8 step 1: every row in the
// processing table under site is dropped. A row whose content row
// still exists and whose content::status_changed is old enough to be
// considered stuck also gets its status promoted from CREATE to
// NORMAL before the processing row goes away, recovering a creation
// that completed but never cleared its own bookkeeping.
func (e *Engine) ReapProcessing(ctx context.Context, site string) (int, error) {
	return e.reapProcessing(ctx, site, e.now()-processingStaleMicros)
}

// ForceReapProcessing implements spec §6.3 `content::forceresetstatus`:
// the same pass as ReapProcessing, but every stuck CREATE is promoted
// unconditionally regardless of how recently content::status_changed
// was written.
func (e *Engine) ForceReapProcessing(ctx context.Context, site string) (int, error) {
	return e.reapProcessing(ctx, site, e.now())
}

func (e *Engine) reapProcessing(ctx context.Context, site string, cutoff int64) (int, error) {
	var rows []string
	err := e.processing.RangeRows(ctx, site, func(ctx context.Context, row string, cells map[string]kvstore.Value) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, page := range rows {
		has, err := e.content.HasRow(ctx, page)
		if err != nil {
			return reaped, err
		}
		if has {
			if err := e.maybePromoteStuckCreate(ctx, page, cutoff); err != nil {
				return reaped, err
			}
		}
		if err := e.processing.DeleteRow(ctx, page); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

func (e *Engine) maybePromoteStuckCreate(ctx context.Context, page string, cutoff int64) error {
	changedRaw, err := e.content.GetCell(ctx, page, status.CellStatusChanged, kvstore.Quorum)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	changed, err := cellcodec.DecodeInt64(changedRaw)
	if err != nil || changed > cutoff {
		return nil
	}

	st, kind, err := e.st.Read(ctx, page)
	if err != nil {
		return err
	}
	if kind == status.NoError && st == status.Create {
		return e.st.Set(ctx, page, status.Normal)
	}
	return nil
}
