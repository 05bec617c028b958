// Package worker implements the content engine's background
// maintenance passes (spec §4.8, §4.9, §4.7's file reprocessing): the
// periodic "snapbackend" cycle that reaps stuck processing rows,
// rebuilds the `*index*` row, drains the files table's `new` queue and
// reaps the journal. It is the one place in the engine that runs on a
// clock instead of in response to a caller.
package worker

import (
	"context"

	"github.com/snapwebsites/contentengine/internal/attachment"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
	"github.com/snapwebsites/contentengine/internal/status"
)

const (
	indexTable = "index"
	indexRow   = "*index*"
)

// Engine wires the tables and collaborators a maintenance cycle needs.
// Callers construct one per process, mirroring every other Engine in
// this module (no package-level singleton).
type Engine struct {
	content    *kvstore.Table
	processing *kvstore.Table
	index      *kvstore.Table

	st          *status.Store
	journal     *journal.Engine
	attachments *attachment.Engine
	destroyPage journal.DestroyPageFunc

	now func() int64 // microseconds since epoch
}

// New binds an Engine to its tables and collaborators. store backs the
// dedicated index table, the same way pageops.New derives it, so both
// packages agree on the physical location of `*index*`.
func New(store kvstore.Store, content, processing *kvstore.Table, st *status.Store, j *journal.Engine, attachments *attachment.Engine, pages *pageops.Engine, now func() int64) *Engine {
	return &Engine{
		content:     content,
		processing:  processing,
		index:       kvstore.NewTable(store, indexTable),
		st:          st,
		journal:     j,
		attachments: attachments,
		destroyPage: pages.Destroy,
		now:         now,
	}
}

// CycleResult summarizes one snapbackend pass over a single site, spec
// §6.3 `content::snapbackend`.
type CycleResult struct {
	Site             string
	ProcessingReaped int
	IndexAdded       int
	IndexRemoved     int
	AttachmentsDone  int
	JournalReaped    int
}

// RunCycle performs the full snapbackend pass for one site: status
// reap, index rebuild, attachment batch processing, journal reap. The
// first error from any stage aborts the remaining stages and is
// returned, since a half-applied cycle is always safe to resume on the
// next tick.
func (e *Engine) RunCycle(ctx context.Context, site string, journalAgeMicros int64, attachmentBatch int) (CycleResult, error) {
	result := CycleResult{Site: site}

	reaped, err := e.ReapProcessing(ctx, site)
	if err != nil {
		return result, err
	}
	result.ProcessingReaped = reaped

	added, removed, err := e.RebuildIndex(ctx, site)
	if err != nil {
		return result, err
	}
	result.IndexAdded, result.IndexRemoved = added, removed

	if e.attachments != nil {
		processed, err := e.attachments.ProcessBatch(ctx, site, attachmentBatch)
		if err != nil {
			return result, err
		}
		result.AttachmentsDone = processed
	}

	journalReaped, err := e.journal.Reap(ctx, e.now(), journalAgeMicros, e.destroyPage, nil)
	if err != nil {
		return result, err
	}
	result.JournalReaped = journalReaped

	return result, nil
}
