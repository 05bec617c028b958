// Package journal implements the write-ahead log for in-flight page
// creations (spec §4.9): entries survive a crash mid-create_content and
// are reconciled by a background reaper.
package journal

import (
	"context"
	"errors"
	"sync"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

const (
	cellTimestamp = "content::journal::timestamp"
	cellURL       = "content::journal::url"
)

// DestroyPageFunc is supplied by the page-ops layer so the reaper can
// destroy a stale in-flight page without journal importing pageops
// (which itself depends on journal for create_content's entry write).
type DestroyPageFunc func(ctx context.Context, url string) error

// Engine owns the journal table and the clock used to stamp entries.
type Engine struct {
	table *kvstore.Table
	now   func() int64 // microseconds since epoch
}

// New binds an Engine to the journal table and a clock.
func New(table *kvstore.Table, now func() int64) *Engine {
	return &Engine{table: table, now: now}
}

// Chain tracks the stack of journal Lists active for one logical
// caller chain (e.g. a top-level create_content and any nested
// create_content calls it makes for ancestor pages). Callers create
// one Chain per request/operation and thread it explicitly through
// nested calls — there is no implicit per-goroutine state.
type Chain struct {
	mu      sync.Mutex
	depth   int
	pending []string
}

// NewChain starts an empty call chain.
func NewChain() *Chain {
	return &Chain{}
}

// List is one frame of a Chain: the journal entries added while this
// particular create_content invocation (or one of its callees) was in
// flight.
type List struct {
	engine *Engine
	chain  *Chain
	done   bool
}

// ErrAlreadyDone is returned by Done if called more than once on the
// same List.
var ErrAlreadyDone = errors.New("journal: list already done")

// AcquireList pushes a new frame onto chain and returns the List used
// to record page creations during this frame's lifetime.
func (e *Engine) AcquireList(chain *Chain) *List {
	chain.mu.Lock()
	chain.depth++
	chain.mu.Unlock()
	return &List{engine: e, chain: chain}
}

// AddPageURL durably records that url's page creation is in flight.
// The write happens immediately, regardless of how many frames remain
// open, because it exists specifically to survive a crash before any
// frame calls Done.
func (l *List) AddPageURL(ctx context.Context, url string) error {
	if err := l.engine.table.PutCell(ctx, url, cellTimestamp, cellcodec.EncodeInt64(l.engine.now()), kvstore.Default); err != nil {
		return err
	}
	if err := l.engine.table.PutCell(ctx, url, cellURL, []byte(url), kvstore.Default); err != nil {
		return err
	}
	l.chain.mu.Lock()
	l.chain.pending = append(l.chain.pending, url)
	l.chain.mu.Unlock()
	return nil
}

// Done pops this frame off the chain. If the chain's depth reaches
// zero — every frame opened during this call chain has now called
// Done — every URL recorded anywhere in the chain is dropped from the
// journal table, because the whole chain completed successfully.
// Leaving a frame un-Done (the caller's operation returned an error or
// panicked) leaves the journal entries in place for the reaper.
func (l *List) Done(ctx context.Context) error {
	if l.done {
		return ErrAlreadyDone
	}
	l.done = true

	l.chain.mu.Lock()
	l.chain.depth--
	empty := l.chain.depth == 0
	var urls []string
	if empty {
		urls = l.chain.pending
		l.chain.pending = nil
	}
	l.chain.mu.Unlock()

	for _, url := range urls {
		if err := l.engine.table.DeleteRow(ctx, url); err != nil {
			return err
		}
	}
	return nil
}

// Entry is a single in-flight journal record.
type Entry struct {
	URL       string
	Timestamp int64
}

// Pending lists every journal entry currently recorded.
func (e *Engine) Pending(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := e.table.RangeRows(ctx, "", func(ctx context.Context, row string, cells map[string]kvstore.Value) error {
		tsRaw, ok := cells[cellTimestamp]
		if !ok {
			return nil
		}
		ts, err := cellcodec.DecodeInt64(tsRaw)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{URL: row, Timestamp: ts})
		return nil
	})
	return entries, err
}

// Reap destroys every journal entry older than nowMicros-ageMicros,
// dropping the journal row unconditionally even when DestroyPage
// fails, to avoid an infinite retry loop (spec §4.9).
func (e *Engine) Reap(ctx context.Context, nowMicros, ageMicros int64, destroy DestroyPageFunc, onError func(url string, err error)) (reaped int, err error) {
	entries, err := e.Pending(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := nowMicros - ageMicros
	for _, entry := range entries {
		if entry.Timestamp > cutoff {
			continue
		}
		if destroyErr := destroy(ctx, entry.URL); destroyErr != nil && onError != nil {
			onError(entry.URL, destroyErr)
		}
		if err := e.table.DeleteRow(ctx, entry.URL); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}
