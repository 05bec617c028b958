// Package migrate runs the engine's one-off schema migrations: named,
// idempotent functions applied once each, with their applied markers
// recorded in the content table, the Go
// equivalent of the content plugin's content::do_update sequence of
// dated SNAP_PLUGIN_UPDATE entries. Unlike that sequence we gate on a
// per-migration applied marker rather than a single "last updated"
// timestamp, matching the way beads' dolt backend runs its own
// migrations list.
package migrate

import (
	"context"
	"fmt"

	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// metaRow is the content-table row migrations record themselves under,
// one cell per migration name. It is never a real page key (it carries
// no site prefix and no "/"-rooted path), so it cannot collide with
// page data.
const metaRow = "$migrations"

const appliedMarker = "applied"

// Tables bundles the tables a migration may need to touch. It mirrors
// the table set engine.ContentEngine opens; migrations never reach
// outside these.
type Tables struct {
	Content  *kvstore.Table
	Branch   *kvstore.Table
	Revision *kvstore.Table
	Files    *kvstore.Table
}

// Migration is one named, idempotent schema step.
type Migration struct {
	Name string
	Func func(ctx context.Context, t Tables) error
}

// registry is the ordered list of every migration the engine knows
// about. New entries are appended; existing entries are never reordered
// or removed once released, so a partially-migrated store always has a
// well-defined next step.
var registry = []Migration{
	{"remove-files-compressor", removeFilesCompressor},
}

// Run applies every migration in registry that content has not already
// recorded as applied, in order, stopping at the first failure.
func Run(ctx context.Context, t Tables) error {
	for _, m := range registry {
		applied, err := isApplied(ctx, t.Content, m.Name)
		if err != nil {
			return fmt.Errorf("migrate: checking %s: %w", m.Name, err)
		}
		if applied {
			continue
		}
		if err := m.Func(ctx, t); err != nil {
			return fmt.Errorf("migrate: %s: %w", m.Name, err)
		}
		if err := markApplied(ctx, t.Content, m.Name); err != nil {
			return fmt.Errorf("migrate: recording %s: %w", m.Name, err)
		}
	}
	return nil
}

// Pending reports the names of migrations registry carries that content
// has not yet recorded as applied, without running anything.
func Pending(ctx context.Context, content *kvstore.Table) ([]string, error) {
	var pending []string
	for _, m := range registry {
		applied, err := isApplied(ctx, content, m.Name)
		if err != nil {
			return nil, fmt.Errorf("migrate: checking %s: %w", m.Name, err)
		}
		if !applied {
			pending = append(pending, m.Name)
		}
	}
	return pending, nil
}

func isApplied(ctx context.Context, content *kvstore.Table, name string) (bool, error) {
	_, err := content.GetCell(ctx, metaRow, name, kvstore.Default)
	if err == nil {
		return true, nil
	}
	if err == kvstore.ErrKeyNotFound {
		return false, nil
	}
	return false, err
}

func markApplied(ctx context.Context, content *kvstore.Table, name string) error {
	return content.PutCell(ctx, metaRow, name, []byte(appliedMarker), kvstore.Default)
}
