package kvstore

import (
	"bytes"
	"context"
)

// cellSep separates a row key from a cell name inside a Table's flat
// Store key. It is a control byte, never valid in a row key or cell
// name produced by internal/keying or the cell-name constants, so the
// composite key round-trips without escaping.
const cellSep = 0x00

// Table projects the row/cell model spec §3.1 describes onto a flat
// Store by composing keys as "<table>\x00<row>\x00<cell>". This is the
// same trick a real wide-column proxy performs internally; it lets one
// Store implementation (memstore, boltstore, ...) serve every table.
type Table struct {
	store Store
	name  string
}

// NewTable binds a table name to a backing Store.
func NewTable(store Store, name string) *Table {
	return &Table{store: store, name: name}
}

// Name returns the table name it was constructed with.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) rowPrefix(row string) []byte {
	buf := make([]byte, 0, len(t.name)+len(row)+2)
	buf = append(buf, t.name...)
	buf = append(buf, cellSep)
	buf = append(buf, row...)
	buf = append(buf, cellSep)
	return buf
}

func (t *Table) cellKey(row, cell string) []byte {
	buf := t.rowPrefix(row)
	return append(buf, cell...)
}

// GetCell reads a single cell. It returns ErrKeyNotFound if the row or
// the cell is absent.
func (t *Table) GetCell(ctx context.Context, row, cell string, c Consistency) (Value, error) {
	return t.store.Get(ctx, t.cellKey(row, cell), c)
}

// PutCell writes a single cell.
func (t *Table) PutCell(ctx context.Context, row, cell string, value Value, c Consistency) error {
	return t.store.Put(ctx, t.cellKey(row, cell), value, c)
}

// DeleteCell removes a single cell. Deleting an absent cell is not an
// error, matching Cassandra tombstone semantics.
func (t *Table) DeleteCell(ctx context.Context, row, cell string, c Consistency) error {
	return t.store.Delete(ctx, t.cellKey(row, cell), c)
}

// HasRow reports whether any cell exists for the row.
func (t *Table) HasRow(ctx context.Context, row string) (bool, error) {
	found := false
	stop := errStopRange
	err := t.store.Range(ctx, t.rowPrefix(row), func(ctx context.Context, item Item) error {
		found = true
		return stop
	})
	if err != nil && err != stop {
		return false, err
	}
	return found, nil
}

// Cells returns every cell of a row as a name->value map. Absent rows
// return an empty, non-nil map.
func (t *Table) Cells(ctx context.Context, row string) (map[string]Value, error) {
	prefix := t.rowPrefix(row)
	cells := make(map[string]Value)
	err := t.store.Range(ctx, prefix, func(ctx context.Context, item Item) error {
		name := bytes.TrimPrefix(item.Key, prefix)
		v := make(Value, len(item.Value))
		copy(v, item.Value)
		cells[string(name)] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// CellsWithPrefix returns every cell of a row whose name begins with
// namePrefix, keyed by the full cell name. Used for scans like
// "content::files::reference::*" and "current_revision::<branch>::*".
func (t *Table) CellsWithPrefix(ctx context.Context, row, namePrefix string) (map[string]Value, error) {
	all, err := t.Cells(ctx, row)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Value)
	for name, v := range all {
		if len(name) >= len(namePrefix) && name[:len(namePrefix)] == namePrefix {
			out[name] = v
		}
	}
	return out, nil
}

// DeleteRow removes every cell of a row.
func (t *Table) DeleteRow(ctx context.Context, row string) error {
	cells, err := t.Cells(ctx, row)
	if err != nil {
		return err
	}
	for name := range cells {
		if err := t.DeleteCell(ctx, row, name, Default); err != nil {
			return err
		}
	}
	return nil
}

// RangeRows calls fn once per distinct row key whose row key has the
// given row-key prefix (not a cell-name prefix). fn receives the row
// key and its full cell map.
func (t *Table) RangeRows(ctx context.Context, rowKeyPrefix string, fn func(ctx context.Context, row string, cells map[string]Value) error) error {
	prefix := append([]byte(t.name), cellSep)
	prefix = append(prefix, rowKeyPrefix...)

	rows := make(map[string]map[string]Value)
	var order []string
	err := t.store.Range(ctx, prefix, func(ctx context.Context, item Item) error {
		rest := bytes.TrimPrefix(item.Key, append([]byte(t.name), cellSep))
		idx := bytes.IndexByte(rest, cellSep)
		if idx < 0 {
			return nil
		}
		row := string(rest[:idx])
		cell := string(rest[idx+1:])
		m, ok := rows[row]
		if !ok {
			m = make(map[string]Value)
			rows[row] = m
			order = append(order, row)
		}
		v := make(Value, len(item.Value))
		copy(v, item.Value)
		m[cell] = v
		return nil
	})
	if err != nil {
		return err
	}
	for _, row := range order {
		if err := fn(ctx, row, rows[row]); err != nil {
			return err
		}
	}
	return nil
}

// sentinel used internally to short-circuit Range for an existence check.
type stopRangeErr struct{}

func (stopRangeErr) Error() string { return "kvstore: stop range" }

var errStopRange error = stopRangeErr{}
