// Package status implements the page lifecycle state machine (spec
// §4.2): encoding, decoding and validating transitions of
// content::status, and the wrapper that reads/writes it with Quorum
// consistency.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// Status is a page lifecycle state. Only Normal, Hidden, Moved and
// Deleted are ever persisted; Create is synthesized at read time and
// Unknown is never observed as a successful read.
type Status int32

const (
	Unknown Status = 0
	Create  Status = 1
	Normal  Status = 2
	Hidden  Status = 3
	Moved   Status = 4
	Deleted Status = 5
)

func (s Status) String() string {
	switch s {
	case Create:
		return "CREATE"
	case Normal:
		return "NORMAL"
	case Hidden:
		return "HIDDEN"
	case Moved:
		return "MOVED"
	case Deleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// ErrorKind is the status-specific error set, distinct from Go errors:
// a read can fail to produce any Status at all.
type ErrorKind int

const (
	NoError ErrorKind = iota
	// Undefined means the content row or its content::status cell is
	// absent.
	Undefined
	// Unsupported means content::status holds a value outside the
	// persisted set.
	Unsupported
)

// ErrInvalidTransition is returned when a requested status change is
// not allowed by the transition table.
var ErrInvalidTransition = errors.New("status: invalid transition")

// ErrNotPersistable is returned by Encode for values that may never be
// written: Unknown, Create, or anything outside the persisted set.
var ErrNotPersistable = errors.New("status: value cannot be persisted")

// Cell names, spec §6.2.
const (
	CellStatus        = "content::status"
	CellStatusChanged = "content::status_changed"
	CellPrimaryOwner  = "content::primary_owner"
)

// Encode maps a Status to its persisted 4-byte big-endian wire form.
// Encoding Unknown, Create or any value outside {Normal,Hidden,Moved,
// Deleted} fails.
func Encode(s Status) ([]byte, error) {
	switch s {
	case Normal, Hidden, Moved, Deleted:
		return cellcodec.EncodeUint32(uint32(s)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotPersistable, s)
	}
}

// Decode maps a 4-byte cell value back to a Status. A value outside
// the persisted set decodes as (Unknown, Unsupported).
func Decode(b []byte) (Status, ErrorKind) {
	v, err := cellcodec.DecodeUint32(b)
	if err != nil {
		return Unknown, Unsupported
	}
	switch Status(v) {
	case Normal, Hidden, Moved, Deleted:
		return Status(v), NoError
	default:
		return Unknown, Unsupported
	}
}

// transitions is the allowed-target table for states that were
// actually read successfully. The Undefined-error case is handled
// separately by CanTransition since it has no Status to key on.
var transitions = map[Status]map[Status]bool{
	Normal:  {Normal: true, Hidden: true, Moved: true, Deleted: true},
	Hidden:  {Hidden: true, Normal: true, Deleted: true},
	Moved:   {Moved: true, Normal: true, Hidden: true},
	Deleted: {Deleted: true, Normal: true},
	Create:  {Create: true, Normal: true, Hidden: true},
}

// CanTransition reports whether moving from the given read outcome to
// `to` is permitted by spec §4.2's transition table. `to` must itself
// be persistable (Normal/Hidden/Moved/Deleted) or equal to Create,
// since Create is the one non-persisted target the table allows.
func CanTransition(fromStatus Status, fromErr ErrorKind, to Status) bool {
	if fromErr == Undefined {
		return to == Create
	}
	if fromErr == Unsupported {
		return false
	}
	allowed, ok := transitions[fromStatus]
	if !ok {
		return false
	}
	return allowed[to]
}

// Store reads and writes a single page's status with Quorum
// consistency, per spec §4.2 and §5.
type Store struct {
	table *kvstore.Table
	// processStart is written into content::status_changed on every
	// write, per spec §4.2 ("set to the process start-time in µs"),
	// not wall-clock write time.
	processStart int64
}

// NewStore binds a Store to the content table, stamping every future
// write with processStartMicros as the engine's process start time.
func NewStore(contentTable *kvstore.Table, processStartMicros int64) *Store {
	return &Store{table: contentTable, processStart: processStartMicros}
}

// Read returns the page's current status, synthesizing Create when
// content::primary_owner exists but content::status does not (spec
// §4.2, §3.4).
func (s *Store) Read(ctx context.Context, page string) (Status, ErrorKind, error) {
	raw, err := s.table.GetCell(ctx, page, CellStatus, kvstore.Quorum)
	if err == nil {
		st, kind := Decode(raw)
		return st, kind, nil
	}
	if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return Unknown, NoError, err
	}

	owner, err := s.table.GetCell(ctx, page, CellPrimaryOwner, kvstore.Quorum)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return Unknown, Undefined, nil
		}
		return Unknown, NoError, err
	}
	if len(owner) > 0 {
		return Create, NoError, nil
	}
	return Unknown, Undefined, nil
}

// Set validates and persists a transition to `to`, rejecting any
// (from, to) pair not present in the transition table (Unknown is never
// a valid target). A permitted move to Create, which is only allowed
// from Undefined, is not persisted: content::status is deleted instead.
func (s *Store) Set(ctx context.Context, page string, to Status) error {
	fromStatus, fromErr, err := s.Read(ctx, page)
	if err != nil {
		return err
	}
	if !CanTransition(fromStatus, fromErr, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, describe(fromStatus, fromErr), to)
	}
	if to == Create {
		// Create is never persisted; resurrecting into CREATE just
		// means "leave content::status absent" (spec §4.2).
		return s.table.DeleteCell(ctx, page, CellStatus, kvstore.Quorum)
	}
	encoded, err := Encode(to)
	if err != nil {
		return err
	}
	if err := s.table.PutCell(ctx, page, CellStatus, encoded, kvstore.Quorum); err != nil {
		return err
	}
	return s.table.PutCell(ctx, page, CellStatusChanged, cellcodec.EncodeInt64(s.processStart), kvstore.Quorum)
}

func describe(st Status, kind ErrorKind) string {
	switch kind {
	case Undefined:
		return "UNDEFINED"
	case Unsupported:
		return "UNSUPPORTED"
	default:
		return st.String()
	}
}
