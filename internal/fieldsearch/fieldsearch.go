// Package fieldsearch implements the Field Search byte-code VM (spec
// §4.5): a small program that locates a named field by traversing a
// page's self, parent chain, child subtree, or a named link, and
// writes whatever it finds to a result sink.
package fieldsearch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/linklayer"
)

// Mode selects whether Execute stops at the first hit or collects every
// hit it visits.
type Mode int

const (
	FIRST Mode = iota
	EACH
)

// Table names the row table an instruction operates against.
type Table int

const (
	ContentTable Table = iota
	BranchTable
	RevisionTable
)

// Op is a single instruction opcode.
type Op int

const (
	OpSelectField Op = iota
	OpSelectTable
	OpSwitchRow // jump the current row to the path context's branch/revision key
	OpSelf      // look up field on the current row
	OpPathOverride
	OpChildren // breadth-first, bounded by Int32 depth
	OpParents  // walk up parents, stop at or above Str limit path
	OpLink     // follow a named link cell
	OpDefault  // push a default value (Bool: only-if-null)
	OpSaveText
	OpSaveXML
	OpSaveInt64
	OpSaveInt64Date
	OpSaveFloat64
	OpLabel
	OpJump
	OpJumpIfFound
	OpJumpIfNotFound
	OpReset
	OpWarning
)

// Instruction is one VM step. Only the fields relevant to Op are
// meaningful; ErrMalformedInstruction is raised by Build for
// combinations that don't make sense (e.g. a negative depth).
type Instruction struct {
	Op    Op
	Str   string
	Int32 int32
	Int64 int64
	Bool  bool
	Table Table
}

// ErrMalformedInstruction is returned by Build (an assert-class,
// construction-time failure per spec §4.5).
var ErrMalformedInstruction = errors.New("fieldsearch: malformed instruction")

// ErrUndefinedLabel is returned at run time by Execute when a jump
// targets a label the program never defines.
var ErrUndefinedLabel = errors.New("fieldsearch: undefined label")

// Program is a validated, executable instruction sequence.
type Program struct {
	instructions []Instruction
	labels       map[string]int
}

// Build validates instructions and resolves label targets, returning a
// Program ready for Execute.
func Build(instructions []Instruction) (*Program, error) {
	labels := make(map[string]int)
	for i, instr := range instructions {
		switch instr.Op {
		case OpSelectField:
			if instr.Str == "" {
				return nil, fmt.Errorf("%w: empty field name at %d", ErrMalformedInstruction, i)
			}
		case OpChildren:
			if instr.Int32 < 0 {
				return nil, fmt.Errorf("%w: negative children depth at %d", ErrMalformedInstruction, i)
			}
		case OpLabel:
			if instr.Str == "" {
				return nil, fmt.Errorf("%w: empty label name at %d", ErrMalformedInstruction, i)
			}
			if _, dup := labels[instr.Str]; dup {
				return nil, fmt.Errorf("%w: duplicate label %q", ErrMalformedInstruction, instr.Str)
			}
			labels[instr.Str] = i
		case OpJump, OpJumpIfFound, OpJumpIfNotFound:
			if instr.Str == "" {
				return nil, fmt.Errorf("%w: jump with no target at %d", ErrMalformedInstruction, i)
			}
		}
	}
	return &Program{instructions: instructions, labels: labels}, nil
}

// Sink receives whatever Execute finds, standing in for the DOM
// subtree the original writes results into (spec §4.5's "element
// navigation/creation" instructions); callers supply whichever backend
// they render with.
type Sink interface {
	SaveText(value string)
	SaveXML(value string)
	SaveInt64(value int64)
	SaveInt64Date(value int64)
	SaveFloat64(value float64)
}

// Vars supplies ${name} substitutions for OpSelectField.
type Vars map[string]string

func substitute(field string, vars Vars) string {
	if vars == nil || !strings.Contains(field, "${") {
		return field
	}
	var out strings.Builder
	rest := field
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += start
		out.WriteString(rest[:start])
		out.WriteString(vars[rest[start+2:end]])
		rest = rest[end+1:]
	}
	return out.String()
}

// childNamePrefix reports whether pattern is a "::*"-suffixed prefix
// match and, if so, returns the bare prefix.
func childNamePrefix(pattern string) (prefix string, isPrefix bool) {
	if strings.HasSuffix(pattern, "::*") {
		return strings.TrimSuffix(pattern, "*"), true
	}
	return pattern, false
}

// Env is the set of row tables and collaborators a program executes
// against.
type Env struct {
	Content  *kvstore.Table
	Branch   *kvstore.Table
	Revision *kvstore.Table
	// Links follows a named link cell on the content row; returns
	// ("", false, nil) when the link is absent.
	Links func(ctx context.Context, row, linkName string) (string, bool, error)
}

func (e *Env) table(t Table) *kvstore.Table {
	switch t {
	case BranchTable:
		return e.Branch
	case RevisionTable:
		return e.Revision
	default:
		return e.Content
	}
}

// Result is one value Execute collected.
type Result struct {
	Row   string
	Field string
	Value kvstore.Value
}

type execState struct {
	env   *Env
	vars  Vars
	mode  Mode
	prog  *Program
	sink  Sink
	limit string // parents traversal stop path

	table     Table
	field     string
	row       string
	startRow  string
	lastFound bool
	results   []Result
}

// Execute runs prog starting from startRow (ordinarily a page's
// content-table key) and returns every Result visited in FIRST or EACH
// mode. sink receives every OpSave* the program reaches; it may be nil
// if the caller only wants the raw Result vector.
func Execute(ctx context.Context, prog *Program, env *Env, startRow string, vars Vars, mode Mode, sink Sink) ([]Result, error) {
	st := &execState{env: env, vars: vars, mode: mode, prog: prog, sink: sink, table: ContentTable, row: startRow, startRow: startRow}

	pc := 0
	for pc < len(prog.instructions) {
		instr := prog.instructions[pc]
		jump, err := st.step(ctx, instr)
		if err != nil {
			return st.results, err
		}
		if jump != "" {
			target, ok := prog.labels[jump]
			if !ok {
				return st.results, fmt.Errorf("%w: %q", ErrUndefinedLabel, jump)
			}
			pc = target
			continue
		}
		pc++
	}
	return st.results, nil
}

func (st *execState) step(ctx context.Context, instr Instruction) (jumpTo string, err error) {
	switch instr.Op {
	case OpSelectField:
		st.field = substitute(instr.Str, st.vars)
	case OpSelectTable:
		st.table = instr.Table
	case OpPathOverride:
		st.row = instr.Str
	case OpSwitchRow:
		st.row = instr.Str
	case OpSelf:
		return "", st.lookup(ctx, st.row)
	case OpChildren:
		return "", st.searchChildren(ctx, instr.Int32)
	case OpParents:
		st.limit = instr.Str
		return "", st.searchParents(ctx)
	case OpLink:
		return "", st.searchLink(ctx, instr.Str)
	case OpDefault:
		if instr.Bool && st.lastFound {
			return "", nil
		}
		st.emit(st.row, []byte(instr.Str))
		st.lastFound = true
	case OpSaveText:
		if v := st.currentValue(); v != nil && st.sink != nil {
			st.sink.SaveText(string(v))
		}
	case OpSaveXML:
		if v := st.currentValue(); v != nil && st.sink != nil {
			st.sink.SaveXML(string(v))
		}
	case OpSaveInt64, OpSaveInt64Date:
		v := st.currentValue()
		if v != nil && st.sink != nil {
			n, perr := strconv.ParseInt(string(v), 10, 64)
			if perr != nil {
				return "", fmt.Errorf("fieldsearch: save int64: %w", perr)
			}
			if instr.Op == OpSaveInt64Date {
				st.sink.SaveInt64Date(n)
			} else {
				st.sink.SaveInt64(n)
			}
		}
	case OpSaveFloat64:
		v := st.currentValue()
		if v != nil && st.sink != nil {
			f, perr := strconv.ParseFloat(string(v), 64)
			if perr != nil {
				return "", fmt.Errorf("fieldsearch: save float64: %w", perr)
			}
			st.sink.SaveFloat64(f)
		}
	case OpLabel:
		// no-op at run time; Build already indexed it.
	case OpJump:
		return instr.Str, nil
	case OpJumpIfFound:
		if st.lastFound {
			return instr.Str, nil
		}
	case OpJumpIfNotFound:
		if !st.lastFound {
			return instr.Str, nil
		}
	case OpReset:
		st.row = st.startRow
		st.lastFound = false
	case OpWarning:
		// Warnings are surfaced to the caller via the results vector's
		// absence; nothing to do at the VM level beyond not failing.
	}
	return "", nil
}

func (st *execState) currentValue() kvstore.Value {
	if len(st.results) == 0 {
		return nil
	}
	return st.results[len(st.results)-1].Value
}

func (st *execState) emit(row string, value kvstore.Value) {
	st.results = append(st.results, Result{Row: row, Field: st.field, Value: value})
}

func (st *execState) lookup(ctx context.Context, row string) error {
	if st.field == "" {
		return fmt.Errorf("%w: field select missing before lookup", ErrMalformedInstruction)
	}
	value, err := st.env.table(st.table).GetCell(ctx, row, st.field, kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			st.lastFound = false
			return nil
		}
		return err
	}
	st.lastFound = true
	st.emit(row, value)
	return nil
}

// searchChildren does a breadth-first walk of the content link tree
// rooted at the current row, up to depth levels, looking up st.field
// on every visited descendant (the starting row itself is skipped). A
// field-name ending in "::*" (set via SelectField) is treated as a
// cell-name prefix match instead of an exact lookup, and that match is
// also run on the starting row.
func (st *execState) searchChildren(ctx context.Context, depth int32) error {
	type frame struct {
		row   string
		level int32
	}
	queue := []frame{{row: st.row, level: 0}}
	prefix, isPrefix := childNamePrefix(st.field)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if isPrefix {
			cells, err := st.env.table(st.table).CellsWithPrefix(ctx, cur.row, prefix)
			if err != nil {
				return err
			}
			for name, value := range cells {
				st.field = name
				st.lastFound = true
				st.emit(cur.row, value)
				if st.mode == FIRST {
					return nil
				}
			}
		} else if cur.row != st.row || cur.level > 0 {
			if err := st.lookup(ctx, cur.row); err != nil {
				return err
			}
			if st.lastFound && st.mode == FIRST {
				return nil
			}
		}

		if cur.level >= depth {
			continue
		}
		children, err := linklayer.Children(ctx, st.env.Content, cur.row)
		if err != nil {
			return err
		}
		for _, child := range children {
			queue = append(queue, frame{row: child, level: cur.level + 1})
		}
	}
	return nil
}

// searchParents walks the parent chain from the current row up to (and
// including) st.limit, looking up st.field at each level.
func (st *execState) searchParents(ctx context.Context) error {
	row := st.row
	for {
		if err := st.lookup(ctx, row); err != nil {
			return err
		}
		if st.lastFound && st.mode == FIRST {
			return nil
		}
		if row == st.limit {
			return nil
		}
		parent, ok, err := linklayer.GetParent(ctx, st.env.Content, row)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row = parent
	}
}

func (st *execState) searchLink(ctx context.Context, linkName string) error {
	if st.env.Links == nil {
		return nil
	}
	target, ok, err := st.env.Links(ctx, st.row, linkName)
	if err != nil {
		return err
	}
	if !ok {
		st.lastFound = false
		return nil
	}
	return st.lookup(ctx, target)
}
