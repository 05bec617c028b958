package xmlimport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/snapwebsites/contentengine/internal/attachment"
	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/clog"
	"github.com/snapwebsites/contentengine/internal/distlock"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
	"github.com/snapwebsites/contentengine/internal/revctl"
)

// Engine applies a declarative XML document against the content
// engine, spec §4.10. It is constructed once per process like every
// other component (spec design notes §9).
type Engine struct {
	content  *kvstore.Table
	branch   *kvstore.Table
	revision *kvstore.Table

	rc          *revctl.Control
	pages       *pageops.Engine
	attachments *attachment.Engine
	locker      distlock.Locker
	now         func() int64
}

// New binds an Engine to its tables and collaborators.
func New(content, branch, revision *kvstore.Table, rc *revctl.Control, pages *pageops.Engine, attachments *attachment.Engine, locker distlock.Locker, now func() int64) *Engine {
	return &Engine{
		content:     content,
		branch:      branch,
		revision:    revision,
		rc:          rc,
		pages:       pages,
		attachments: attachments,
		locker:      locker,
		now:         now,
	}
}

// Result reports the pages an Apply pass actually created, for callers
// that want to log or test against it.
type Result struct {
	Created []string
	Skipped []string
}

// priorityTracker records the highest write priority seen so far for
// each (table, row, cell) this ingest pass has touched, implementing
// spec §4.10's "higher priority write wins; equal priority silently
// overrides" rule. It is scoped to a single Apply call: priority has
// no meaning across separate ingest passes.
type priorityTracker struct {
	seen map[string]uint64
}

func newPriorityTracker() *priorityTracker {
	return &priorityTracker{seen: make(map[string]uint64)}
}

// allow reports whether a write at the given priority should proceed,
// recording it as the new high-water mark when it does.
func (p *priorityTracker) allow(table, row, cell string, priority uint64) bool {
	key := table + "\x00" + row + "\x00" + cell
	if prior, ok := p.seen[key]; ok && priority < prior {
		return false
	}
	p.seen[key] = priority
	return true
}

// Apply parses raw and writes every content/param/link/attachment
// entry it describes against site, holding the per-site update lock
// for the whole pass (spec §4.10, §5). It is safe to call concurrently
// from different sites; two Apply calls against the same site
// serialize on the site lock.
func (e *Engine) Apply(ctx context.Context, chain *journal.Chain, site string, raw []byte) (Result, error) {
	doc, err := Parse(raw)
	if err != nil {
		return Result{}, err
	}

	entries := make([]content, len(doc.Content))
	copy(entries, doc.Content)
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.Count(strings.Trim(entries[i].Path, "/"), "/") < strings.Count(strings.Trim(entries[j].Path, "/"), "/")
	})

	release, err := e.locker.Lock(ctx, site+"#updating")
	if err != nil {
		return Result{}, err
	}
	defer release()

	tracker := newPriorityTracker()
	var result Result

	for _, c := range entries {
		page := keying.ContentKey(site, c.Path)
		created, err := e.applyContent(ctx, chain, site, page, c, tracker)
		if err != nil {
			return result, fmt.Errorf("xmlimport: %s: %w", c.Path, err)
		}
		if created {
			result.Created = append(result.Created, page)
		} else {
			result.Skipped = append(result.Skipped, page)
		}
	}
	return result, nil
}

func (e *Engine) applyContent(ctx context.Context, chain *journal.Chain, site, page string, c content, tracker *priorityTracker) (created bool, err error) {
	exists, err := e.content.HasRow(ctx, page)
	if err != nil {
		return false, err
	}

	if !exists {
		if c.MovedFrom != "" {
			oldPage := keying.ContentKey(site, c.MovedFrom)
			oldExists, err := e.content.HasRow(ctx, oldPage)
			if err != nil {
				return false, err
			}
			if oldExists {
				if err := e.pages.Move(ctx, oldPage, page); err != nil {
					return false, err
				}
				exists = true
			}
		}
	}

	if !exists {
		parent, hasParent := parentOf(site, page)
		// The site root is never itself imported, so a top-level page's
		// parent is taken as present.
		if hasParent && parent != strings.TrimRight(site, "/") {
			parentExists, err := e.content.HasRow(ctx, parent)
			if err != nil {
				return false, err
			}
			if !parentExists {
				// Required invariant (spec §4.10): create_content only
				// fires for a new page whose parent exists. The sort
				// above guarantees this in the common case; a page
				// naming a parent absent from both the document and
				// the store is a malformed document, not a transient
				// condition, so it is reported rather than silently
				// deferred.
				return false, fmt.Errorf("parent %q does not exist", parent)
			}
		}
		owner := c.Owner
		if owner == "" {
			owner = "content"
		}
		_, err = e.pages.Create(ctx, chain, pageops.CreateRequest{
			Site:         site,
			Path:         c.Path,
			Owner:        owner,
			Type:         c.Type,
			Declarative:  true,
			WithRevision: true,
		})
		if err != nil && !errors.Is(err, pageops.ErrAlreadyExists) {
			return false, err
		}
		created = true
	}

	for _, p := range c.Params {
		if err := e.applyParam(ctx, page, p, tracker); err != nil {
			return created, err
		}
	}
	for _, rp := range c.RemoveParam {
		if err := e.applyRemoveParam(ctx, page, rp); err != nil {
			return created, err
		}
	}
	for _, l := range c.Links {
		if err := e.applyLink(ctx, page, l, tracker); err != nil {
			return created, err
		}
	}
	for _, rl := range c.RemoveLinks {
		if err := e.applyRemoveLink(ctx, page, rl); err != nil {
			return created, err
		}
	}
	for _, a := range c.Attachments {
		if err := e.applyAttachment(ctx, chain, site, c.Path, a); err != nil {
			return created, err
		}
	}

	return created, nil
}

func parentOf(site, page string) (string, bool) {
	site = strings.TrimRight(site, "/")
	if page == site {
		return "", false
	}
	idx := strings.LastIndex(page, "/")
	if idx < 0 || idx < len(site) {
		return site, true
	}
	return page[:idx], true
}

// paramCellName composes the cell a <param> element targets. A
// force-namespace="yes" param is prefixed with "param::" so two
// plugins naming the same logical field (e.g. "title") don't collide
// when neither owns a dedicated cell namespace; otherwise the bare
// name is used as-is, matching how pageops/status/revctl cells are
// named directly (spec §6.2 lists no param-specific namespace).
func paramCellName(p param) string {
	name := p.Name
	if p.ForceNamespace == "yes" {
		name = "param::" + name
	}
	if p.Lang != "" {
		name += "::" + p.Lang
	}
	return name
}

func encodeParamValue(p param) ([]byte, error) {
	switch p.Type {
	case "", "string":
		return []byte(p.Value), nil
	case "int8":
		v, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		return cellcodec.EncodeInt8(int8(v)), nil
	case "int32":
		v, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		return cellcodec.EncodeInt32(int32(v)), nil
	case "int64":
		v, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		return cellcodec.EncodeInt64(v), nil
	case "float", "double":
		v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		return cellcodec.EncodeFloat64(v), nil
	default:
		return nil, fmt.Errorf("param %q: unknown type %q", p.Name, p.Type)
	}
}

func (e *Engine) applyParam(ctx context.Context, page string, p param, tracker *priorityTracker) error {
	table, row, err := e.targetRow(ctx, page, p.Revision, p.Lang)
	if err != nil {
		return err
	}
	cell := paramCellName(p)

	if p.Overwrite == "no" {
		_, err := table.GetCell(ctx, row, cell, kvstore.Default)
		if err == nil {
			return nil
		}
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			return err
		}
	}

	if !tracker.allow(table.Name(), row, cell, p.Priority) {
		clog.Debugf("xmlimport: %s/%s cell %s: lower-priority write dropped", table.Name(), row, cell)
		return nil
	}

	value, err := encodeParamValue(p)
	if err != nil {
		return err
	}
	return table.PutCell(ctx, row, cell, value, kvstore.Default)
}

func (e *Engine) applyRemoveParam(ctx context.Context, page string, rp removeParam) error {
	return e.content.DeleteCell(ctx, page, rp.Name, kvstore.Default)
}

// linkCellName composes the content-table cell a <link> writes.
// Multiplicity (mode) and branch-addressing (branches) are deliberate
// no-ops here: the full named-link layer is the out-of-scope "links
// plugin" collaborator (spec §1), and internal/linklayer only models
// the handful of link shapes Page Ops itself needs (parent/children/
// page_type/clone). A declarative <link> therefore records just its
// destination as a plain cell; a real link-layer implementation would
// consume this cell the same way it consumes any other `links::*` one.
func linkCellName(name string) string {
	return "links::" + name
}

func (e *Engine) applyLink(ctx context.Context, page string, l link, tracker *priorityTracker) error {
	cell := linkCellName(l.Name)
	if !tracker.allow(e.content.Name(), page, cell, 0) {
		return nil
	}
	destination := l.Destination
	if destination == "" {
		destination = l.To
	}
	return e.content.PutCell(ctx, page, cell, []byte(destination), kvstore.Default)
}

func (e *Engine) applyRemoveLink(ctx context.Context, page string, rl removeLink) error {
	return e.content.DeleteCell(ctx, page, linkCellName(rl.Name), kvstore.Default)
}

func (e *Engine) applyAttachment(ctx context.Context, chain *journal.Chain, site, parentPath string, a attachmentElem) error {
	owner := a.Owner
	if owner == "" {
		owner = "content"
	}
	var deps []attachment.Dependency
	for _, d := range a.Dependencies {
		deps = append(deps, attachment.Dependency{Namespace: d.Namespace, Name: d.Name})
	}
	_, err := e.attachments.Ingest(ctx, chain, attachment.IngestRequest{
		Site:         site,
		ParentPath:   parentPath,
		Filename:     a.Name,
		Bytes:        []byte(a.Path),
		MimeType:     a.MimeType,
		Owner:        owner,
		Type:         a.Type,
		Dependencies: deps,
	})
	return err
}

// targetRow resolves which table/row a <param revision="..."> targets
// (spec §4.10): "global" is the content row itself, "branch" is the
// system branch's row (declarative imports always land on branch 0,
// spec §4.6/§4.3), and "revision" — the default when the attribute is
// omitted — is that branch's current revision for lang, lazily
// allocating a first revision the same way pageops.Create's
// WithRevision path does if one doesn't exist yet.
func (e *Engine) targetRow(ctx context.Context, page, scope, lang string) (*kvstore.Table, string, error) {
	switch scope {
	case "global":
		return e.content, page, nil
	case "branch":
		return e.branch, keying.BranchKey(page, keying.SystemBranch), nil
	case "", "revision":
		revKey, ok, err := e.rc.GetRevisionKey(ctx, page, keying.SystemBranch, lang, false)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return e.revision, revKey, nil
		}
		revision, err := e.rc.NewRevision(ctx, page, keying.SystemBranch, lang, false, nil, nil)
		if err != nil {
			return nil, "", err
		}
		if err := e.rc.SetCurrentRevision(ctx, page, keying.SystemBranch, revision, lang, false); err != nil {
			return nil, "", err
		}
		if err := e.rc.SetCurrentRevision(ctx, page, keying.SystemBranch, revision, lang, true); err != nil {
			return nil, "", err
		}
		return e.revision, keying.RevisionKey(page, keying.SystemBranch, revision, lang), nil
	default:
		return nil, "", fmt.Errorf("xmlimport: unknown param revision scope %q", scope)
	}
}
