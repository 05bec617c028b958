// Package attachment implements the Attachment Engine (spec §4.7):
// content-addressed binary storage keyed by MD5, with per-page
// attachment pages whose revisions point back at a file row, dedup via
// reference counting, and JavaScript/CSS version extraction.
package attachment

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/clog"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/jscss"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/pageops"
	"github.com/snapwebsites/contentengine/internal/revctl"
)

// File-row cell names, spec §6.2.
const (
	cellFileData             = "content::files::data"
	cellFileSize             = "content::files::size"
	cellFileFilename         = "content::files::filename"
	cellFileMimeType         = "content::files::mime_type"
	cellFileOriginalMimeType = "content::files::original_mime_type"
	cellFileCreated          = "content::files::created"
	cellFileUpdated          = "content::files::updated"
	cellFileSecure           = "content::files::secure"
	cellFileSecureLastCheck  = "content::files::secure_last_check"
	cellFileSecurityReason   = "content::files::security_reason"
	cellFileGzipSize         = "content::files::gzip_size"
	cellFileMinifiedSize     = "content::files::minified_size"
	cellFileMinifiedGzipSize = "content::files::minified_gzip_size"
	cellFileReferencePrefix  = "content::files::reference::"
	cellFileDependencyPrefix = "content::files::dependency::"

	cellAttachment          = "content::attachment"
	cellAttachmentFilename  = "content::attachment::filename"
	cellAttachmentMimeType  = "content::attachment::mime_type"
	cellAttachmentRefPrefix = "content::attachment::reference::"

	newIndexRow = "new"
	jsIndexRow  = "javascripts"
	cssIndexRow = "css"
)

// SecureState is the file row's tri-state security verdict.
type SecureState int8

const (
	SecureUndefined SecureState = 0
	SecureYes       SecureState = 1
	SecureNo        SecureState = 2
)

var (
	// ErrInsecure is returned by Ingest when a security listener vetoes
	// the upload.
	ErrInsecure = errors.New("attachment: rejected by security check")
	// ErrParentMissing is returned when the parent page does not exist.
	ErrParentMissing = errors.New("attachment: parent page does not exist")
	// ErrParentFinal is returned when the parent page is marked final.
	ErrParentFinal = errors.New("attachment: parent page is final")
)

// Dependency names a JS/CSS library dependency recorded on the file row.
type Dependency struct {
	Namespace string
	Name      string
}

// IngestRequest describes one attachment upload.
type IngestRequest struct {
	Site             string
	ParentPath       string
	FieldName        string // parent-row field set to point at the attachment page; defaults to "content::attachment::" plus the stem of the (version-stripped) filename
	Filename         string
	Bytes            []byte
	MimeType         string
	OriginalMimeType string
	Owner            string
	Type             string // attachment page type; defaults to "attachment"
	Locale           string
	RevisionLimit    uint32
	Dependencies     []Dependency
}

// IngestResult reports what Ingest actually did.
type IngestResult struct {
	Page        string
	MD5         string // hex-encoded
	RevisionKey string
	Version     string // non-empty for JS/CSS attachments
	Branch      uint32
	Revision    uint32 // 0 for versioned (JS/CSS) attachments
	FileCreated bool
}

// Engine wires the tables and collaborators attachment ingestion needs.
type Engine struct {
	content  *kvstore.Table
	branch   *kvstore.Table
	revision *kvstore.Table
	files    *kvstore.Table

	rc     *revctl.Control
	pages  *pageops.Engine
	events *Events
	now    func() int64
}

// New binds an Engine to its tables and collaborators. pages is the
// Page Ops engine that already owns content/branch/revision; Engine
// keeps its own handles to the same tables so attachment-specific cell
// writes don't need to round-trip through pageops.
func New(content, branch, revision, files *kvstore.Table, rc *revctl.Control, pages *pageops.Engine, now func() int64) *Engine {
	return &Engine{
		content:  content,
		branch:   branch,
		revision: revision,
		files:    files,
		rc:       rc,
		pages:    pages,
		events:   NewEvents(),
		now:      now,
	}
}

// Events exposes the plugin event bus for registration.
func (e *Engine) Events() *Events { return e.events }

func isFinal(ctx context.Context, content *kvstore.Table, page string) (bool, error) {
	raw, err := content.GetCell(ctx, page, pageops.CellFinal, kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return cellcodec.IsTrue(raw), nil
}

// versionedInfo is non-nil when an upload lands under js/ or css/ and
// carries a parsed header.
type versionedInfo struct {
	filename string // bare "<name>.<ext>", suffix stripped
	version  string
	browsers []string
}

// parseVersioned implements spec §4.7 steps 3-4: JS/CSS uploads must
// carry a recognized extension and a header Version field, and any
// filename-embedded version suffix must agree with the header.
func (e *Engine) parseVersioned(parentPath, filename string, data []byte) (*versionedInfo, error) {
	isJS := strings.HasPrefix(parentPath, "js/")
	isCSS := strings.HasPrefix(parentPath, "css/")
	if !isJS && !isCSS {
		return nil, nil
	}
	if isJS && !jscss.IsJSExtension(filename) {
		return nil, fmt.Errorf("attachment: %q is not a recognized JavaScript extension", filename)
	}
	if isCSS && !jscss.IsCSSExtension(filename) {
		return nil, fmt.Errorf("attachment: %q is not a recognized CSS extension", filename)
	}

	header, err := jscss.ParseHeader(data)
	if err != nil {
		return nil, err
	}

	base := filename
	if suffixBase, suffixVersion, _, ok := jscss.ParseSuffix(filename); ok {
		if err := jscss.CheckSuffixMatchesHeader(suffixVersion, header.Version); err != nil {
			return nil, err
		}
		base = suffixBase
	}

	return &versionedInfo{filename: base, version: header.Version, browsers: header.Browsers}, nil
}

// ensureFileRow writes the file row the first time a given MD5 is seen
// and queues it on the `new` index for background reprocessing, spec
// §4.7 step 6.
func (e *Engine) ensureFileRow(ctx context.Context, md5Hex string, req IngestRequest) (created bool, err error) {
	_, err = e.files.GetCell(ctx, md5Hex, cellFileCreated, kvstore.Default)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return false, err
	}

	now := cellcodec.EncodeInt64(e.now())
	writes := map[string][]byte{
		cellFileData:             req.Bytes,
		cellFileSize:             cellcodec.EncodeInt64(int64(len(req.Bytes))),
		cellFileFilename:         []byte(req.Filename),
		cellFileMimeType:         []byte(req.MimeType),
		cellFileOriginalMimeType: []byte(req.OriginalMimeType),
		cellFileCreated:          now,
		cellFileUpdated:          now,
		cellFileSecure:           cellcodec.EncodeInt8(int8(SecureUndefined)),
		cellFileSecureLastCheck:  cellcodec.EncodeInt64(0),
		cellFileSecurityReason:   []byte{},
	}
	for name, value := range writes {
		if err := e.files.PutCell(ctx, md5Hex, name, value, kvstore.Default); err != nil {
			return false, err
		}
	}
	for _, dep := range req.Dependencies {
		cell := cellFileDependencyPrefix + dep.Namespace + "::" + dep.Name
		if err := e.files.PutCell(ctx, md5Hex, cell, cellcodec.True, kvstore.Default); err != nil {
			return false, err
		}
	}
	if err := e.files.PutCell(ctx, newIndexRow, md5Hex, cellcodec.True, kvstore.Default); err != nil {
		return false, err
	}
	return true, nil
}

// rewriteCanonicalReference drops every reference cell under namePrefix
// other than canonical and ensures canonical itself is present, spec
// §4.7 step 7's "prior references with divergent keys are rewritten".
func (e *Engine) rewriteCanonicalReference(ctx context.Context, md5Hex, namePrefix, canonical string) error {
	cells, err := e.files.CellsWithPrefix(ctx, md5Hex, cellFileReferencePrefix+namePrefix)
	if err != nil {
		return err
	}
	canonicalCell := cellFileReferencePrefix + canonical
	for name := range cells {
		if name != canonicalCell {
			if err := e.files.DeleteCell(ctx, md5Hex, name, kvstore.Default); err != nil {
				return err
			}
		}
	}
	return e.files.PutCell(ctx, md5Hex, canonicalCell, cellcodec.True, kvstore.Default)
}

// ensureAttachmentPage creates the attachment page if it doesn't exist
// yet; an existing page (replacement upload) is left as-is.
func (e *Engine) ensureAttachmentPage(ctx context.Context, chain *journal.Chain, req IngestRequest, pageKey, attachmentPath string) error {
	exists, err := e.content.HasRow(ctx, pageKey)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	pageType := req.Type
	if pageType == "" {
		pageType = "attachment"
	}
	_, err = e.pages.Create(ctx, chain, pageops.CreateRequest{
		Site:   req.Site,
		Path:   attachmentPath,
		Owner:  req.Owner,
		Type:   pageType,
		Locale: req.Locale,
	})
	if err != nil && !errors.Is(err, pageops.ErrAlreadyExists) {
		return err
	}
	return nil
}

// resolution is what resolveRevision computed: where to write the
// attachment's revision cells.
type resolution struct {
	branch   uint32
	revision uint32
	revKey   string
	version  string
}

func (e *Engine) resolveRevision(ctx context.Context, req IngestRequest, pageKey, md5Hex string, versioned *versionedInfo) (resolution, error) {
	if versioned != nil {
		return e.resolveVersionedRevision(ctx, req, pageKey, versioned)
	}
	return e.resolvePlainRevision(ctx, req, pageKey, md5Hex)
}

// resolveVersionedRevision implements spec §4.7 step 8's JS/CSS branch:
// the branch number is the version's first component; the revision is
// addressed by the full version string rather than a sequential
// integer, and the branch row is forked from the page's prior current
// branch via copy_branch if this version number is new.
func (e *Engine) resolveVersionedRevision(ctx context.Context, req IngestRequest, pageKey string, versioned *versionedInfo) (resolution, error) {
	branch, err := keying.VersionBranch(versioned.version)
	if err != nil {
		return resolution{}, err
	}
	branchKey := keying.BranchKey(pageKey, branch)

	_, err = e.branch.GetCell(ctx, branchKey, pageops.CellCreated, kvstore.Default)
	switch {
	case err == nil:
		// Branch already exists; nothing to fork.
	case errors.Is(err, kvstore.ErrKeyNotFound):
		prior, ok, cerr := e.rc.CurrentBranch(ctx, pageKey, false)
		if cerr != nil {
			return resolution{}, cerr
		}
		if ok && prior < branch {
			if cerr := e.rc.CopyBranch(ctx, pageKey, prior, branch); cerr != nil {
				return resolution{}, cerr
			}
		} else {
			now := cellcodec.EncodeInt64(e.now())
			if cerr := e.branch.PutCell(ctx, branchKey, pageops.CellCreated, now, kvstore.Default); cerr != nil {
				return resolution{}, cerr
			}
		}
	default:
		return resolution{}, err
	}

	if err := e.rc.SetBranch(ctx, pageKey, branch, false); err != nil {
		return resolution{}, err
	}

	return resolution{
		branch:  branch,
		revKey:  keying.VersionedRevisionKey(pageKey, req.Locale, versioned.version),
		version: versioned.version,
	}, nil
}

// resolvePlainRevision implements spec §4.7 step 8's non-JS/CSS branch:
// identical bytes re-attached to the same branch reuse the existing
// revision; otherwise a fresh revision is allocated.
func (e *Engine) resolvePlainRevision(ctx context.Context, req IngestRequest, pageKey, md5Hex string) (resolution, error) {
	branch, ok, err := e.rc.CurrentBranch(ctx, pageKey, false)
	if err != nil {
		return resolution{}, err
	}
	if !ok {
		branch, err = e.rc.NewBranch(ctx, pageKey, req.Locale)
		if err != nil {
			return resolution{}, err
		}
		if err := e.rc.SetBranch(ctx, pageKey, branch, false); err != nil {
			return resolution{}, err
		}
	}

	branchKey := keying.BranchKey(pageKey, branch)
	raw, err := e.branch.GetCell(ctx, branchKey, cellAttachmentRefPrefix+md5Hex, kvstore.Default)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return resolution{}, err
	}
	if err == nil && cellcodec.IsTrue(raw) {
		revision, ok, err := e.rc.CurrentRevision(ctx, pageKey, branch, req.Locale, false)
		if err != nil {
			return resolution{}, err
		}
		if ok {
			return resolution{branch: branch, revision: revision, revKey: keying.RevisionKey(pageKey, branch, revision, req.Locale)}, nil
		}
	}

	revision, err := e.rc.NewRevision(ctx, pageKey, branch, req.Locale, false, nil, nil)
	if err != nil {
		return resolution{}, err
	}
	if err := e.rc.SetCurrentRevision(ctx, pageKey, branch, revision, req.Locale, false); err != nil {
		return resolution{}, err
	}
	return resolution{branch: branch, revision: revision, revKey: keying.RevisionKey(pageKey, branch, revision, req.Locale)}, nil
}

// Ingest implements the attachment upload pipeline, spec §4.7.
func (e *Engine) Ingest(ctx context.Context, chain *journal.Chain, req IngestRequest) (IngestResult, error) {
	var result IngestResult

	verdict, err := e.events.CheckSecurity(ctx, FastCheck, req.Bytes, req.MimeType)
	if err != nil {
		return result, err
	}
	if verdict.Insecure {
		clog.Errorf("attachment: rejected %s/%s: %s", req.ParentPath, req.Filename, verdict.Reason)
		return result, fmt.Errorf("%w: %s", ErrInsecure, verdict.Reason)
	}

	parentKey := keying.ContentKey(req.Site, req.ParentPath)
	if has, err := e.content.HasRow(ctx, parentKey); err != nil {
		return result, err
	} else if !has {
		return result, ErrParentMissing
	}
	if final, err := isFinal(ctx, e.content, parentKey); err != nil {
		return result, err
	} else if final {
		return result, ErrParentFinal
	}

	filename := req.Filename
	versioned, err := e.parseVersioned(req.ParentPath, filename, req.Bytes)
	if err != nil {
		return result, err
	}
	if versioned != nil {
		filename = versioned.filename
	}

	sum := md5.Sum(req.Bytes)
	md5Hex := hex.EncodeToString(sum[:])

	fileCreated, err := e.ensureFileRow(ctx, md5Hex, req)
	if err != nil {
		return result, err
	}
	result.FileCreated = fileCreated

	attachmentPath := strings.TrimRight(req.ParentPath, "/") + "/" + filename
	pageKey := keying.ContentKey(req.Site, attachmentPath)

	if versioned != nil {
		ext := path.Ext(filename)
		stem := strings.TrimSuffix(filename, ext)
		namePrefix := strings.TrimRight(parentKey, "/") + "/" + stem + "_"
		canonical := namePrefix + versioned.version + ".min" + ext
		if err := e.rewriteCanonicalReference(ctx, md5Hex, namePrefix, canonical); err != nil {
			return result, err
		}
	} else {
		if err := e.files.PutCell(ctx, md5Hex, cellFileReferencePrefix+pageKey, cellcodec.True, kvstore.Default); err != nil {
			return result, err
		}
	}

	if err := e.ensureAttachmentPage(ctx, chain, req, pageKey, attachmentPath); err != nil {
		return result, err
	}

	res, err := e.resolveRevision(ctx, req, pageKey, md5Hex, versioned)
	if err != nil {
		return result, err
	}
	result.Branch, result.Revision, result.RevisionKey, result.Version = res.branch, res.revision, res.revKey, res.version

	now := cellcodec.EncodeInt64(e.now())
	if err := e.revision.PutCell(ctx, res.revKey, cellAttachment, sum[:], kvstore.Default); err != nil {
		return result, err
	}
	if err := e.revision.PutCell(ctx, res.revKey, cellAttachmentFilename, []byte(filename), kvstore.Default); err != nil {
		return result, err
	}
	if err := e.revision.PutCell(ctx, res.revKey, cellAttachmentMimeType, []byte(req.MimeType), kvstore.Default); err != nil {
		return result, err
	}
	if err := e.revision.PutCell(ctx, res.revKey, pageops.CellCreated, now, kvstore.Default); err != nil {
		return result, err
	}

	fieldName := req.FieldName
	if fieldName == "" {
		ext := path.Ext(filename)
		fieldName = "content::attachment::" + strings.TrimSuffix(filename, ext)
	}
	if err := e.content.PutCell(ctx, parentKey, fieldName, []byte(pageKey), kvstore.Default); err != nil {
		return result, err
	}

	if err := e.content.PutCell(ctx, pageKey, pageops.CellFinal, cellcodec.True, kvstore.Default); err != nil {
		return result, err
	}

	branchKey := keying.BranchKey(pageKey, res.branch)
	if err := e.branch.PutCell(ctx, branchKey, cellAttachmentRefPrefix+md5Hex, cellcodec.True, kvstore.Default); err != nil {
		return result, err
	}

	if versioned != nil {
		isJS := strings.HasPrefix(req.ParentPath, "js/")
		indexName := strings.TrimRight(parentKey, "/") + "/" + strings.TrimSuffix(filename, path.Ext(filename))
		if err := e.indexVersion(ctx, indexName, versioned, md5Hex, isJS); err != nil {
			return result, err
		}
	} else if req.RevisionLimit > 0 {
		if err := e.Prune(ctx, pageKey, res.branch, req.Locale, res.revision, req.RevisionLimit); err != nil {
			clog.Warnf("attachment: prune failed for %s: %v", pageKey, err)
		}
	}

	result.Page = pageKey
	result.MD5 = md5Hex
	return result, nil
}
