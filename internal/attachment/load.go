package attachment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/kvstore"
	"github.com/snapwebsites/contentengine/internal/status"
)

// ErrNotFound is returned by LoadByURI when the URI does not resolve to
// an attachment with an owner, i.e. no page, no primary owner cell, or
// no current revision.
var ErrNotFound = errors.New("attachment: not found")

// attachmentScheme is the pseudo-protocol prefix a caller-supplied
// filename may carry to request an attachment be resolved from the
// content store rather than read off local disk.
const attachmentScheme = "attachment:"

// LoadedFile is the attachment data and metadata LoadByURI resolves.
type LoadedFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// ResolveFilename strips the attachment: pseudo-protocol prefix from
// filename, returning the remainder and whether the prefix was present.
// Any number of slashes following the colon are treated as the
// protocol separator, matching the original loader's tolerance for
// "attachment:/path" and "attachment:///path" alike.
func ResolveFilename(filename string) (rest string, isAttachment bool) {
	if !strings.HasPrefix(filename, attachmentScheme) {
		return filename, false
	}
	rest = strings.TrimPrefix(filename, attachmentScheme)
	rest = strings.TrimLeft(rest, "/")
	return rest, true
}

// LoadByURI resolves an "attachment:" URI (already stripped of its
// scheme by ResolveFilename) against the current branch/revision of the
// page it names, returning the attachment bytes and filename. It does
// not check permissions; callers that expose this to untrusted input
// must authorize the page themselves first.
func (e *Engine) LoadByURI(ctx context.Context, site, uri string) (LoadedFile, error) {
	pageKey := keying.ContentKey(site, uri)

	has, err := e.content.HasRow(ctx, pageKey)
	if err != nil {
		return LoadedFile{}, err
	}
	if !has {
		return LoadedFile{}, ErrNotFound
	}
	if _, err := e.content.GetCell(ctx, pageKey, status.CellPrimaryOwner, kvstore.Default); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return LoadedFile{}, ErrNotFound
		}
		return LoadedFile{}, err
	}

	branch, ok, err := e.rc.CurrentBranch(ctx, pageKey, false)
	if err != nil {
		return LoadedFile{}, err
	}
	if !ok {
		return LoadedFile{}, ErrNotFound
	}
	revision, ok, err := e.rc.CurrentRevision(ctx, pageKey, branch, "", false)
	if err != nil {
		return LoadedFile{}, err
	}
	if !ok {
		return LoadedFile{}, ErrNotFound
	}
	revKey := keying.RevisionKey(pageKey, branch, revision, "")

	md5Raw, err := e.revision.GetCell(ctx, revKey, cellAttachment, kvstore.Default)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return LoadedFile{}, ErrNotFound
		}
		return LoadedFile{}, err
	}
	md5Hex := hex.EncodeToString(md5Raw)

	data, err := e.files.GetCell(ctx, md5Hex, cellFileData, kvstore.Default)
	if err != nil {
		return LoadedFile{}, fmt.Errorf("attachment: loading file data for %s: %w", md5Hex, err)
	}

	filename, err := e.revision.GetCell(ctx, revKey, cellAttachmentFilename, kvstore.Default)
	if err != nil {
		filename = []byte(path.Base(uri))
	}
	mimeType, _ := e.revision.GetCell(ctx, revKey, cellAttachmentMimeType, kvstore.Default)

	return LoadedFile{
		Filename: string(filename),
		MimeType: string(mimeType),
		Data:     data,
	}, nil
}
