package pageops

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/status"
)

// Move implements move_page, spec §4.6: clones src onto dst with src
// ending MOVED and dst taking on src's prior status, refusing when src
// has content::prevent_delete set.
func (e *Engine) Move(ctx context.Context, src, dst string) error {
	prevented, err := preventsDelete(ctx, e.content, src)
	if err != nil {
		return err
	}
	if prevented {
		return ErrPreventDelete
	}

	priorStatus, kind, err := e.st.Read(ctx, src)
	if err != nil {
		return err
	}
	if kind != status.NoError {
		return errors.New("pageops: move source has no resolvable status")
	}

	return e.Clone(ctx, CloneRequest{
		Source:      src,
		Destination: dst,
		SourceDone:  status.Moved,
		DestDone:    priorStatus,
	})
}

// trashcanPath locates the well-known per-site trashcan page, spec
// §4.6 trash_page.
const trashcanPath = "trashcan"

// Trash implements trash_page: it clones src under trashcan/<uuid>,
// creating the trashcan page on demand, leaving the clone HIDDEN and
// the source DELETED. It refuses when src has content::prevent_delete
// set.
func (e *Engine) Trash(ctx context.Context, chain *journal.Chain, site, src string) (destination string, err error) {
	prevented, err := preventsDelete(ctx, e.content, src)
	if err != nil {
		return "", err
	}
	if prevented {
		return "", ErrPreventDelete
	}

	release, err := e.locker.Lock(ctx, "site-trashcan:"+site)
	if err != nil {
		return "", err
	}
	trashcan := keying.ContentKey(site, trashcanPath)
	exists, err := e.content.HasRow(ctx, trashcan)
	if err != nil {
		release()
		return "", err
	}
	if !exists {
		_, err = e.Create(ctx, chain, CreateRequest{
			Site:        site,
			Path:        trashcanPath,
			Owner:       "content",
			Type:        "system-page",
			Locale:      "xx",
			Declarative: true,
		})
	}
	release()
	if err != nil {
		return "", err
	}

	destination = keying.ContentKey(site, trashcanPath+"/"+uuid.NewString())
	if err := e.Clone(ctx, CloneRequest{
		Source:      src,
		Destination: destination,
		SourceDone:  status.Deleted,
		DestDone:    status.Hidden,
	}); err != nil {
		return "", err
	}
	return destination, nil
}
