package attachment

import (
	"context"
	"errors"

	"github.com/snapwebsites/contentengine/internal/cellcodec"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// ProcessBatch implements the background file processing pass, spec
// §4.7: it walks the files table's `new` index, and for every MD5 with
// at least one unchecked (value `1`) reference under site, runs the
// security scan and process_attachment fan-out once, then marks that
// reference checked (value `2`). The `new` entry itself is dropped only
// once every site-scoped reference has been checked; references for
// other sites are left for their own worker pass.
func (e *Engine) ProcessBatch(ctx context.Context, site string, limit int) (int, error) {
	entries, err := e.files.Cells(ctx, newIndexRow)
	if err != nil {
		return 0, err
	}

	processed := 0
	for md5Hex := range entries {
		if processed >= limit {
			break
		}

		refs, err := e.files.CellsWithPrefix(ctx, md5Hex, cellFileReferencePrefix+site)
		if err != nil {
			return processed, err
		}

		var firstNew string
		newCount := 0
		for name, value := range refs {
			if cellcodec.IsTrue(value) {
				newCount++
				if firstNew == "" {
					firstNew = name
				}
			}
		}

		if firstNew != "" {
			if err := e.processOne(ctx, md5Hex); err != nil {
				return processed, err
			}
			if err := e.files.PutCell(ctx, md5Hex, firstNew, cellcodec.EncodeInt8(2), kvstore.Default); err != nil {
				return processed, err
			}
			processed++
			newCount--
		}

		if newCount == 0 {
			if err := e.files.DeleteCell(ctx, newIndexRow, md5Hex, kvstore.Default); err != nil {
				return processed, err
			}
		}
	}
	return processed, nil
}

func (e *Engine) processOne(ctx context.Context, md5Hex string) error {
	data, err := e.files.GetCell(ctx, md5Hex, cellFileData, kvstore.Default)
	if err != nil {
		return err
	}
	mimeType, err := e.files.GetCell(ctx, md5Hex, cellFileMimeType, kvstore.Default)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return err
	}

	verdict, err := e.events.CheckSecurity(ctx, ThoroughCheck, data, string(mimeType))
	if err != nil {
		return err
	}

	secure, reason := SecureYes, ""
	if verdict.Insecure {
		secure, reason = SecureNo, verdict.Reason
	}
	if err := e.files.PutCell(ctx, md5Hex, cellFileSecure, cellcodec.EncodeInt8(int8(secure)), kvstore.Default); err != nil {
		return err
	}
	if err := e.files.PutCell(ctx, md5Hex, cellFileSecureLastCheck, cellcodec.EncodeInt64(e.now()), kvstore.Default); err != nil {
		return err
	}
	if err := e.files.PutCell(ctx, md5Hex, cellFileSecurityReason, []byte(reason), kvstore.Default); err != nil {
		return err
	}

	if secure != SecureYes {
		return nil
	}

	result, err := e.events.EmitProcess(ctx, md5Hex, data, string(mimeType))
	if err != nil {
		return err
	}
	return e.applyProcessResult(ctx, md5Hex, result)
}

func (e *Engine) applyProcessResult(ctx context.Context, md5Hex string, result ProcessResult) error {
	if result.GzipSize > 0 {
		if err := e.files.PutCell(ctx, md5Hex, cellFileGzipSize, cellcodec.EncodeInt64(result.GzipSize), kvstore.Default); err != nil {
			return err
		}
	}
	if result.MinifiedSize > 0 {
		if err := e.files.PutCell(ctx, md5Hex, cellFileMinifiedSize, cellcodec.EncodeInt64(result.MinifiedSize), kvstore.Default); err != nil {
			return err
		}
	}
	if result.MinifiedGzipSize > 0 {
		if err := e.files.PutCell(ctx, md5Hex, cellFileMinifiedGzipSize, cellcodec.EncodeInt64(result.MinifiedGzipSize), kvstore.Default); err != nil {
			return err
		}
	}
	return nil
}
