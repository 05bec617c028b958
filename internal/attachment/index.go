package attachment

import (
	"context"

	"github.com/snapwebsites/contentengine/internal/jscss"
	"github.com/snapwebsites/contentengine/internal/kvstore"
)

// indexVersion implements the JS/CSS Indexing section of spec §4.7: a
// per-browser cell keyed "<name>\0<browser>\0<packed-version>" is
// written into the files table's `javascripts` or `css` row, mapping
// to the file's MD5. The packed version sorts byte-lexicographically
// in version order, so a reversed-prefix scan finds the newest release
// for a given (name, browser) pair first.
func (e *Engine) indexVersion(ctx context.Context, name string, v *versionedInfo, md5Hex string, isJS bool) error {
	packed, err := jscss.PackVersion(v.version)
	if err != nil {
		return err
	}
	row := cssIndexRow
	if isJS {
		row = jsIndexRow
	}

	browsers := v.browsers
	if len(browsers) == 0 {
		browsers = []string{""}
	}
	for _, browser := range browsers {
		cell := name + "\x00" + browser + "\x00" + string(packed)
		if err := e.files.PutCell(ctx, row, cell, []byte(md5Hex), kvstore.Default); err != nil {
			return err
		}
	}
	return nil
}
