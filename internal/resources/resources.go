// Package resources holds the engine's compiled-in XML bootstrap
// documents, spec §4.10/§6.3 "resource-embedded XML document" and
// `content::dirresources`/`content::extractresource`. The original
// system loaded these out of a Qt resource bundle compiled into the
// binary; an embed.FS is the idiomatic Go equivalent, grounded on
// beads' own cmd/bd/template.go builtinTemplates embed.
package resources

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed data/*.xml
var builtin embed.FS

// List returns every compiled-in resource name, sorted, spec §6.3
// `content::dirresources`.
func List() ([]string, error) {
	entries, err := fs.ReadDir(builtin, "data")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the raw bytes of a compiled-in resource by name, spec
// §6.3 `content::extractresource`.
func Read(name string) ([]byte, error) {
	data, err := builtin.ReadFile("data/" + name)
	if err != nil {
		return nil, fmt.Errorf("resources: unknown resource %q: %w", name, err)
	}
	return data, nil
}
