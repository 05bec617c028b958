// Package jscss parses the small header convention JavaScript and CSS
// attachments carry (spec §4.7): a leading C-style comment block with
// Version/Name/Browsers fields, plus the `_<version>[_<browser>]`
// filename suffix convention used to cross-check it.
package jscss

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoVersion is returned by ParseHeader when the comment block has no
// Version field; a JS/CSS attachment without one cannot be indexed.
var ErrNoVersion = errors.New("jscss: header has no Version field")

// ErrVersionMismatch is returned when a filename's `_<version>` suffix
// disagrees with the header's Version field.
var ErrVersionMismatch = errors.New("jscss: filename version does not match header")

// Header is the parsed leading-comment metadata of a JS/CSS file.
type Header struct {
	Name     string
	Version  string
	Browsers []string
}

// ParseHeader scans the leading C-style comment block (either a
// `/* ... */` block or a run of leading `//` lines) of content for
// "Name:", "Version:" and "Browsers:" fields. It returns
// ErrNoVersion if no Version field is found.
func ParseHeader(content []byte) (Header, error) {
	var h Header
	scanner := bufio.NewScanner(bytes.NewReader(content))
	inBlock := false
	started := false

	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" && !started {
			continue
		}

		line := raw
		switch {
		case strings.HasPrefix(line, "/*"):
			inBlock, started = true, true
			line = strings.TrimPrefix(line, "/*")
		case inBlock:
			// stay in block, fall through to the "*/" check below
		case strings.HasPrefix(line, "//"):
			started = true
			line = strings.TrimPrefix(line, "//")
		default:
			// First non-comment line: the header block, if any, is over.
			return h, finishHeader(h)
		}

		if idx := strings.Index(line, "*/"); idx >= 0 {
			line = line[:idx]
			inBlock = false
		}
		// Block-comment lines conventionally start with " * "; drop that
		// decoration before looking for a "Key:" field.
		applyHeaderField(&h, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*")))
	}
	return h, finishHeader(h)
}

func applyHeaderField(h *Header, line string) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return
	}
	key := strings.ToLower(strings.TrimSpace(line[:colon]))
	value := strings.TrimSpace(line[colon+1:])
	switch key {
	case "name":
		h.Name = value
	case "version":
		h.Version = value
	case "browsers":
		for _, b := range strings.Split(value, ",") {
			if b = strings.TrimSpace(b); b != "" {
				h.Browsers = append(h.Browsers, b)
			}
		}
	}
}

func finishHeader(h Header) error {
	if h.Version == "" {
		return ErrNoVersion
	}
	return nil
}

// IsJSExtension reports whether name ends in a recognized JavaScript
// extension.
func IsJSExtension(name string) bool {
	for _, ext := range []string{".org.js", ".min.js", ".js"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// IsCSSExtension reports whether name ends in a recognized CSS
// extension.
func IsCSSExtension(name string) bool {
	return strings.HasSuffix(name, ".min.css") || strings.HasSuffix(name, ".css")
}

// ParseSuffix decomposes a "<base>_<version>[_<browser>].<ext>" style
// filename. ok is false when the filename carries no `_<version>`
// suffix at all, which is not an error — plenty of uploads omit it and
// rely solely on the header.
func ParseSuffix(filename string) (base, version, browser string, ok bool) {
	dot := strings.LastIndex(filename, ".")
	ext := ""
	stem := filename
	if dot >= 0 {
		ext = filename[dot:]
		stem = filename[:dot]
	}

	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return filename, "", "", false
	}
	// The version component is the first part after base that looks
	// like a dotted number; everything before it is the base name.
	for i := 1; i < len(parts); i++ {
		if looksLikeVersion(parts[i]) {
			base = strings.Join(parts[:i], "_") + ext
			version = parts[i]
			if i+1 < len(parts) {
				browser = strings.Join(parts[i+1:], "_")
			}
			return base, version, browser, true
		}
	}
	return filename, "", "", false
}

func looksLikeVersion(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// CheckSuffixMatchesHeader validates a filename-derived version against
// the header, when the filename carried a version suffix at all.
func CheckSuffixMatchesHeader(suffixVersion, headerVersion string) error {
	if suffixVersion == "" {
		return nil
	}
	if suffixVersion != headerVersion {
		return fmt.Errorf("%w: filename has %q, header has %q", ErrVersionMismatch, suffixVersion, headerVersion)
	}
	return nil
}

// PackVersion encodes a dotted version string ("1.2.3") as 4
// big-endian uint32 components (zero-padded / zero-extended), for use
// as a byte-lexicographically sortable cell-name suffix.
func PackVersion(version string) ([]byte, error) {
	parts := strings.Split(version, ".")
	if len(parts) > 4 {
		return nil, fmt.Errorf("jscss: version %q has more than 4 components", version)
	}
	buf := make([]byte, 16)
	for i := 0; i < 4; i++ {
		var v uint64
		if i < len(parts) && parts[i] != "" {
			n, err := strconv.ParseUint(parts[i], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("jscss: invalid version component %q: %w", parts[i], err)
			}
			v = n
		}
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf, nil
}
