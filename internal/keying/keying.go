// Package keying composes and parses the row keys defined in spec §3.2.
// Every function here is pure: no I/O, no locking. A failed parse
// returns ErrInvalidKey; callers such as pageops use it to skip or
// fall back on keys that are not ordinary revision keys.
package keying

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidKey is returned when a key cannot be decomposed into its
// page/branch/revision/locale parts.
var ErrInvalidKey = errors.New("keying: invalid key")

// SystemBranch is branch 0, reserved for declarative (XML) imports.
const SystemBranch uint32 = 0

// FirstUserBranch is branch 1, the first branch callers allocate.
const FirstUserBranch uint32 = 1

// ContentKey composes the content-table row key: "<site>/<path>".
// site and path are assumed already normalized; ContentKey does not
// canonicalize (that is Path Context's job).
func ContentKey(site, path string) string {
	return strings.TrimRight(site, "/") + "/" + strings.TrimLeft(path, "/")
}

// BranchKey composes the branch-table row key: "<page>#<branch>".
func BranchKey(page string, branch uint32) string {
	return page + "#" + strconv.FormatUint(uint64(branch), 10)
}

// RevisionKey composes the revision-table row key for an ordinary
// (integer-numbered) revision. When locale is empty, the "<locale>/"
// segment is omitted entirely, per spec §3.2.
func RevisionKey(page string, branch, revision uint32, locale string) string {
	branchRev := strconv.FormatUint(uint64(branch), 10) + "." + strconv.FormatUint(uint64(revision), 10)
	if locale == "" {
		return page + "#" + branchRev
	}
	return page + "#" + locale + "/" + branchRev
}

// VersionedRevisionKey composes the extended revision-table row key
// used for versioned JS/CSS attachments: "<page>#<locale>/<version>",
// where version is a caller-validated "N(.N)*" string whose first
// component is the branch number.
func VersionedRevisionKey(page string, locale, version string) string {
	return page + "#" + locale + "/" + version
}

// ParseRevisionKey decomposes an ordinary revision key produced by
// RevisionKey back into (page, branch, revision, locale). It returns
// ErrInvalidKey if the separators are missing or the numeric
// components do not parse as a bare "<branch>.<revision>" pair; use
// ParseVersionedRevisionKey for extended JS/CSS keys.
func ParseRevisionKey(key string) (page string, branch, revision uint32, locale string, err error) {
	hashIdx := strings.IndexByte(key, '#')
	if hashIdx < 0 {
		return "", 0, 0, "", ErrInvalidKey
	}
	page = key[:hashIdx]
	rest := key[hashIdx+1:]

	branchRev := rest
	if slashIdx := strings.IndexByte(rest, '/'); slashIdx >= 0 {
		locale = rest[:slashIdx]
		branchRev = rest[slashIdx+1:]
	}

	dotIdx := strings.LastIndexByte(branchRev, '.')
	if dotIdx < 0 {
		return "", 0, 0, "", ErrInvalidKey
	}
	branchStr, revStr := branchRev[:dotIdx], branchRev[dotIdx+1:]
	if strings.ContainsRune(branchStr, '.') {
		// More than one dot: this is an extended version key, not an
		// ordinary one.
		return "", 0, 0, "", ErrInvalidKey
	}

	b, err1 := strconv.ParseUint(branchStr, 10, 32)
	r, err2 := strconv.ParseUint(revStr, 10, 32)
	if err1 != nil || err2 != nil {
		return "", 0, 0, "", ErrInvalidKey
	}
	return page, uint32(b), uint32(r), locale, nil
}

// ParseVersionedRevisionKey decomposes an extended revision key back
// into (page, locale, version). It returns ErrInvalidKey when the '#'
// separator is missing.
func ParseVersionedRevisionKey(key string) (page, locale, version string, err error) {
	hashIdx := strings.IndexByte(key, '#')
	if hashIdx < 0 {
		return "", "", "", ErrInvalidKey
	}
	page = key[:hashIdx]
	rest := key[hashIdx+1:]
	slashIdx := strings.IndexByte(rest, '/')
	if slashIdx < 0 {
		return "", "", "", ErrInvalidKey
	}
	return page, rest[:slashIdx], rest[slashIdx+1:], nil
}

// DraftKey composes the revision-table row key for a user's unpublished
// draft of page at the given branch: "<page>#user/<userID>/<branch>".
// Drafts are keyed per-user rather than per-locale since a draft is a
// working copy that has not yet gone through locale-aware publication.
func DraftKey(page string, userID int64, branch uint32) string {
	return page + "#user/" + strconv.FormatInt(userID, 10) + "/" + strconv.FormatUint(uint64(branch), 10)
}

// SuggestionKey composes the revision-table row key for a numbered
// suggested edit of page at the given branch:
// "<page>#suggestion/<branch>.<suggestion>".
func SuggestionKey(page string, branch uint32, suggestion int64) string {
	return page + "#suggestion/" + strconv.FormatUint(uint64(branch), 10) + "." + strconv.FormatInt(suggestion, 10)
}

// VersionBranch extracts the branch number from a validated "N(.N)*"
// version string: the first dotted component.
func VersionBranch(version string) (uint32, error) {
	first := version
	if idx := strings.IndexByte(version, '.'); idx >= 0 {
		first = version[:idx]
	}
	b, err := strconv.ParseUint(first, 10, 32)
	if err != nil {
		return 0, ErrInvalidKey
	}
	return uint32(b), nil
}
