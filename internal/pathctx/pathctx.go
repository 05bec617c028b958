// Package pathctx implements Path Context (spec §4.4): resolving a
// user-visible path into the (branch, revision, locale) triple used to
// index the branch/revision tables, with lazy, cached resolution.
package pathctx

import (
	"context"
	"fmt"

	"github.com/snapwebsites/contentengine/internal/keying"
	"github.com/snapwebsites/contentengine/internal/revctl"
)

// RequestContext is the caller-supplied collaborator Path Context asks
// for user intent when resolving the main page's branch/revision/
// locale. The HTTP request layer that would normally implement this is
// out of scope (spec §1); callers supply whatever implementation fits
// their transport.
type RequestContext interface {
	// UserBranch returns the branch the caller explicitly asked for, if
	// any (e.g. a "?a=1" query parameter in the original system).
	UserBranch(ctx context.Context) (uint32, bool)
	// UserRevision returns the caller-requested revision, if any.
	UserRevision(ctx context.Context) (uint32, bool)
	// Locales returns the caller's locale preference order, most
	// preferred first, excluding the empty (default) locale.
	Locales(ctx context.Context) []string
}

// Context is one resolved path: its canonical key and the branch,
// revision and locale it resolves to, computed lazily and cached.
// Mutating the path (SetRealPath) clears every cache except the
// parameter bag, per spec §4.4's invariant.
type Context struct {
	site string
	rc   *revctl.Control
	req  RequestContext

	rawPath       string
	canonicalPath string
	key           string
	realKey       string
	mainPage      bool
	params        map[string]string

	forcedBranch   *uint32
	forcedRevision *uint32
	forcedLocale   *string

	branchResolved bool
	branch         uint32

	revisionResolved bool
	revision         uint32
	revisionLocale   string
	hasRevision      bool

	draftKey      string
	suggestionKey string
}

// New starts a Context for path within site. canonicalPath should
// already be normalized by the caller; Path Context does not
// canonicalize paths itself.
func New(rc *revctl.Control, req RequestContext, site, rawPath, canonicalPath string, mainPage bool) *Context {
	c := &Context{
		site:          site,
		rc:            rc,
		req:           req,
		rawPath:       rawPath,
		canonicalPath: canonicalPath,
		mainPage:      mainPage,
		params:        make(map[string]string),
	}
	c.key = keying.ContentKey(site, canonicalPath)
	c.realKey = c.key
	return c
}

// SetRealPath updates the context's canonical key (e.g. after resolving
// a page alias) and clears every resolution cache, keeping the
// parameter bag intact.
func (c *Context) SetRealPath(canonicalPath string) {
	c.canonicalPath = canonicalPath
	c.realKey = keying.ContentKey(c.site, canonicalPath)
	c.branchResolved = false
	c.revisionResolved = false
	c.hasRevision = false
	c.draftKey = ""
	c.suggestionKey = ""
}

// Key returns the site-prefixed content key.
func (c *Context) Key() string { return c.key }

// RealKey returns the alias-resolved content key.
func (c *Context) RealKey() string { return c.realKey }

// Param reads a free-form context parameter.
func (c *Context) Param(name string) (string, bool) {
	v, ok := c.params[name]
	return v, ok
}

// SetParam writes a free-form context parameter.
func (c *Context) SetParam(name, value string) {
	c.params[name] = value
}

// ForceBranch pins the branch this context resolves to, bypassing the
// normal resolution order.
func (c *Context) ForceBranch(branch uint32) {
	c.forcedBranch = &branch
	c.branchResolved = false
}

// ForceRevision pins the revision.
func (c *Context) ForceRevision(revision uint32) {
	c.forcedRevision = &revision
	c.revisionResolved = false
}

// ForceLocale pins the locale considered during revision resolution.
func (c *Context) ForceLocale(locale string) {
	c.forcedLocale = &locale
	c.revisionResolved = false
}

// Branch resolves and caches the branch, spec §4.4 resolution order 1-5.
// working selects between current_branch and current_working_branch.
// createNewIfRequired allocates a fresh branch via revctl.NewBranch on
// a complete miss; otherwise a miss leaves the branch Undefined (ok
// false).
func (c *Context) Branch(ctx context.Context, working, createNewIfRequired bool) (branch uint32, ok bool, err error) {
	if c.branchResolved {
		return c.branch, true, nil
	}

	if c.forcedBranch != nil {
		c.branch, c.branchResolved = *c.forcedBranch, true
		return c.branch, true, nil
	}

	if c.mainPage && c.req != nil {
		if b, found := c.req.UserBranch(ctx); found {
			c.branch, c.branchResolved = b, true
			return c.branch, true, nil
		}
	}

	b, found, err := c.rc.CurrentBranch(ctx, c.realKey, working)
	if err != nil {
		return 0, false, err
	}
	if found {
		c.branch, c.branchResolved = b, true
		return c.branch, true, nil
	}

	if !createNewIfRequired {
		return 0, false, nil
	}

	locale := ""
	if c.forcedLocale != nil {
		locale = *c.forcedLocale
	}
	b, err = c.rc.NewBranch(ctx, c.realKey, locale)
	if err != nil {
		return 0, false, err
	}
	c.branch, c.branchResolved = b, true
	return c.branch, true, nil
}

// candidateLocales returns the locale search order: forced locale
// first if set, else the request's preference list, else the empty
// (default) locale, per spec §4.4 resolution order 3.
func (c *Context) candidateLocales(ctx context.Context) []string {
	if c.forcedLocale != nil {
		return []string{*c.forcedLocale}
	}
	var locales []string
	if c.req != nil {
		locales = c.req.Locales(ctx)
	}
	return append(locales, "")
}

// Revision resolves and caches (revision, locale), spec §4.4 resolution
// order. branch must already have been resolved by the caller.
func (c *Context) Revision(ctx context.Context, branch uint32, working bool) (revision uint32, locale string, ok bool, err error) {
	if c.revisionResolved {
		return c.revision, c.revisionLocale, c.hasRevision, nil
	}

	if c.forcedRevision != nil {
		locale := ""
		if c.forcedLocale != nil {
			locale = *c.forcedLocale
		}
		c.revision, c.revisionLocale, c.hasRevision, c.revisionResolved = *c.forcedRevision, locale, true, true
		return c.revision, c.revisionLocale, true, nil
	}

	if c.mainPage && c.req != nil {
		if r, found := c.req.UserRevision(ctx); found {
			locale := ""
			if c.forcedLocale != nil {
				locale = *c.forcedLocale
			}
			c.revision, c.revisionLocale, c.hasRevision, c.revisionResolved = r, locale, true, true
			return c.revision, c.revisionLocale, true, nil
		}
	}

	for _, candidate := range c.candidateLocales(ctx) {
		r, found, err := c.rc.CurrentRevision(ctx, c.realKey, branch, candidate, working)
		if err != nil {
			return 0, "", false, err
		}
		if found {
			c.revision, c.revisionLocale, c.hasRevision, c.revisionResolved = r, candidate, true, true
			return r, candidate, true, nil
		}
	}

	c.revisionResolved = true
	c.hasRevision = false
	return 0, "", false, nil
}

// HasRevision reports whether the last Revision call resolved one.
func (c *Context) HasRevision() bool { return c.hasRevision }

// BranchKey composes the cached branch row key once Branch has
// resolved a branch.
func (c *Context) BranchKey(branch uint32) string {
	return keying.BranchKey(c.realKey, branch)
}

// RevisionKey composes the cached revision row key once Revision has
// resolved a (branch, revision, locale) triple.
func (c *Context) RevisionKey(branch, revision uint32, locale string) string {
	return keying.RevisionKey(c.realKey, branch, revision, locale)
}

// DraftKey resolves and caches the revision-table key for userID's
// unpublished draft of this page. It resolves the branch first without
// allocating one, and fails when the page has no branch: a draft cannot
// exist without a branch.
func (c *Context) DraftKey(ctx context.Context, userID int64) (string, error) {
	if c.draftKey != "" {
		return c.draftKey, nil
	}
	branch, ok, err := c.Branch(ctx, false, false)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("pathctx: draft key requested for %q with no branch defined", c.realKey)
	}
	c.draftKey = keying.DraftKey(c.realKey, userID, branch)
	return c.draftKey, nil
}

// SuggestionKey resolves and caches the revision-table key for the
// numbered suggested edit of this page. It resolves the branch first
// without allocating one, and fails when the page has no branch.
func (c *Context) SuggestionKey(ctx context.Context, suggestion int64) (string, error) {
	if c.suggestionKey != "" {
		return c.suggestionKey, nil
	}
	branch, ok, err := c.Branch(ctx, false, false)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("pathctx: suggestion key requested for %q with no branch defined", c.realKey)
	}
	c.suggestionKey = keying.SuggestionKey(c.realKey, branch, suggestion)
	return c.suggestionKey, nil
}
