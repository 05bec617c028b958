package keying_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/keying"
)

func TestContentKey(t *testing.T) {
	require.Equal(t, "http://x/a/b", keying.ContentKey("http://x", "/a/b"))
	require.Equal(t, "http://x/a/b", keying.ContentKey("http://x/", "a/b"))
}

func TestBranchKey(t *testing.T) {
	require.Equal(t, "http://x/a#1", keying.BranchKey("http://x/a", 1))
}

func TestRevisionKeyRoundTrip(t *testing.T) {
	cases := []struct {
		page     string
		branch   uint32
		revision uint32
		locale   string
	}{
		{"http://x/a", 1, 2, ""},
		{"http://x/a", 1, 2, "en"},
		{"http://x/a", 1, 2, "en_US"},
		{"http://x/a", 0, 0, ""},
	}
	for _, c := range cases {
		key := keying.RevisionKey(c.page, c.branch, c.revision, c.locale)
		page, branch, revision, locale, err := keying.ParseRevisionKey(key)
		require.NoError(t, err, key)
		require.Equal(t, c.page, page)
		require.Equal(t, c.branch, branch)
		require.Equal(t, c.revision, revision)
		require.Equal(t, c.locale, locale)
	}
}

func TestRevisionKeyNoLocaleOmitsSlash(t *testing.T) {
	require.Equal(t, "http://x/a#1.2", keying.RevisionKey("http://x/a", 1, 2, ""))
	require.Equal(t, "http://x/a#en/1.2", keying.RevisionKey("http://x/a", 1, 2, "en"))
}

func TestParseRevisionKeyInvalid(t *testing.T) {
	_, _, _, _, err := keying.ParseRevisionKey("no-hash-here")
	require.ErrorIs(t, err, keying.ErrInvalidKey)

	_, _, _, _, err = keying.ParseRevisionKey("http://x/a#not-numeric")
	require.ErrorIs(t, err, keying.ErrInvalidKey)

	_, _, _, _, err = keying.ParseRevisionKey("http://x/a#en/1.2.3")
	require.ErrorIs(t, err, keying.ErrInvalidKey)
}

func TestVersionedRevisionKeyRoundTrip(t *testing.T) {
	key := keying.VersionedRevisionKey("http://x/js/editor", "xx", "1.2.3")
	require.Equal(t, "http://x/js/editor#xx/1.2.3", key)

	page, locale, version, err := keying.ParseVersionedRevisionKey(key)
	require.NoError(t, err)
	require.Equal(t, "http://x/js/editor", page)
	require.Equal(t, "xx", locale)
	require.Equal(t, "1.2.3", version)

	branch, err := keying.VersionBranch(version)
	require.NoError(t, err)
	require.EqualValues(t, 1, branch)
}

func TestVersionBranchInvalid(t *testing.T) {
	_, err := keying.VersionBranch("not-a-number")
	require.ErrorIs(t, err, keying.ErrInvalidKey)
}

func TestDraftKey(t *testing.T) {
	key := keying.DraftKey("http://x/a", 42, 3)
	require.Equal(t, "http://x/a#user/42/3", key)
}

func TestSuggestionKey(t *testing.T) {
	key := keying.SuggestionKey("http://x/a", 3, 7)
	require.Equal(t, "http://x/a#suggestion/3.7", key)
}
