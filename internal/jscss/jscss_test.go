package jscss_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/jscss"
)

func TestParseHeaderBlockComment(t *testing.T) {
	src := []byte(`/*
 * Name: my-widget
 * Version: 1.2.3
 * Browsers: ie, chrome, firefox
 */
(function() { })();
`)
	h, err := jscss.ParseHeader(src)
	require.NoError(t, err)
	require.Equal(t, "my-widget", h.Name)
	require.Equal(t, "1.2.3", h.Version)
	require.Equal(t, []string{"ie", "chrome", "firefox"}, h.Browsers)
}

func TestParseHeaderLineComment(t *testing.T) {
	src := []byte("// Name: my-style\n// Version: 2.0\nbody { color: red; }\n")
	h, err := jscss.ParseHeader(src)
	require.NoError(t, err)
	require.Equal(t, "my-style", h.Name)
	require.Equal(t, "2.0", h.Version)
	require.Empty(t, h.Browsers)
}

func TestParseHeaderMissingVersion(t *testing.T) {
	src := []byte("/*\n * Name: no-version\n */\n")
	_, err := jscss.ParseHeader(src)
	require.ErrorIs(t, err, jscss.ErrNoVersion)
}

func TestParseHeaderNoCommentAtAll(t *testing.T) {
	src := []byte("var x = 1;\n")
	_, err := jscss.ParseHeader(src)
	require.ErrorIs(t, err, jscss.ErrNoVersion)
}

func TestIsJSExtension(t *testing.T) {
	require.True(t, jscss.IsJSExtension("foo.js"))
	require.True(t, jscss.IsJSExtension("foo.min.js"))
	require.True(t, jscss.IsJSExtension("foo.org.js"))
	require.False(t, jscss.IsJSExtension("foo.css"))
}

func TestIsCSSExtension(t *testing.T) {
	require.True(t, jscss.IsCSSExtension("foo.css"))
	require.True(t, jscss.IsCSSExtension("foo.min.css"))
	require.False(t, jscss.IsCSSExtension("foo.js"))
}

func TestParseSuffixWithVersionAndBrowser(t *testing.T) {
	base, version, browser, ok := jscss.ParseSuffix("jquery_1.11.2_ie.js")
	require.True(t, ok)
	require.Equal(t, "jquery.js", base)
	require.Equal(t, "1.11.2", version)
	require.Equal(t, "ie", browser)
}

func TestParseSuffixWithoutBrowser(t *testing.T) {
	base, version, browser, ok := jscss.ParseSuffix("jquery_1.11.2.js")
	require.True(t, ok)
	require.Equal(t, "jquery.js", base)
	require.Equal(t, "1.11.2", version)
	require.Empty(t, browser)
}

func TestParseSuffixWithoutVersionSuffix(t *testing.T) {
	_, _, _, ok := jscss.ParseSuffix("jquery.js")
	require.False(t, ok)
}

func TestCheckSuffixMatchesHeader(t *testing.T) {
	require.NoError(t, jscss.CheckSuffixMatchesHeader("", "1.0"))
	require.NoError(t, jscss.CheckSuffixMatchesHeader("1.0", "1.0"))
	require.ErrorIs(t, jscss.CheckSuffixMatchesHeader("1.0", "2.0"), jscss.ErrVersionMismatch)
}

func TestPackVersionOrdering(t *testing.T) {
	low, err := jscss.PackVersion("1.2.3")
	require.NoError(t, err)
	high, err := jscss.PackVersion("1.10.0")
	require.NoError(t, err)
	require.Less(t, string(low), string(high))

	short, err := jscss.PackVersion("2")
	require.NoError(t, err)
	require.Len(t, short, 16)
}

func TestPackVersionRejectsTooManyComponents(t *testing.T) {
	_, err := jscss.PackVersion("1.2.3.4.5")
	require.Error(t, err)
}

func TestPackVersionRejectsNonNumeric(t *testing.T) {
	_, err := jscss.PackVersion("1.x.0")
	require.Error(t, err)
}
