package attachment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/attachment"
	"github.com/snapwebsites/contentengine/internal/journal"
)

func TestResolveFilenameStripsAttachmentScheme(t *testing.T) {
	rest, ok := attachment.ResolveFilename("attachment:///images/logo.png")
	require.True(t, ok)
	require.Equal(t, "images/logo.png", rest)

	rest, ok = attachment.ResolveFilename("/local/disk/path.png")
	require.False(t, ok)
	require.Equal(t, "/local/disk/path.png", rest)
}

func TestLoadByURIReturnsIngestedBytes(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.createPage(t, "http://example.com", "images")

	_, err := h.engine.Ingest(ctx, journal.NewChain(), attachment.IngestRequest{
		Site:       "http://example.com",
		ParentPath: "images",
		Filename:   "logo.png",
		Bytes:      []byte("fake-png-bytes"),
		MimeType:   "image/png",
		Owner:      "content",
	})
	require.NoError(t, err)

	uri, ok := attachment.ResolveFilename("attachment:/images/logo.png")
	require.True(t, ok)

	file, err := h.engine.LoadByURI(ctx, "http://example.com", uri)
	require.NoError(t, err)
	require.Equal(t, "logo.png", file.Filename)
	require.Equal(t, "image/png", file.MimeType)
	require.Equal(t, []byte("fake-png-bytes"), file.Data)
}

func TestLoadByURIMissingPage(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	_, err := h.engine.LoadByURI(ctx, "http://example.com", "images/missing.png")
	require.ErrorIs(t, err, attachment.ErrNotFound)
}
