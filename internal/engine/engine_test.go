package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/engine"
	"github.com/snapwebsites/contentengine/internal/journal"
	"github.com/snapwebsites/contentengine/internal/pageops"
)

func TestOpenMemoryWiresEveryComponent(t *testing.T) {
	e := engine.OpenMemory()
	require.NotNil(t, e.Pages)
	require.NotNil(t, e.Attachments)
	require.NotNil(t, e.XMLImport)
	require.NotNil(t, e.Worker)
	require.NotNil(t, e.Fields)

	ctx := context.Background()
	res, err := e.Pages.Create(ctx, journal.NewChain(), pageops.CreateRequest{
		Site: "http://example.com", Path: "about", Owner: "content",
	})
	require.NoError(t, err)
	require.Equal(t, "http://example.com/about", res.Page)
}

func TestFieldsEnvFollowsDeclarativeLinkCells(t *testing.T) {
	e := engine.OpenMemory()
	ctx := context.Background()

	doc := `<snap-content>
  <content path="home" owner="content">
    <link name="featured" to="home/products">home/products</link>
  </content>
</snap-content>`
	_, err := e.XMLImport.Apply(ctx, journal.NewChain(), "http://example.com", []byte(doc))
	require.NoError(t, err)

	dest, ok, err := e.Fields.Links(ctx, "http://example.com/home", "featured")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "home/products", dest)
}
