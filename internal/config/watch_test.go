package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/config"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeTemp(t, "contentengine.yaml", `
sites: [http://example.com]
worker:
  interval_seconds: 60
`)

	reloaded := make(chan config.Config, 1)
	stop := make(chan struct{})
	defer close(stop)

	require.NoError(t, config.Watch(path, stop, func(cfg config.Config) {
		reloaded <- cfg
	}))

	require.NoError(t, os.WriteFile(path, []byte(`
sites: [http://example.com, http://second.example.com]
worker:
  interval_seconds: 120
`), 0o600))

	select {
	case cfg := <-reloaded:
		require.Equal(t, []string{"http://example.com", "http://second.example.com"}, cfg.Sites)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
