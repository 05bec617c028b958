package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snapwebsites/contentengine/internal/config"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, "contentengine.yaml", `
sites:
  - http://example.com
storage:
  path: /var/lib/contentengine/data.db
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.com"}, cfg.Sites)
	require.Equal(t, "bolt", cfg.Storage.Driver)
	require.Equal(t, "/var/lib/contentengine/data.db", cfg.Storage.Path)
	require.Equal(t, int64(300*1_000_000), cfg.JournalAgeMicros())
	require.Equal(t, 4, cfg.Worker.SiteConcurrency)
}

func TestLoadHonorsExplicitWorkerSettings(t *testing.T) {
	path := writeTemp(t, "contentengine.yaml", `
sites: [http://example.com]
worker:
  interval_seconds: 60
  journal_age_seconds: 120
  attachment_batch: 50
  site_concurrency: 2
  max_retry_elapsed_seconds: 30
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	run := cfg.WorkerRunConfig()
	require.Equal(t, int64(120*1_000_000), run.JournalAgeMicros)
	require.Equal(t, 50, run.AttachmentBatch)
	require.Equal(t, 2, run.SiteConcurrency)
}

func TestLoadErrorsOnMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestReadWatchdogConf(t *testing.T) {
	path := writeTemp(t, "snapwatchdog.conf", `data_path = "/var/lib/snapwebsites"
user = "snapwebsites"
`)

	conf, err := config.ReadWatchdogConf(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/snapwebsites", conf["data_path"])
	require.Equal(t, "snapwebsites", conf["user"])
}
