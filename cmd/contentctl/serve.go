package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapwebsites/contentengine/internal/clog"
	"github.com/snapwebsites/contentengine/internal/config"
	"github.com/snapwebsites/contentengine/internal/worker"
)

// minServeDiskMB is the free-space threshold below which serve logs a
// warning before starting the worker loop.
const minServeDiskMB = 100

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the background worker as a long-lived daemon, looping snapbackend over every configured site",
	GroupID: groupDaemon,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fatalf("load config: %v", err)
		}

		lockPath := filepath.Join(filepath.Dir(configPath), daemonLockFileName)
		lock, err := acquireDaemonLock(lockPath)
		if err != nil {
			fatalf("%v", err)
		}
		defer func() { _ = lock.release() }()

		if cfg.Storage.Driver != "mem" {
			if availableMB, ok := availableDiskMB(filepath.Dir(cfg.Storage.Path)); ok && availableMB < minServeDiskMB {
				clog.Warnf("contentctl serve: only %dMB free near %s, below the %dMB warning threshold", availableMB, cfg.Storage.Path, minServeDiskMB)
			}
		}

		e, err := openEngine()
		if err != nil {
			fatalf("open engine: %v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		var runCfg atomic.Pointer[worker.RunConfig]
		initial := cfg.WorkerRunConfig()
		runCfg.Store(&initial)

		stop := make(chan struct{})
		defer close(stop)
		if err := config.Watch(configPath, stop, func(reloaded config.Config) {
			next := reloaded.WorkerRunConfig()
			clog.Infof("contentctl serve: reloaded %s, interval=%s", configPath, next.Interval)
			runCfg.Store(&next)
		}); err != nil {
			clog.Warnf("contentctl serve: config hot-reload disabled: %v", err)
		}

		clog.Infof("contentctl serve: %d site(s), interval=%s", len(cfg.Sites), cfg.Interval())
		serveLoop(ctx, e.Worker, &runCfg)
		clog.Infof("contentctl serve: shut down")
	},
}

// serveLoop is worker.Engine.Run unrolled so each tick picks up the
// latest RunConfig a config.Watch reload may have swapped in, instead
// of running forever under the cfg captured at startup. The ticker
// itself is sized once at startup; a reloaded Interval takes effect on
// the next restart, not the running ticker.
func serveLoop(ctx context.Context, w *worker.Engine, runCfg *atomic.Pointer[worker.RunConfig]) {
	cfg := *runCfg.Load()
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, *runCfg.Load())
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
