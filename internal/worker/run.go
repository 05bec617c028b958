package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/snapwebsites/contentengine/internal/clog"
)

// RunConfig holds the knobs spec §6.3 associates with
// `content::snapbackend` and its cadence when run as a daemon.
type RunConfig struct {
	Sites            []string
	JournalAgeMicros int64
	AttachmentBatch  int
	Interval         time.Duration
	SiteConcurrency  int
	MaxRetryElapsed  time.Duration
}

func (c RunConfig) withDefaults() RunConfig {
	if c.AttachmentBatch <= 0 {
		c.AttachmentBatch = 100
	}
	if c.SiteConcurrency <= 0 {
		c.SiteConcurrency = 4
	}
	if c.MaxRetryElapsed <= 0 {
		c.MaxRetryElapsed = time.Minute
	}
	return c
}

// RunOnce runs one snapbackend pass over every configured site,
// bounding concurrency with an errgroup the way beads' own
// internal/compact.Compactor bounds its worker pool, and retrying each
// site's pass under transient KV-store errors via an exponential
// backoff (spec §7: "transient errors propagate to the caller
// unchanged" — the background worker is its own caller here, so it
// absorbs the retry instead of surfacing it).
func (e *Engine) RunOnce(ctx context.Context, cfg RunConfig) []CycleResult {
	cfg = cfg.withDefaults()
	results := make([]CycleResult, len(cfg.Sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SiteConcurrency)

	for i, site := range cfg.Sites {
		i, site := i, site
		g.Go(func() error {
			results[i] = e.runSiteWithRetry(gctx, site, cfg)
			return nil
		})
	}
	_ = g.Wait() // runSiteWithRetry never returns an error to the group

	return results
}

func (e *Engine) runSiteWithRetry(ctx context.Context, site string, cfg RunConfig) CycleResult {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = cfg.MaxRetryElapsed
	policy := backoff.WithContext(expBackoff, ctx)

	var result CycleResult
	err := backoff.Retry(func() error {
		r, err := e.RunCycle(ctx, site, cfg.JournalAgeMicros, cfg.AttachmentBatch)
		result = r
		if err != nil {
			clog.Warnf("worker: snapbackend pass failed for %s, retrying: %v", site, err)
		}
		return err
	}, policy)
	if err != nil {
		clog.Errorf("worker: snapbackend gave up for %s: %v", site, err)
	}
	return result
}

// Run ticks RunOnce at cfg.Interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) {
	cfg = cfg.withDefaults()
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunOnce(ctx, cfg)
		}
	}
}
