// Package ingest runs the periodic ingestion cycle: fetch, dedup,
// classify, retain.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/fetch"
	"github.com/siftnews/sift/internal/logging"
	"github.com/siftnews/sift/internal/oracle"
	"github.com/siftnews/sift/internal/store"
)

// Coordinator ties fetchers, the dedup filter, the oracle client and the
// retention store into one run-to-completion cycle on a fixed interval.
// Cycles run on a single goroutine and never overlap; the Coordinator is
// not safe to Start twice. Context cancellation is the only stop
// mechanism.
type Coordinator struct {
	store      *store.Store
	fetcher    *fetch.Fetcher
	classifier *oracle.Classifier
	sources    []feeds.Source // IMMUTABLE: set at construction, never modified
	interval   time.Duration
	timeout    time.Duration // wall-clock bound per cycle
	wg         sync.WaitGroup
}

// New creates a Coordinator. interval <= 0 defaults to an hour, timeout
// <= 0 to 15 minutes.
func New(st *store.Store, f *fetch.Fetcher, c *oracle.Classifier, sources []feeds.Source, interval, timeout time.Duration) *Coordinator {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	sourcesCopy := make([]feeds.Source, len(sources))
	copy(sourcesCopy, sources)

	return &Coordinator{
		store:      st,
		fetcher:    f,
		classifier: c,
		sources:    sourcesCopy,
		interval:   interval,
		timeout:    timeout,
	}
}

// Start begins periodic ingestion. Call with a cancellable context.
// Runs one cycle immediately, then on every tick.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.runLogged(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runLogged(ctx)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runLogged(ctx context.Context) {
	started := time.Now()
	if err := c.RunCycle(ctx); err != nil {
		logging.Error("Ingestion cycle failed", "error", err, "elapsed", time.Since(started))
		return
	}
	logging.Info("Ingestion cycle complete", "elapsed", time.Since(started))
}

// RunCycle executes one ingestion cycle. A source failure skips that
// source and the cycle continues; a classification failure aborts the
// cycle. Committed rows survive an abort, and whatever was left
// unresolved is naturally resubmitted next cycle via dedup.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pending := make(map[string]feeds.Item)
	for _, src := range c.sources {
		fetched, err := c.fetcher.FetchNew(cctx, src, c.store)
		if err != nil {
			logging.Error("Source fetch failed", "source", src.Name(), "error", err)
			continue
		}
		for id, item := range fetched {
			pending[id] = item
		}
	}

	if len(pending) == 0 {
		logging.Debug("Nothing new to classify")
		return nil
	}

	if err := c.classifier.Classify(cctx, pending, c.store); err != nil {
		return err
	}

	for _, category := range []feeds.Category{feeds.Liked, feeds.Disliked} {
		if err := c.store.EvictOverflow(category); err != nil {
			return err
		}
	}
	return nil
}
