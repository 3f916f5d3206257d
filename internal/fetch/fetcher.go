// Package fetch pulls new items out of a remote source: list the
// available ids, drop the ones the store already holds, then fetch the
// remaining bodies with bounded concurrency.
package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/logging"
)

// Store is the dedup boundary: one batched existence query.
type Store interface {
	FilterNew(ids []string) ([]string, error)
}

// Fetcher retrieves new item bodies from feed sources.
type Fetcher struct {
	workers  int // max in-flight item fetches
	attempts int // per-id ceiling before the id is dropped
}

// New creates a Fetcher. workers <= 0 defaults to 10, attempts <= 0 to 3.
func New(workers, attempts int) *Fetcher {
	if workers <= 0 {
		workers = 10
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &Fetcher{workers: workers, attempts: attempts}
}

// FetchNew returns a mapping from canonical id to Item for every item the
// source offers that the store does not yet hold.
//
// Bodies are fetched in waves: each wave runs every outstanding id
// through a bounded worker group, and ids that fail are requeued into the
// next wave until they succeed or hit the attempt ceiling. A permanently
// failing id is dropped with a warning and never blocks the rest.
// Completion order across workers is unordered.
func (f *Fetcher) FetchNew(ctx context.Context, src feeds.Source, store Store) (map[string]feeds.Item, error) {
	native, err := src.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	canonical := make([]string, len(native))
	nativeByID := make(map[string]string, len(native))
	for i, n := range native {
		id := feeds.ItemID(src.Prefix(), n)
		canonical[i] = id
		nativeByID[id] = n
	}

	outstanding, err := store.FilterNew(canonical)
	if err != nil {
		return nil, err
	}

	logging.Debug("Fetch wave starting",
		"source", src.Name(),
		"available", len(canonical),
		"new", len(outstanding))

	results := make(map[string]feeds.Item, len(outstanding))
	attempts := make(map[string]int, len(outstanding))
	var mu sync.Mutex

	for len(outstanding) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var retry []string

		var g errgroup.Group
		g.SetLimit(f.workers)
		for _, id := range outstanding {
			id := id // bind per iteration before handing to the group
			g.Go(func() error {
				item, err := src.FetchItem(ctx, nativeByID[id])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if ctx.Err() != nil {
						// Cancellation is not the item's fault; surface
						// it after the wave instead of charging attempts.
						return nil
					}
					attempts[id]++
					if attempts[id] >= f.attempts {
						logging.Warn("Dropping item after repeated fetch failures",
							"source", src.Name(), "id", id, "attempts", attempts[id], "error", err)
					} else {
						retry = append(retry, id)
					}
					return nil // per-item failures never fail the wave
				}
				results[id] = item
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outstanding = retry
	}

	return results, nil
}
