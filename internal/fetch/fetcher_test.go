package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/siftnews/sift/internal/feeds"
)

// fakeSource serves scripted items and fails the ids in failing on
// every fetch.
type fakeSource struct {
	ids     []string
	failing map[string]bool

	mu      sync.Mutex
	fetches map[string]int
}

func (s *fakeSource) Name() string   { return "fake" }
func (s *fakeSource) Prefix() string { return "fake" }

func (s *fakeSource) ListIDs(_ context.Context) ([]string, error) {
	return s.ids, nil
}

func (s *fakeSource) FetchItem(_ context.Context, nativeID string) (feeds.Item, error) {
	s.mu.Lock()
	if s.fetches == nil {
		s.fetches = make(map[string]int)
	}
	s.fetches[nativeID]++
	s.mu.Unlock()

	if s.failing[nativeID] {
		return feeds.Item{}, fmt.Errorf("fetch %s: boom", nativeID)
	}
	return feeds.Item{
		ID:    feeds.ItemID("fake", nativeID),
		Title: "title " + nativeID,
	}, nil
}

func (s *fakeSource) fetchCount(nativeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[nativeID]
}

type fakeFilter struct {
	existing map[string]bool
	got      []string
}

func (f *fakeFilter) FilterNew(ids []string) ([]string, error) {
	f.got = ids
	var fresh []string
	for _, id := range ids {
		if !f.existing[id] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

func TestFetchNew(t *testing.T) {
	src := &fakeSource{ids: []string{"1", "2", "3"}}
	store := &fakeFilter{existing: map[string]bool{"fake-2": true}}

	f := New(4, 3)
	items, err := f.FetchNew(context.Background(), src, store)
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, id := range []string{"fake-1", "fake-3"} {
		if _, ok := items[id]; !ok {
			t.Errorf("missing item %s", id)
		}
	}
	if _, ok := items["fake-2"]; ok {
		t.Error("known item was refetched")
	}
	if src.fetchCount("2") != 0 {
		t.Error("known item hit the source")
	}
	// Dedup ran as one batched call with canonical ids.
	if len(store.got) != 3 || store.got[0] != "fake-1" {
		t.Errorf("FilterNew received %v", store.got)
	}
}

func TestFetchNewDropsPermanentFailure(t *testing.T) {
	src := &fakeSource{
		ids:     []string{"1", "2", "3", "4", "5"},
		failing: map[string]bool{"3": true},
	}
	store := &fakeFilter{}

	f := New(2, 3)
	items, err := f.FetchNew(context.Background(), src, store)
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if _, ok := items["fake-3"]; ok {
		t.Error("failing item should have been dropped")
	}
	if got := src.fetchCount("3"); got != 3 {
		t.Errorf("expected 3 attempts on failing id, got %d", got)
	}
	// Successful ids are fetched exactly once.
	if got := src.fetchCount("1"); got != 1 {
		t.Errorf("expected 1 fetch of succeeding id, got %d", got)
	}
}

func TestFetchNewEmpty(t *testing.T) {
	src := &fakeSource{}
	f := New(4, 3)
	items, err := f.FetchNew(context.Background(), src, &fakeFilter{})
	if err != nil {
		t.Fatalf("FetchNew failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestFetchNewContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &cancelingSource{cancel: cancel}
	src.ids = []string{"1"}

	f := New(2, 3)
	_, err := f.FetchNew(ctx, src, &fakeFilter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Cancellation must not be charged as a per-id attempt: one call,
	// no retries, no drop.
	if got := src.fetchCount("1"); got != 1 {
		t.Errorf("expected 1 fetch before cancellation, got %d", got)
	}
}

func TestFetchNewListError(t *testing.T) {
	f := New(4, 3)
	_, err := f.FetchNew(context.Background(), &failingListSource{}, &fakeFilter{})
	if err == nil {
		t.Fatal("expected listing error to propagate")
	}
}

type failingListSource struct{ fakeSource }

func (s *failingListSource) ListIDs(_ context.Context) ([]string, error) {
	return nil, fmt.Errorf("listing down")
}

// cancelingSource cancels the run from inside its first item fetch.
type cancelingSource struct {
	fakeSource
	cancel context.CancelFunc
}

func (s *cancelingSource) FetchItem(ctx context.Context, nativeID string) (feeds.Item, error) {
	s.mu.Lock()
	if s.fetches == nil {
		s.fetches = make(map[string]int)
	}
	s.fetches[nativeID]++
	s.mu.Unlock()

	s.cancel()
	return feeds.Item{}, ctx.Err()
}
