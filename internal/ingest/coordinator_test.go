package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/fetch"
	"github.com/siftnews/sift/internal/oracle"
	"github.com/siftnews/sift/internal/store"
)

type stubSource struct {
	name   string
	prefix string
	items  map[string]feeds.Item
	order  []string
	broken bool
}

func newStubSource(name, prefix string, ids ...string) *stubSource {
	s := &stubSource{name: name, prefix: prefix, items: make(map[string]feeds.Item)}
	for i, id := range ids {
		s.order = append(s.order, id)
		s.items[id] = feeds.Item{
			ID:        feeds.ItemID(prefix, id),
			Title:     "title " + id,
			CreatedAt: int64(i),
		}
	}
	return s
}

func (s *stubSource) Name() string   { return s.name }
func (s *stubSource) Prefix() string { return s.prefix }

func (s *stubSource) ListIDs(_ context.Context) ([]string, error) {
	if s.broken {
		return nil, fmt.Errorf("%s unreachable", s.name)
	}
	return s.order, nil
}

func (s *stubSource) FetchItem(_ context.Context, nativeID string) (feeds.Item, error) {
	item, ok := s.items[nativeID]
	if !ok {
		return feeds.Item{}, fmt.Errorf("no such item %s", nativeID)
	}
	return item, nil
}

// scriptedProvider replays canned responses in order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Name() string    { return "scripted" }
func (p *scriptedProvider) Available() bool { return true }

func (p *scriptedProvider) Generate(_ context.Context, _ oracle.Request) (oracle.Response, error) {
	if p.calls >= len(p.responses) {
		return oracle.Response{}, fmt.Errorf("no scripted response for call %d", p.calls+1)
	}
	p.calls++
	return oracle.Response{Content: p.responses[p.calls-1]}, nil
}

func testCoordinator(t *testing.T, provider oracle.Provider, sources ...feeds.Source) (*Coordinator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.Options{HistoryLimit: 10})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c := New(
		st,
		fetch.New(4, 3),
		oracle.NewClassifier(provider, 3, 300),
		sources,
		time.Hour,
		time.Minute,
	)
	return c, st
}

func TestRunCycle(t *testing.T) {
	hn := newStubSource("hackernews", "hn", "1", "2")
	lob := newStubSource("lobsters", "lobsters", "a")
	provider := &scriptedProvider{responses: []string{
		`["hn-1","lobsters-a"] ["hn-2"]`,
	}}
	c, st := testCoordinator(t, provider, hn, lob)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	liked, err := st.Tab("liked", 10)
	if err != nil {
		t.Fatalf("Tab failed: %v", err)
	}
	if len(liked) != 2 {
		t.Fatalf("expected 2 liked items, got %v", liked)
	}
	if liked[0].ID != "lobsters-a" {
		t.Errorf("first liked = %s, want lobsters-a", liked[0].ID)
	}

	disliked, err := st.Tab("disliked", 10)
	if err != nil {
		t.Fatalf("Tab failed: %v", err)
	}
	if len(disliked) != 1 || disliked[0].ID != "hn-2" {
		t.Errorf("disliked = %v", disliked)
	}
}

func TestRunCycleDedup(t *testing.T) {
	hn := newStubSource("hackernews", "hn", "1")
	provider := &scriptedProvider{responses: []string{`["hn-1"] []`}}
	c, _ := testCoordinator(t, provider, hn)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	// Everything is already stored, so the oracle must not be called again.
	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 oracle call across cycles, got %d", provider.calls)
	}
}

func TestRunCycleSkipsBrokenSource(t *testing.T) {
	broken := newStubSource("hackernews", "hn", "1")
	broken.broken = true
	lob := newStubSource("lobsters", "lobsters", "a")
	provider := &scriptedProvider{responses: []string{`["lobsters-a"] []`}}
	c, st := testCoordinator(t, provider, broken, lob)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	liked, err := st.Tab("liked", 10)
	if err != nil {
		t.Fatalf("Tab failed: %v", err)
	}
	if len(liked) != 1 || liked[0].ID != "lobsters-a" {
		t.Errorf("liked = %v", liked)
	}
}

func TestRunCycleAbortKeepsCommitted(t *testing.T) {
	hn := newStubSource("hackernews", "hn", "1", "2")
	// Every round commits hn-1 variants but never resolves hn-2.
	provider := &scriptedProvider{responses: []string{
		`["hn-1"] []`,
		`[] []`,
		`[] []`,
	}}
	c, st := testCoordinator(t, provider, hn)

	if err := c.RunCycle(context.Background()); err == nil {
		t.Fatal("expected cycle to fail with an unresolved item")
	}

	// The committed row survives the abort.
	liked, err := st.Tab("liked", 10)
	if err != nil {
		t.Fatalf("Tab failed: %v", err)
	}
	if len(liked) != 1 || liked[0].ID != "hn-1" {
		t.Errorf("liked = %v", liked)
	}

	// The unresolved item is resubmitted by the next cycle via dedup.
	provider.responses = append(provider.responses, `[] ["hn-2"]`)
	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("follow-up cycle failed: %v", err)
	}
	disliked, err := st.Tab("disliked", 10)
	if err != nil {
		t.Fatalf("Tab failed: %v", err)
	}
	if len(disliked) != 1 || disliked[0].ID != "hn-2" {
		t.Errorf("disliked = %v", disliked)
	}
}

func TestStartAndCancel(t *testing.T) {
	hn := newStubSource("hackernews", "hn", "1")
	provider := &scriptedProvider{responses: []string{`["hn-1"] []`}}
	c, st := testCoordinator(t, provider, hn)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.After(5 * time.Second)
	for {
		liked, err := st.Tab("liked", 10)
		if err != nil {
			t.Fatalf("Tab failed: %v", err)
		}
		if len(liked) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial cycle never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	c.Wait()
}
