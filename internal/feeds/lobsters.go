package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const lobstersDefaultBase = "https://lobste.rs"

// Lobsters fetches stories from the Lobsters hottest listing.
//
// The listing response already carries full story bodies, so the client
// caches each listing page and serves FetchItem from the cache. Only the
// configured number of pages is considered "available"; the first page
// alone is the historical behavior and the default.
type Lobsters struct {
	base    string
	pages   int
	client  *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]Item // native id -> item, from the last listing fetch
}

// NewLobsters creates a Lobsters source. An empty base uses lobste.rs;
// pages < 1 is treated as 1.
func NewLobsters(base string, pages int) *Lobsters {
	if base == "" {
		base = lobstersDefaultBase
	}
	if pages < 1 {
		pages = 1
	}
	return &Lobsters{
		base:    base,
		pages:   pages,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   make(map[string]Item),
	}
}

func (l *Lobsters) Name() string   { return "lobsters" }
func (l *Lobsters) Prefix() string { return "lobsters" }

// lobstersStory is one entry of the hottest listing.
type lobstersStory struct {
	ShortID          string   `json:"short_id"`
	ShortIDURL       string   `json:"short_id_url"`
	CreatedAt        string   `json:"created_at"`
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	DescriptionPlain string   `json:"description_plain"`
	Tags             []string `json:"tags"`
}

// ListIDs fetches the hottest pages and returns their story ids. The
// bodies are cached for FetchItem.
func (l *Lobsters) ListIDs(ctx context.Context) ([]string, error) {
	fresh := make(map[string]Item)
	var ids []string

	for page := 1; page <= l.pages; page++ {
		stories, err := l.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, s := range stories {
			item, err := l.convert(s)
			if err != nil {
				return nil, err
			}
			fresh[s.ShortID] = item
			ids = append(ids, s.ShortID)
		}
	}

	l.mu.Lock()
	l.cache = fresh
	l.mu.Unlock()

	return ids, nil
}

// FetchItem serves a story from the cached listing, refetching the
// listing on a miss.
func (l *Lobsters) FetchItem(ctx context.Context, nativeID string) (Item, error) {
	l.mu.Lock()
	item, ok := l.cache[nativeID]
	l.mu.Unlock()
	if ok {
		return item, nil
	}

	if _, err := l.ListIDs(ctx); err != nil {
		return Item{}, err
	}

	l.mu.Lock()
	item, ok = l.cache[nativeID]
	l.mu.Unlock()
	if !ok {
		return Item{}, fmt.Errorf("story %s no longer listed", nativeID)
	}
	return item, nil
}

func (l *Lobsters) convert(s lobstersStory) (Item, error) {
	created, err := time.Parse(time.RFC3339, s.CreatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("parse created_at for %s: %w", s.ShortID, err)
	}

	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	return Item{
		ID:          ItemID(l.Prefix(), s.ShortID),
		Title:       s.Title,
		URL:         s.URL,
		Description: s.DescriptionPlain,
		Tags:        tags,
		SourceURL:   s.ShortIDURL,
		CreatedAt:   created.UTC().Unix(),
	}, nil
}

func (l *Lobsters) fetchPage(ctx context.Context, page int) ([]lobstersStory, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := l.base + "/hottest.json"
	if page > 1 {
		url = fmt.Sprintf("%s/hottest/page/%d.json", l.base, page)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "sift/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var stories []lobstersStory
	if err := json.Unmarshal(body, &stories); err != nil {
		return nil, fmt.Errorf("parse hottest page %d: %w", page, err)
	}
	return stories, nil
}
