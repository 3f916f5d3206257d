package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const hnDefaultBase = "https://hacker-news.firebaseio.com"

// HackerNews fetches stories from the Hacker News Firebase API.
type HackerNews struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHackerNews creates a Hacker News source. An empty base uses the
// public Firebase endpoint.
func NewHackerNews(base string) *HackerNews {
	if base == "" {
		base = hnDefaultBase
	}
	return &HackerNews{
		base:    base,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
	}
}

func (h *HackerNews) Name() string   { return "hackernews" }
func (h *HackerNews) Prefix() string { return "hn" }

// ListIDs returns the ids of the current top stories.
func (h *HackerNews) ListIDs(ctx context.Context) ([]string, error) {
	body, err := h.get(ctx, h.base+"/v0/topstories.json")
	if err != nil {
		return nil, err
	}

	var native []int64
	if err := json.Unmarshal(body, &native); err != nil {
		return nil, fmt.Errorf("parse topstories: %w", err)
	}

	ids := make([]string, len(native))
	for i, n := range native {
		ids[i] = strconv.FormatInt(n, 10)
	}
	return ids, nil
}

// hnItem is the Firebase item payload. Text posts have no url field.
type hnItem struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Time    int64  `json:"time"`
	Dead    bool   `json:"dead"`
	Deleted bool   `json:"deleted"`
}

// FetchItem retrieves one story body.
func (h *HackerNews) FetchItem(ctx context.Context, nativeID string) (Item, error) {
	body, err := h.get(ctx, fmt.Sprintf("%s/v0/item/%s.json", h.base, nativeID))
	if err != nil {
		return Item{}, err
	}

	// The API returns the literal "null" for unknown ids.
	var story *hnItem
	if err := json.Unmarshal(body, &story); err != nil {
		return Item{}, fmt.Errorf("parse item %s: %w", nativeID, err)
	}
	if story == nil || story.Deleted || story.Dead {
		return Item{}, fmt.Errorf("item %s unavailable", nativeID)
	}

	return Item{
		ID:          ItemID(h.Prefix(), nativeID),
		Title:       story.Title,
		URL:         story.URL,
		Description: story.Text,
		Tags:        []string{},
		SourceURL:   "https://news.ycombinator.com/item?id=" + nativeID,
		CreatedAt:   story.Time,
	}, nil
}

func (h *HackerNews) get(ctx context.Context, url string) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "sift/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
