package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/logging"
)

// Facts is the item view the oracle sees: content fields only, no
// ranking or classification metadata.
type Facts struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Store is the subset of the retention store the classifier needs:
// exemplar reads for feedback and immediate commits per round.
type Store interface {
	Exemplars(category feeds.Category, limit int) ([]feeds.Item, error)
	InsertClassified(items []feeds.Item, category feeds.Category) error
}

const systemPrompt = `You sort news stories into two groups, "liked" and "disliked", matching the taste shown by the example groups. Respond with exactly two JSON arrays of story ids and nothing else: the first array is the liked ids, the second is the disliked ids. Every submitted id must appear in exactly one array.`

// Classifier partitions pending items into liked/disliked via an
// external oracle, retrying the unresolved subset until the partition is
// complete or the round ceiling is hit.
type Classifier struct {
	provider      Provider
	maxRounds     int
	exemplarLimit int
}

// NewClassifier creates a Classifier. maxRounds bounds contract-violation
// retries; exemplarLimit caps each exemplar list sent per round.
func NewClassifier(provider Provider, maxRounds, exemplarLimit int) *Classifier {
	if maxRounds <= 0 {
		maxRounds = 3
	}
	if exemplarLimit <= 0 {
		exemplarLimit = 300
	}
	return &Classifier{
		provider:      provider,
		maxRounds:     maxRounds,
		exemplarLimit: exemplarLimit,
	}
}

// Classify partitions the pending items. Each round submits the still
// unassigned subset together with freshly read exemplars; any id the
// oracle assigns is inserted into the store at once, so feedback
// accumulates across rounds within a single run. Returns an error when
// ids remain unassigned after the round ceiling, or on a store failure.
func (c *Classifier) Classify(ctx context.Context, pending map[string]feeds.Item, store Store) error {
	if len(pending) == 0 {
		return nil
	}
	if !c.provider.Available() {
		return fmt.Errorf("oracle provider %s not available", c.provider.Name())
	}

	outstanding := make(map[string]feeds.Item, len(pending))
	for id, item := range pending {
		outstanding[id] = item
	}

	for round := 1; round <= c.maxRounds && len(outstanding) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt, err := c.buildPrompt(outstanding, store)
		if err != nil {
			return err
		}

		resp, err := c.provider.Generate(ctx, Request{
			SystemPrompt: systemPrompt,
			UserPrompt:   prompt,
			MaxTokens:    4096,
		})
		if err != nil {
			return fmt.Errorf("oracle request (round %d): %w", round, err)
		}

		liked, disliked, err := parseTwoLists(resp.Content)
		if err != nil {
			logging.Warn("Oracle response violated output contract",
				"round", round, "error", err)
			continue
		}

		likedItems := c.take(outstanding, liked, disliked)
		dislikedItems := c.take(outstanding, disliked, liked)

		if len(likedItems) > 0 {
			if err := store.InsertClassified(likedItems, feeds.Liked); err != nil {
				return fmt.Errorf("insert liked batch: %w", err)
			}
		}
		if len(dislikedItems) > 0 {
			if err := store.InsertClassified(dislikedItems, feeds.Disliked); err != nil {
				return fmt.Errorf("insert disliked batch: %w", err)
			}
		}

		logging.Info("Oracle round complete",
			"round", round,
			"liked", len(likedItems),
			"disliked", len(dislikedItems),
			"outstanding", len(outstanding))
	}

	if len(outstanding) > 0 {
		return fmt.Errorf("classification incomplete after %d rounds: %d items unassigned",
			c.maxRounds, len(outstanding))
	}
	return nil
}

// take resolves the ids of one list against the outstanding set and
// removes the resolved items. Ids unknown to the submission are dropped
// with a warning; an id the oracle put in both lists is left outstanding
// for the next round.
func (c *Classifier) take(outstanding map[string]feeds.Item, ids, other []string) []feeds.Item {
	conflicted := make(map[string]bool)
	for _, id := range ids {
		for _, o := range other {
			if id == o {
				conflicted[id] = true
			}
		}
	}

	var items []feeds.Item
	for _, id := range ids {
		if conflicted[id] {
			logging.Warn("Oracle assigned id to both lists", "id", id)
			continue
		}
		item, ok := outstanding[id]
		if !ok {
			logging.Warn("Oracle returned unknown id", "id", id)
			continue
		}
		items = append(items, item)
		delete(outstanding, id)
	}
	return items
}

// buildPrompt assembles the submission: the outstanding tuples plus the
// store's current liked and disliked exemplars. Exemplars are re-read
// every round so earlier commits inform later ones.
func (c *Classifier) buildPrompt(outstanding map[string]feeds.Item, store Store) (string, error) {
	submitted := make([]Facts, 0, len(outstanding))
	for _, item := range outstanding {
		submitted = append(submitted, itemFacts(item))
	}
	sort.Slice(submitted, func(i, j int) bool { return submitted[i].ID < submitted[j].ID })

	liked, err := store.Exemplars(feeds.Liked, c.exemplarLimit)
	if err != nil {
		return "", fmt.Errorf("read liked exemplars: %w", err)
	}
	disliked, err := store.Exemplars(feeds.Disliked, c.exemplarLimit)
	if err != nil {
		return "", fmt.Errorf("read disliked exemplars: %w", err)
	}

	submittedJSON, err := json.Marshal(submitted)
	if err != nil {
		return "", err
	}
	likedJSON, err := json.Marshal(factsList(liked))
	if err != nil {
		return "", err
	}
	dislikedJSON, err := json.Marshal(factsList(disliked))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Stories to sort:
%s

Examples of liked stories:
%s

Examples of disliked stories:
%s`, submittedJSON, likedJSON, dislikedJSON), nil
}

func itemFacts(item feeds.Item) Facts {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return Facts{
		ID:          item.ID,
		Title:       item.Title,
		URL:         item.URL,
		Description: item.Description,
		Tags:        tags,
	}
}

func factsList(items []feeds.Item) []Facts {
	facts := make([]Facts, len(items))
	for i, item := range items {
		facts[i] = itemFacts(item)
	}
	return facts
}
