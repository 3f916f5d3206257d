// Package feeds defines the item model and the remote feed clients.
package feeds

import "fmt"

// Category is a classification assigned to an item, by the oracle or by
// a manual swipe.
type Category int

const (
	Disliked Category = 0
	Liked    Category = 1
)

func (c Category) String() string {
	if c == Liked {
		return "liked"
	}
	return "disliked"
}

// ParseCategory maps the wire names onto a Category.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "liked", "like":
		return Liked, nil
	case "disliked", "dislike":
		return Disliked, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Item is the unit of work flowing through the pipeline.
//
// Category and SortedAt are both nullable: an item fresh from a feed has
// neither, an oracle-classified item has a Category but no SortedAt, and
// a swiped item has both. SortedAt is set exactly once, at the first
// swipe, and re-classification must never overwrite it.
type Item struct {
	ID          string
	Title       string
	URL         string
	Description string
	Tags        []string
	SourceURL   string
	CreatedAt   int64 // Source's own publish time, unix seconds
	Category    *Category
	SortedAt    *int64
}

// ItemID builds the canonical identifier for a native feed id.
// The prefix namespaces ids across sources, so "hn-123" and
// "lobsters-123" never collide.
func ItemID(prefix, nativeID string) string {
	return prefix + "-" + nativeID
}
