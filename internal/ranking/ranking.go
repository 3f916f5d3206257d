// Package ranking defines the display orderings: source priority for the
// pending tabs and classification recency for the history tab.
package ranking

import (
	"strconv"
	"strings"
)

// Priorities is an ordered list of source id prefixes. Items whose id
// matches an earlier prefix rank before items matching a later one;
// unmatched ids rank last. The default puts Lobsters ahead of Hacker
// News: far fewer stories per day, much higher signal.
type Priorities []string

// Default returns the priority order of the two stock sources.
func Default() Priorities {
	return Priorities{"lobsters", "hn"}
}

// Tier returns the priority tier for an item id. Lower is better.
func (p Priorities) Tier(id string) int {
	for i, prefix := range p {
		if strings.HasPrefix(id, prefix+"-") {
			return i
		}
	}
	return len(p)
}

// TierExpr builds a parameterized SQL CASE expression computing Tier for
// the id column. Prefixes are bound as LIKE parameters, never spliced.
// The store orders the pending tabs by this expression ascending, then
// created_at descending; the history tab by sorted_at descending.
func (p Priorities) TierExpr() (expr string, args []any) {
	var b strings.Builder
	b.WriteString("CASE")
	for i, prefix := range p {
		b.WriteString(" WHEN id LIKE ? THEN ")
		b.WriteString(strconv.Itoa(i))
		args = append(args, prefix+"-%")
	}
	b.WriteString(" ELSE ")
	b.WriteString(strconv.Itoa(len(p)))
	b.WriteString(" END")
	return b.String(), args
}
