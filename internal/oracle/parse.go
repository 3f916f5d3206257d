package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripFences removes markdown code fence lines the oracle sometimes
// wraps its output in. Anything on a fence line (``` or ```json) is
// formatting, not payload.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// parseTwoLists parses the oracle's output contract: exactly two JSON
// arrays of item ids, the first liked, the second disliked, and nothing
// else. Fenced-code-block wrapping is tolerated and stripped.
func parseTwoLists(s string) (liked, disliked []string, err error) {
	cleaned := stripFences(s)
	if cleaned == "" {
		return nil, nil, fmt.Errorf("empty response")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&liked); err != nil {
		return nil, nil, fmt.Errorf("first array: %w", err)
	}
	if err := dec.Decode(&disliked); err != nil {
		return nil, nil, fmt.Errorf("second array: %w", err)
	}
	if dec.More() {
		return nil, nil, fmt.Errorf("trailing content after two arrays")
	}
	return liked, disliked, nil
}
