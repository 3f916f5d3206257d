package ranking

import "testing"

func TestTier(t *testing.T) {
	p := Default()

	cases := []struct {
		id   string
		want int
	}{
		{"lobsters-abc", 0},
		{"hn-123", 1},
		{"hnx-123", 2},
		{"reddit-9", 2},
		{"hn", 2},
	}
	for _, c := range cases {
		if got := p.Tier(c.id); got != c.want {
			t.Errorf("Tier(%q) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestTierExpr(t *testing.T) {
	expr, args := Default().TierExpr()

	want := "CASE WHEN id LIKE ? THEN 0 WHEN id LIKE ? THEN 1 ELSE 2 END"
	if expr != want {
		t.Errorf("expr = %q, want %q", expr, want)
	}
	if len(args) != 2 || args[0] != "lobsters-%" || args[1] != "hn-%" {
		t.Errorf("args = %v, want [lobsters-%% hn-%%]", args)
	}
}

func TestTierExprMatchesTier(t *testing.T) {
	// The CASE expression and Tier implement the same mapping: one LIKE
	// branch per priority, unmatched ids in the final tier.
	p := Priorities{"lobsters", "hn", "extra"}
	expr, args := p.TierExpr()
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
	for i, prefix := range p {
		if args[i] != prefix+"-%" {
			t.Errorf("arg %d = %v, want %s-%%", i, args[i], prefix)
		}
	}
	if expr[:4] != "CASE" || expr[len(expr)-3:] != "END" {
		t.Errorf("expr = %q", expr)
	}
}
