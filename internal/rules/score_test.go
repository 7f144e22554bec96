package rules

import "testing"

func TestScoreOrdering(t *testing.T) {
	// 特异性从高到低的链条，分值必须严格递减
	chain := []string{
		"api.staging.example.com",
		"api.example.com",
		"*.staging.example.com",
		"example.com",
		"*.example.com",
		"*.com",
	}
	for i := 0; i+1 < len(chain); i++ {
		a, b := chain[i], chain[i+1]
		if Score(a) <= Score(b) {
			t.Fatalf("Score(%q)=%d should be > Score(%q)=%d", a, Score(a), b, Score(b))
		}
	}
}

func TestScoreValues(t *testing.T) {
	cases := []struct {
		pattern string
		want    int
	}{
		{"example.com", 20},
		{"*.example.com", 19},
		{"api.example.com", 30},
		{"*", -1},
		{"", 0},
		{"*.com", 9},
	}
	for _, c := range cases {
		if got := Score(c.pattern); got != c.want {
			t.Errorf("Score(%q) = %d, want %d", c.pattern, got, c.want)
		}
	}
}

func TestScoreIgnoresSchemeAndPath(t *testing.T) {
	if Score("https://api.example.com/v1/*") != Score("api.example.com") {
		t.Fatal("scheme and path must not affect the score")
	}
	if Score("*://api.example.com") != Score("api.example.com") {
		t.Fatal("wildcard scheme must not affect the score")
	}
}

func TestScoreStable(t *testing.T) {
	for i := 0; i < 3; i++ {
		if Score("*.staging.example.com") != 29 {
			t.Fatal("score must be deterministic across calls")
		}
	}
}
