package suggest

import "testing"

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"title", "title", 0},
		{"titel", "title", 2},
		{"kitten", "sitting", 3},
		{"author", "authors", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClosest(t *testing.T) {
	keys := []string{"server_url", "transport", "delete_policy"}

	got := Closest("transprt", keys)
	if len(got) == 0 || got[0] != "transport" {
		t.Fatalf("Closest(transprt) = %v, want transport first", got)
	}

	if got := Closest("--titel", []string{"--title", "--author", "--output"}); len(got) == 0 || got[0] != "--title" {
		t.Fatalf("Closest(--titel) = %v, want --title first", got)
	}

	if got := Closest("zzzzzzzzzzzz", keys); len(got) != 0 {
		t.Fatalf("Closest(zzzzzzzzzzzz) = %v, want none", got)
	}
}

func TestClosestLimitsToThree(t *testing.T) {
	got := Closest("ab", []string{"aa", "ab", "ac", "ad", "ae"})
	if len(got) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(got))
	}
	if got[0] != "ab" {
		t.Fatalf("exact match should come first, got %v", got)
	}
}

func TestFlagHint(t *testing.T) {
	if got := FlagHint("--author-id"); got != "--author" {
		t.Errorf("FlagHint(--author-id) = %q", got)
	}
	if got := FlagHint("JSON"); got != "--output json" {
		t.Errorf("FlagHint(JSON) = %q", got)
	}
	if got := FlagHint("--nothing"); got != "" {
		t.Errorf("FlagHint(--nothing) = %q, want empty", got)
	}
}

func TestDidYouMean(t *testing.T) {
	if got := DidYouMean(nil); got != "" {
		t.Errorf("DidYouMean(nil) = %q", got)
	}
	if got := DidYouMean([]string{"transport"}); got != " (did you mean transport?)" {
		t.Errorf("DidYouMean = %q", got)
	}
	if got := DidYouMean([]string{"a", "b"}); got != " (did you mean a or b?)" {
		t.Errorf("DidYouMean = %q", got)
	}
}
