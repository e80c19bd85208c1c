// Package suggest provides fuzzy matching for CLI flag, config key and help
// topic suggestions using Levenshtein distance.
package suggest

import (
	"cmp"
	"slices"
	"strings"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Closest returns up to three candidates near unknown, best first. Leading
// dashes are ignored on both sides so it works for flags too.
func Closest(unknown string, candidates []string) []string {
	unknown = strings.ToLower(strings.TrimLeft(unknown, "-"))

	type scored struct {
		value string
		dist  int
	}
	var near []scored
	for _, c := range candidates {
		dist := levenshtein(unknown, strings.ToLower(strings.TrimLeft(c, "-")))
		// Within 3 edits or half the length
		if dist <= max(3, len(unknown)/2) {
			near = append(near, scored{c, dist})
		}
	}
	slices.SortStableFunc(near, func(a, b scored) int { return cmp.Compare(a.dist, b.dist) })

	var out []string
	for i := 0; i < len(near) && i < 3; i++ {
		out = append(out, near[i].value)
	}
	return out
}

// flagHints maps commonly attempted flags to what shelf expects instead.
var flagHints = map[string]string{
	"author-id": "--author",
	"authorid":  "--author",
	"id":        "pass the id as an argument, e.g. shelf authors update <id>",
	"user":      "pass the username as an argument, e.g. shelf sign-in <username>",
	"username":  "pass the username as an argument, e.g. shelf sign-in <username>",
	"password":  "use --password-stdin or answer the prompt",
	"json":      "--output json",
	"yaml":      "--output yaml",
	"format":    "--output",
	"server":    "use: shelf config set server_url <url> (or SHELF_SERVER_URL)",
	"force":     "(not needed - changes apply immediately)",
	"yes":       "(not needed - changes apply immediately)",
}

// FlagHint returns a hint for a commonly misused flag, or "".
func FlagHint(flag string) string {
	return flagHints[strings.ToLower(strings.TrimLeft(flag, "-"))]
}

// DidYouMean formats suggestions as a trailing sentence, or "" when there
// are none.
func DidYouMean(suggestions []string) string {
	if len(suggestions) == 0 {
		return ""
	}
	return " (did you mean " + strings.Join(suggestions, " or ") + "?)"
}
