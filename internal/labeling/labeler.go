// Package labeling derives candidate cluster labels from member entity
// names. Pure string heuristics; no network or model calls.
package labeling

import (
	"sort"
	"strings"
	"unicode"
)

// prefixCoverage is the member fraction a common token prefix must cover.
const prefixCoverage = 0.60

// Label is a candidate cluster label with its supporting member fraction.
type Label struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Derive picks a label for the given member names, in priority order:
// longest common token prefix covering at least 60% of members, then the
// most frequent leading action token, then the most common remaining token.
// Deriving twice from the same names yields the same label.
func Derive(names []string) Label {
	if len(names) == 0 {
		return Label{}
	}

	tokenized := make([][]string, len(names))
	for i, n := range names {
		tokenized[i] = Tokenize(n)
	}

	if l, ok := commonPrefixLabel(tokenized); ok {
		return l
	}
	if l, ok := leadingTokenLabel(tokenized); ok {
		return l
	}
	return commonTokenLabel(tokenized)
}

// Tokenize splits an entity name into lowercase tokens on camelCase
// boundaries, underscores, and path separators.
func Tokenize(name string) []string {
	// Keep only the last path segment; the rest is namespace noise.
	if i := strings.LastIndexAny(name, "/."); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	rs := []rune(name)
	for i, r := range rs {
		if r == '_' || r == '-' || r == ' ' {
			flush()
			continue
		}
		if unicode.IsUpper(r) && cur.Len() > 0 {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			// Split on lower->Upper transitions and at the last upper of an
			// acronym run (HTTPServer -> http, server).
			if !unicode.IsUpper(prev) || nextLower {
				flush()
			}
		}
		cur.WriteRune(r)
	}
	flush()
	return tokens
}

// commonPrefixLabel finds the longest token prefix shared by enough members.
func commonPrefixLabel(tokenized [][]string) (Label, bool) {
	if len(tokenized) < 2 {
		return Label{}, false
	}

	// Count how many members start with each candidate prefix, longest
	// prefixes first so the longest qualifying one wins.
	best := Label{}
	threshold := prefixCoverage * float64(len(tokenized))

	counts := map[string]int{}
	for _, toks := range tokenized {
		for l := 1; l <= len(toks); l++ {
			counts[strings.Join(toks[:l], " ")]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, prefix := range keys {
		n := counts[prefix]
		if float64(n) < threshold {
			continue
		}
		longer := len(prefix) > len(best.Text)
		equal := len(prefix) == len(best.Text) && prefix < best.Text
		if longer || equal {
			best = Label{Text: prefix, Confidence: float64(n) / float64(len(tokenized))}
		}
	}
	if best.Text == "" {
		return Label{}, false
	}
	return best, true
}

// leadingTokenLabel picks the most frequent leading action token.
func leadingTokenLabel(tokenized [][]string) (Label, bool) {
	counts := map[string]int{}
	for _, toks := range tokenized {
		if len(toks) > 0 && isActionToken(toks[0]) {
			counts[toks[0]]++
		}
	}
	tok, n := maxCount(counts)
	if n == 0 {
		return Label{}, false
	}
	return Label{Text: tok, Confidence: float64(n) / float64(len(tokenized))}, true
}

// commonTokenLabel falls back to the most common token anywhere in the
// names, preferring type-ish (originally capitalized) tokens implicitly by
// sheer frequency.
func commonTokenLabel(tokenized [][]string) Label {
	counts := map[string]int{}
	for _, toks := range tokenized {
		seen := map[string]bool{}
		for _, t := range toks {
			if !seen[t] {
				counts[t]++
				seen[t] = true
			}
		}
	}
	tok, n := maxCount(counts)
	if n == 0 {
		return Label{}
	}
	return Label{Text: tok, Confidence: float64(n) / float64(len(tokenized))}
}

// maxCount returns the highest-count key, ties broken lexicographically.
func maxCount(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best, bestN
}

var actionTokens = map[string]bool{
	"get": true, "set": true, "new": true, "make": true, "build": true,
	"parse": true, "load": true, "save": true, "read": true, "write": true,
	"create": true, "delete": true, "update": true, "find": true,
	"handle": true, "process": true, "validate": true, "render": true,
	"encode": true, "decode": true, "marshal": true, "unmarshal": true,
	"fetch": true, "send": true, "resolve": true, "apply": true,
	"compute": true, "init": true, "open": true, "close": true,
}

func isActionToken(t string) bool {
	return actionTokens[t]
}
