package ui

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxDistance is the largest edit distance FindSimilar accepts
	DefaultMaxDistance = 3
	// DefaultMaxSuggestions caps FindSimilar's result
	DefaultMaxSuggestions = 3
)

// FindSimilar returns up to DefaultMaxSuggestions candidates within
// DefaultMaxDistance edits of target, closest first. Matching ignores case
// and compares the last path segment too, so "circle" suggests
// "Shapes.Circle".
func FindSimilar(target string, candidates []string) []string {
	type match struct {
		value    string
		distance int
	}

	want := strings.ToLower(target)
	var matches []match
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		dist := LevenshteinDistance(want, lower)
		if i := strings.LastIndexByte(lower, '.'); i >= 0 {
			dist = min(dist, LevenshteinDistance(want, lower[i+1:]))
		}
		if dist <= DefaultMaxDistance {
			matches = append(matches, match{value: candidate, distance: dist})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	result := make([]string, 0, DefaultMaxSuggestions)
	for i := 0; i < len(matches) && i < DefaultMaxSuggestions; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// LevenshteinDistance is the number of single-byte insertions, deletions or
// substitutions turning s1 into s2.
func LevenshteinDistance(s1, s2 string) int {
	if s1 == "" {
		return len(s2)
	}
	if s2 == "" {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(s2)]
}
