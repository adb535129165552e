package alias

import (
	"strings"

	"github.com/zhouzirui/weibo-seed/internal/dataset"
)

// Expand lists each key followed by its aliases, without repeats.
func Expand(keys []string, aliases map[string][]string) []string {
	candidates := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		if !contains(candidates, key) {
			candidates = append(candidates, key)
		}
		for _, a := range aliases[key] {
			if !contains(candidates, a) {
				candidates = append(candidates, a)
			}
		}
	}
	return candidates
}

// KeyMatches reports whether actual and candidate overlap by containment in
// either direction. Partially corrupted labels usually keep a readable
// prefix or suffix, which is what this recovers.
func KeyMatches(actual, candidate string) bool {
	return strings.Contains(actual, candidate) || strings.Contains(candidate, actual)
}

// FuzzyMatch scans obj in key insertion order and returns the first entry
// accepted by accept whose key matches any candidate. Candidates are tried in
// order for each key, so the record's key order decides ties.
func FuzzyMatch(obj *dataset.Object, candidates []string, accept func(any) bool) (string, any, bool) {
	var (
		matchKey string
		matchVal any
		found    bool
	)
	obj.Each(func(key string, value any) bool {
		if accept != nil && !accept(value) {
			return true
		}
		for _, c := range candidates {
			if KeyMatches(key, c) {
				matchKey, matchVal, found = key, value, true
				return false
			}
		}
		return true
	})
	return matchKey, matchVal, found
}
