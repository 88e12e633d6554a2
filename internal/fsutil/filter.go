package fsutil

import "path/filepath"

// MatchesAny reports whether name matches at least one of the glob
// patterns. An empty pattern list matches everything.
func MatchesAny(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	base := filepath.Base(name)
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}
