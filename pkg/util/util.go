package util

import (
	"path/filepath"
	"strings"
)

// MatchesIgnore reports whether relPath (relative to the directory being
// expanded) matches a gitignore-style pattern. A pattern with a leading "/" is
// rooted and only matches from the start of relPath; other patterns match any
// trailing run of path segments. A pattern also matches everything below a
// matching directory.
// Note: built on filepath.Match, so "**" is not supported.
func MatchesIgnore(pattern, relPath string) bool {
	pattern = filepath.ToSlash(strings.TrimSpace(pattern))
	relPath = filepath.ToSlash(relPath)
	if pattern == "" || relPath == "" || relPath == "." {
		return false
	}
	rooted := strings.HasPrefix(pattern, "/")
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return false
	}

	parts := strings.Split(relPath, "/")
	starts := []int{0}
	if !rooted {
		starts = starts[:0]
		for i := range parts {
			starts = append(starts, i)
		}
	}
	patternDepth := strings.Count(pattern, "/") + 1
	for _, i := range starts {
		for j := i + patternDepth; j <= len(parts); j++ {
			if match, _ := filepath.Match(pattern, strings.Join(parts[i:j], "/")); match {
				return true
			}
		}
	}
	return false
}

// MatchesAny reports whether relPath matches any of patterns.
func MatchesAny(patterns []string, relPath string) bool {
	for _, p := range patterns {
		if MatchesIgnore(p, relPath) {
			return true
		}
	}
	return false
}
