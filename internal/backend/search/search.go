package search

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentfs/agentfs/internal/backend"
	"github.com/agentfs/agentfs/internal/shared/pathutil"
)

// MaxMatchesPerFile caps grep hits reported for a single file.
const MaxMatchesPerFile = 100

// Compile compiles a grep pattern, converting failures into the diagnostic
// *backend.BadPatternError every backend reports for bad regexes.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &backend.BadPatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// MatchGlob reports whether path (normalized, absolute) matches pattern
// relative to base. A malformed pattern matches nothing.
func MatchGlob(pattern, path, base string) bool {
	rel := Relative(path, base)
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

// Relative strips base from path, yielding the separator-free relative form
// doublestar patterns are matched against.
func Relative(path, base string) string {
	if base == "" || base == pathutil.Separator {
		return strings.TrimPrefix(path, pathutil.Separator)
	}
	rel := strings.TrimPrefix(path, base)
	return strings.TrimPrefix(rel, pathutil.Separator)
}

// GrepLines scans lines against re and returns matches for path, 1-indexed,
// capped at MaxMatchesPerFile.
func GrepLines(re *regexp.Regexp, path string, lines []string) []backend.SearchMatch {
	var matches []backend.SearchMatch
	for i, line := range lines {
		if re.MatchString(line) {
			matches = append(matches, backend.SearchMatch{Path: path, Line: i + 1, Text: line})
			if len(matches) >= MaxMatchesPerFile {
				break
			}
		}
	}
	return matches
}
