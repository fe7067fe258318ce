package pathutil

import (
	"fmt"
	"strings"
)

// Separator is the canonical path separator for all backends.
const Separator = "/"

// Validate normalizes a path and rejects anything that could escape a
// backend's namespace. It returns the normalized path or an error describing
// why the path is unsafe.
//
// Rules:
//   - empty paths are rejected
//   - ".." segments are rejected anywhere in the path
//   - "~" home expansion markers are rejected
//   - Windows drive letters and backslashes are rejected
//   - duplicate separators are collapsed
//   - a trailing separator is stripped, except for the root path itself
//   - a missing leading separator is added
func Validate(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(p, "\\") || isDrivePath(p) {
		return "", fmt.Errorf("Windows-style path not allowed: %s", p)
	}
	if strings.Contains(p, "~") {
		return "", fmt.Errorf("path cannot contain ~ (home expansion): %s", p)
	}
	for _, seg := range strings.Split(p, Separator) {
		if seg == ".." {
			return "", fmt.Errorf("path cannot contain .. (parent traversal): %s", p)
		}
	}
	return Normalize(p), nil
}

// Normalize collapses duplicate separators, ensures a leading separator, and
// strips a trailing one (except for the root path). It performs no safety
// checks; callers wanting the traversal gate use Validate.
func Normalize(p string) string {
	if p == "" {
		return Separator
	}
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	for strings.Contains(p, Separator+Separator) {
		p = strings.ReplaceAll(p, Separator+Separator, Separator)
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, Separator)
	}
	return p
}

// Base returns the final element of a normalized path.
func Base(p string) string {
	p = strings.TrimSuffix(p, Separator)
	if i := strings.LastIndex(p, Separator); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return Separator
	}
	return p
}

// Dir returns the parent of a normalized path, "/" for top-level entries.
func Dir(p string) string {
	p = strings.TrimSuffix(p, Separator)
	i := strings.LastIndex(p, Separator)
	if i <= 0 {
		return Separator
	}
	return p[:i]
}

// IsUnder reports whether path sits at or beneath dir. Both arguments must
// already be normalized.
func IsUnder(path, dir string) bool {
	if dir == Separator {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+Separator)
}

// isDrivePath detects forms like "C:" or "C:/...".
func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
