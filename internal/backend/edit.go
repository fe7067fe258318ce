package backend

import (
	"fmt"
	"strings"
)

// Substitute applies the shared edit rule to content: replace old with new,
// returning the updated content and the number of substitutions performed.
//
// With replaceAll false the occurrence count must be exactly one: zero
// occurrences fail ErrNoMatch, several fail ErrAmbiguousMatch so the caller
// leaves the file untouched. Every backend routes its Edit through here so
// the error semantics stay identical.
func Substitute(content, old, new string, replaceAll bool) (string, int, error) {
	count := strings.Count(content, old)
	if count == 0 {
		return "", 0, fmt.Errorf("%w: string not found in file: %q", ErrNoMatch, old)
	}
	if count > 1 && !replaceAll {
		return "", 0, fmt.Errorf(
			"%w: string %q appears %d times in file; provide more context or use replace_all",
			ErrAmbiguousMatch, old, count)
	}
	if replaceAll {
		return strings.ReplaceAll(content, old, new), count, nil
	}
	return strings.Replace(content, old, new, 1), 1, nil
}
