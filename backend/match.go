package backend

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchGlob matches a slash-separated relative path against a glob
// pattern. "**" crosses separators; "*" stays within one segment.
// Malformed patterns match nothing.
func matchGlob(pattern, rel string) bool {
	matched, err := doublestar.Match(pattern, rel)
	return err == nil && matched
}

// isHidden reports whether any path segment starts with a dot. Hidden
// entries are skipped unless the pattern itself opts in with a dotted
// segment.
func isHidden(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if strings.HasPrefix(segment, ".") && segment != "." && segment != ".." {
			return true
		}
	}
	return false
}

// patternWantsHidden reports whether the glob explicitly targets dotted
// entries.
func patternWantsHidden(pattern string) bool {
	for _, segment := range strings.Split(pattern, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// includeMatch applies a grep include filter against the file name, or
// the whole relative path when the filter contains a separator.
func includeMatch(include, rel string) bool {
	if include == "" {
		return true
	}
	if strings.Contains(include, "/") {
		return matchGlob(include, rel)
	}
	return matchGlob(include, path.Base(rel))
}
