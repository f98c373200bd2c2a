package backend

import (
	"regexp"
	"sort"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// The map-backed helpers below implement listing, glob, and grep over a
// path->FileData snapshot. The state and key-value backends both reduce
// to this shape.

func listEntries(files map[string]*model.FileData, prefix string) []model.FileInfo {
	var infos []model.FileInfo
	seenDirs := make(map[string]bool)

	for path, data := range files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			dir := prefix + rest[:i]
			if !seenDirs[dir] {
				seenDirs[dir] = true
				infos = append(infos, model.FileInfo{Path: dir + "/", Kind: model.KindDir})
			}
			continue
		}
		infos = append(infos, model.FileInfo{
			Path:       path,
			Kind:       model.KindFile,
			Size:       len(data.Text()),
			ModifiedAt: data.ModifiedAt,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos
}

func globEntries(files map[string]*model.FileData, pattern, prefix string) []model.FileInfo {
	allowHidden := patternWantsHidden(pattern)

	var infos []model.FileInfo
	for path, data := range files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rel := strings.TrimPrefix(path, prefix)
		if !allowHidden && isHidden(rel) {
			continue
		}
		if !matchGlob(pattern, rel) {
			continue
		}
		infos = append(infos, model.FileInfo{
			Path:       path,
			Kind:       model.KindFile,
			Size:       len(data.Text()),
			ModifiedAt: data.ModifiedAt,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos
}

func grepEntries(files map[string]*model.FileData, re *regexp.Regexp, prefix, include string) []model.GrepMatch {
	paths := make([]string, 0, len(files))
	for path := range files {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var matches []model.GrepMatch
	for _, path := range paths {
		rel := strings.TrimPrefix(path, prefix)
		if !includeMatch(include, rel) {
			continue
		}
		for i, line := range files[path].Content {
			if re.MatchString(line) {
				matches = append(matches, model.GrepMatch{Path: path, Line: i + 1, Text: line})
			}
		}
	}
	return matches
}

// compileGrep compiles a grep pattern, producing the canonical
// invalid-pattern error string.
func compileGrep(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalidRegexErr(err)
	}
	return re, nil
}
