// Package textutil provides the text helpers shared by backends and the
// agent core: numbered file rendering, token estimation, and path
// normalization.
package textutil

import (
	"fmt"
	"regexp"
	"strings"
)

// LineChunkSize is the maximum characters rendered per numbered line.
// Longer lines are split into sub-numbered chunks (N.1, N.2, ...).
const LineChunkSize = 2000

// lineNumberWidth is the right-alignment width of rendered line numbers.
const lineNumberWidth = 6

// FormatLines renders lines with right-aligned numbers followed by a tab.
// start is the 1-based number of the first line. Lines longer than
// LineChunkSize are split and numbered N.1, N.2, and so on.
func FormatLines(lines []string, start int) string {
	var b strings.Builder
	for i, line := range lines {
		number := start + i
		if len(line) <= LineChunkSize {
			fmt.Fprintf(&b, "%*d\t%s\n", lineNumberWidth, number, line)
			continue
		}
		for chunk := 0; chunk*LineChunkSize < len(line); chunk++ {
			end := (chunk + 1) * LineChunkSize
			if end > len(line) {
				end = len(line)
			}
			label := fmt.Sprintf("%d.%d", number, chunk+1)
			fmt.Fprintf(&b, "%*s\t%s\n", lineNumberWidth, label, line[chunk*LineChunkSize:end])
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// EstimateTokens approximates the token count of s as ceil(len/4), the
// same heuristic the summarization threshold uses.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// ValidatePath rejects empty and whitespace-only paths.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// NormalizePath ensures a path starts with "/". The path is otherwise
// treated as an opaque string.
func NormalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// NormalizePrefix normalizes a listing prefix: empty becomes "/", and a
// leading and trailing slash are both guaranteed.
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		return "/"
	}
	prefix = NormalizePath(prefix)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

var threadIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeThreadID maps a thread ID to a filesystem-safe form. The
// original ID stays inside the checkpoint payload; only the storage key
// uses the sanitized form.
func SanitizeThreadID(id string) string {
	return threadIDUnsafe.ReplaceAllString(id, "_")
}
