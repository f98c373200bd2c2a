// Composite (prefix-routed) backend.
//
// Information Hiding:
//   - Route table and longest-prefix selection hidden
//   - Mounted backends never see their mount prefix; callers never see a
//     mounted backend's internal paths
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// CompositeBackend routes operations to mounted backends by path prefix,
// falling back to a default backend. The longest matching prefix wins;
// the chosen backend receives the path with that prefix stripped
// (leading slash preserved). Todos live on the default backend.
type CompositeBackend struct {
	fallback Backend
	routes   map[string]Backend
	prefixes []string // sorted longest-first
}

// NewCompositeBackend builds a composite from a default backend and a
// mapping of path prefixes (each beginning and ending with "/") to
// backends. Duplicate prefixes are impossible by construction; malformed
// prefixes are rejected.
func NewCompositeBackend(fallback Backend, routes map[string]Backend) (*CompositeBackend, error) {
	if fallback == nil {
		return nil, fmt.Errorf("default backend is required")
	}

	prefixes := make([]string, 0, len(routes))
	for prefix := range routes {
		if !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") || prefix == "/" {
			return nil, fmt.Errorf("route prefix '%s' must begin and end with '/' and not be the root", prefix)
		}
		prefixes = append(prefixes, prefix)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	copied := make(map[string]Backend, len(routes))
	for prefix, b := range routes {
		copied[prefix] = b
	}
	return &CompositeBackend{fallback: fallback, routes: copied, prefixes: prefixes}, nil
}

// resolve picks the backend for a path and strips the matched prefix.
func (b *CompositeBackend) resolve(path string) (Backend, string, string) {
	path = textutil.NormalizePath(path)
	for _, prefix := range b.prefixes {
		if strings.HasPrefix(path, prefix) {
			return b.routes[prefix], prefix, "/" + strings.TrimPrefix(path, prefix)
		}
	}
	return b.fallback, "", path
}

// resolvePrefix routes a listing prefix the same way as a path.
func (b *CompositeBackend) resolvePrefix(prefix string) (Backend, string, string) {
	prefix = textutil.NormalizePrefix(prefix)
	for _, route := range b.prefixes {
		if strings.HasPrefix(prefix, route) {
			return b.routes[route], route, textutil.NormalizePrefix("/" + strings.TrimPrefix(prefix, route))
		}
	}
	return b.fallback, "", prefix
}

// Read renders a numbered slice of the routed file.
func (b *CompositeBackend) Read(ctx context.Context, path string, offset, limit int) string {
	target, _, rest := b.resolve(path)
	return target.Read(ctx, rest, offset, limit)
}

// ReadRaw returns the routed FileData.
func (b *CompositeBackend) ReadRaw(ctx context.Context, path string) (*model.FileData, error) {
	target, _, rest := b.resolve(path)
	return target.ReadRaw(ctx, rest)
}

// Write routes the write to the longest-prefix backend.
func (b *CompositeBackend) Write(ctx context.Context, path, content string) error {
	target, _, rest := b.resolve(path)
	return target.Write(ctx, rest, content)
}

// Edit routes the edit to the longest-prefix backend.
func (b *CompositeBackend) Edit(ctx context.Context, path, oldStr, newStr string, replaceAll bool) (int, error) {
	target, _, rest := b.resolve(path)
	return target.Edit(ctx, rest, oldStr, newStr, replaceAll)
}

// LsInfo lists entries. At the root it concatenates the default
// backend's entries with one synthetic directory per mount.
func (b *CompositeBackend) LsInfo(ctx context.Context, prefix string) ([]model.FileInfo, error) {
	normalized := textutil.NormalizePrefix(prefix)
	if normalized != "/" {
		target, route, rest := b.resolvePrefix(normalized)
		infos, err := target.LsInfo(ctx, rest)
		if err != nil {
			return nil, err
		}
		return prefixInfos(infos, route), nil
	}

	infos, err := b.fallback.LsInfo(ctx, "/")
	if err != nil {
		return nil, err
	}
	mounts := make([]string, 0, len(b.prefixes))
	mounts = append(mounts, b.prefixes...)
	sort.Strings(mounts)
	for _, mount := range mounts {
		infos = append(infos, model.FileInfo{Path: mount, Kind: model.KindDir})
	}
	return infos, nil
}

// GlobInfo matches files. At the root it unions results from all
// backends, re-prefixing mounted paths.
func (b *CompositeBackend) GlobInfo(ctx context.Context, pattern, prefix string) ([]model.FileInfo, error) {
	normalized := textutil.NormalizePrefix(prefix)
	if normalized != "/" {
		target, route, rest := b.resolvePrefix(normalized)
		infos, err := target.GlobInfo(ctx, pattern, rest)
		if err != nil {
			return nil, err
		}
		return prefixInfos(infos, route), nil
	}

	infos, err := b.fallback.GlobInfo(ctx, pattern, "/")
	if err != nil {
		return nil, err
	}
	for _, route := range b.prefixes {
		mounted, err := b.routes[route].GlobInfo(ctx, pattern, "/")
		if err != nil {
			return nil, err
		}
		infos = append(infos, prefixInfos(mounted, route)...)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// GrepRaw searches content. At the root it unions results from all
// backends, re-prefixing mounted paths.
func (b *CompositeBackend) GrepRaw(ctx context.Context, pattern, prefix, include string) ([]model.GrepMatch, error) {
	normalized := textutil.NormalizePrefix(prefix)
	if normalized != "/" {
		target, route, rest := b.resolvePrefix(normalized)
		matches, err := target.GrepRaw(ctx, pattern, rest, include)
		if err != nil {
			return nil, err
		}
		return prefixMatches(matches, route), nil
	}

	matches, err := b.fallback.GrepRaw(ctx, pattern, "/", include)
	if err != nil {
		return nil, err
	}
	for _, route := range b.prefixes {
		mounted, err := b.routes[route].GrepRaw(ctx, pattern, "/", include)
		if err != nil {
			return nil, err
		}
		matches = append(matches, prefixMatches(mounted, route)...)
	}
	return matches, nil
}

// GetTodos delegates to the default backend.
func (b *CompositeBackend) GetTodos(ctx context.Context) ([]model.Todo, error) {
	return b.fallback.GetTodos(ctx)
}

// SetTodos delegates to the default backend.
func (b *CompositeBackend) SetTodos(ctx context.Context, todos []model.Todo) error {
	return b.fallback.SetTodos(ctx, todos)
}

// SnapshotState forwards to the default backend when it snapshots.
func (b *CompositeBackend) SnapshotState(ctx context.Context) (*model.AgentState, error) {
	if snap, ok := b.fallback.(Snapshotter); ok {
		return snap.SnapshotState(ctx)
	}
	todos, err := b.fallback.GetTodos(ctx)
	if err != nil {
		return nil, err
	}
	state := model.NewAgentState()
	state.Todos = todos
	return state, nil
}

// RestoreState forwards to the default backend when it snapshots.
func (b *CompositeBackend) RestoreState(ctx context.Context, state *model.AgentState) error {
	if snap, ok := b.fallback.(Snapshotter); ok {
		return snap.RestoreState(ctx, state)
	}
	if state == nil {
		return nil
	}
	return b.fallback.SetTodos(ctx, state.Todos)
}

// prefixInfos re-prefixes mounted listing entries so internal paths
// never leak.
func prefixInfos(infos []model.FileInfo, route string) []model.FileInfo {
	if route == "" {
		return infos
	}
	out := make([]model.FileInfo, len(infos))
	for i, info := range infos {
		info.Path = route + strings.TrimPrefix(info.Path, "/")
		out[i] = info
	}
	return out
}

// prefixMatches re-prefixes mounted grep matches.
func prefixMatches(matches []model.GrepMatch, route string) []model.GrepMatch {
	if route == "" {
		return matches
	}
	out := make([]model.GrepMatch, len(matches))
	for i, m := range matches {
		m.Path = route + strings.TrimPrefix(m.Path, "/")
		out[i] = m
	}
	return out
}

var (
	_ Backend     = (*CompositeBackend)(nil)
	_ Snapshotter = (*CompositeBackend)(nil)
)
