package graph

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/evorao/vocabulary/evorao"
)

// MergeStats reports what Merge kept and dropped.
type MergeStats struct {
	Documents  int
	Records    int
	Duplicates int
}

// Merge concatenates the graphs of docs in order. The first non-nil context
// wins; without one the default EVORAO context is used. A node whose @id was
// already seen is dropped; nodes without an @id are always kept.
func Merge(docs ...*Document) (*Document, MergeStats) {
	out := &Document{Graph: []any{}}
	var stats MergeStats
	seen := make(map[string]bool)

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		stats.Documents++
		if out.Context == nil && doc.Context != nil {
			out.Context = doc.Context
		}
		for i, node := range doc.Graph {
			if m, ok := node.(map[string]any); ok {
				if id := Record(m).ID(); id != "" {
					if seen[id] {
						stats.Duplicates++
						continue
					}
					seen[id] = true
				}
			}
			out.Graph = append(out.Graph, node)
			out.sources = append(out.sources, doc.sourceAt(i))
		}
	}

	if out.Context == nil {
		out.Context = evorao.DefaultContext()
	}
	stats.Records = len(out.Graph)
	return out, stats
}

// ExpandInputs resolves each argument to file paths. Arguments naming an
// existing file are used as is; others are treated as doublestar patterns,
// expanded in sorted order. A pattern matching nothing is logged and
// skipped. Paths are returned once, in argument order.
func ExpandInputs(args []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			add(arg)
			continue
		}
		if !doublestar.ValidatePathPattern(arg) {
			return nil, fmt.Errorf("invalid pattern %q", arg)
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", arg, err)
		}
		if len(matches) == 0 {
			logger.Warn("No files match input", slog.String("pattern", arg))
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

// MergeFiles reads every input and merges them. Any unreadable input is
// an error naming its path.
func MergeFiles(paths []string) (*Document, MergeStats, error) {
	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		doc, err := ReadFile(p)
		if err != nil {
			return nil, MergeStats{}, err
		}
		docs = append(docs, doc)
	}
	merged, stats := Merge(docs...)
	return merged, stats, nil
}
