package graph_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/evorao/graph"
	"github.com/c360studio/evorao/vocabulary/evorao"
)

func TestMerge(t *testing.T) {
	a := &graph.Document{
		Context: map[string]any{"@vocab": "https://example.org/a/"},
		Graph: []any{
			map[string]any{"@id": "x:1", "from": "a"},
			map[string]any{"note": "no id"},
		},
	}
	b := &graph.Document{
		Context: map[string]any{"@vocab": "https://example.org/b/"},
		Graph: []any{
			map[string]any{"@id": "x:1", "from": "b"},
			map[string]any{"note": "no id"},
			map[string]any{"@id": "x:2"},
		},
	}

	merged, stats := graph.Merge(a, nil, b)

	assert.Equal(t, a.Context, merged.Context, "first context wins")
	require.Len(t, merged.Graph, 4)
	assert.Equal(t, "a", merged.Graph[0].(map[string]any)["from"], "first occurrence of an @id wins")
	assert.Equal(t, "x:2", merged.Graph[3].(map[string]any)["@id"])
	assert.Equal(t, graph.MergeStats{Documents: 2, Records: 4, Duplicates: 1}, stats)
}

func TestMerge_DefaultContext(t *testing.T) {
	merged, _ := graph.Merge(&graph.Document{Graph: []any{}})
	assert.Equal(t, evorao.DefaultContext(), merged.Context)
	assert.NotNil(t, merged.Graph)
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	pages := filepath.Join(dir, "pages")
	require.NoError(t, os.MkdirAll(pages, 0o755))
	for _, name := range []string{"eva_p2.jsonld", "eva_p1.jsonld", "eva_p10.jsonld"} {
		require.NoError(t, os.WriteFile(filepath.Join(pages, name), []byte(`{"@graph": []}`), 0o644))
	}
	single := filepath.Join(dir, "other.jsonld")
	require.NoError(t, os.WriteFile(single, []byte(`{"@graph": []}`), 0o644))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	paths, err := graph.ExpandInputs([]string{
		single,
		filepath.Join(pages, "eva_p*.jsonld"),
		filepath.Join(dir, "**", "nothing*.jsonld"),
		filepath.Join(pages, "eva_p1.jsonld"),
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{
		single,
		filepath.Join(pages, "eva_p1.jsonld"),
		filepath.Join(pages, "eva_p10.jsonld"),
		filepath.Join(pages, "eva_p2.jsonld"),
	}, paths)
	assert.Contains(t, buf.String(), "No files match input")

	_, err = graph.ExpandInputs([]string{filepath.Join(dir, "[")}, logger)
	assert.Error(t, err)
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.jsonld")
	second := filepath.Join(dir, "b.jsonld")
	require.NoError(t, os.WriteFile(first, []byte(`{"@graph": [{"@id": "x:1"}]}`), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(`{"@context": {"k": "v"}, "@graph": [{"@id": "x:1"}, {"@id": "x:2"}]}`), 0o644))

	merged, stats, err := graph.MergeFiles([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, merged.Context)
	assert.Equal(t, 2, stats.Records)

	_, _, err = graph.MergeFiles([]string{first, filepath.Join(dir, "missing.jsonld")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.jsonld")
}
