package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evaPage = `{
  "@context": {"@vocab": "https://w3id.org/evorao/"},
  "@graph": [
    {
      "@id": "eva:rabies",
      "EVORAO:pathogenIdentification": {
        "EVORAO:pathogenName": {"dcterms:title": "Rabies virus"}
      }
    },
    {
      "@id": "eva:unknown",
      "EVORAO:pathogenIdentification": {
        "EVORAO:pathogenName": {"dcterms:title": "Mystery agent"}
      }
    }
  ]
}`

// authorityServer answers "Rabies virus" and 404s everything else.
func authorityServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("label") != "Rabies virus" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "current",
			"current": map[string]any{
				"label":               "Rabies lyssavirus",
				"ictv_id":             "ICTV19750001",
				"msl":                 "MSL39",
				"rank":                map[string]any{"label": "species"},
				"direct_parent_label": "Lyssavirus",
				"synonyms":            []string{"Rabies virus"},
				"lineage":             []string{"Riboviria", "Rhabdoviridae", "Lyssavirus"},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

// writeConfig writes a config pointing at endpoint with fast retries.
func writeConfig(t *testing.T, dir, endpoint string) string {
	t.Helper()
	path := filepath.Join(dir, "evorao-test.yaml")
	content := fmt.Sprintf(`authority:
  endpoint: %s/resolve
  timeout: 5s
resolver:
  workers: 2
retry:
  max_attempts: 2
  backoff_base: 1ms
  backoff_multiplier: 1
`, endpoint)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "evorao version "+Version+" (build: "+BuildTime+")\n", out)
}

func TestEnrich(t *testing.T) {
	var calls atomic.Int32
	server := authorityServer(t, &calls)

	dir := t.TempDir()
	input := filepath.Join(dir, "eva.jsonld")
	output := filepath.Join(dir, "out", "eva_enriched.jsonld")
	require.NoError(t, os.WriteFile(input, []byte(evaPage), 0o644))
	configPath := writeConfig(t, dir, server.URL)
	metricsPath := filepath.Join(dir, "evorao.prom")

	out, err := execute(t, "enrich",
		"--config", configPath,
		"--log-level", "error",
		"-i", input, "-o", output,
		"--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Enriched 1 of 2 records")
	assert.Equal(t, int32(2), calls.Load())

	doc := readJSON(t, output)
	records := doc["@graph"].([]any)
	require.Len(t, records, 2)

	rabies := records[0].(map[string]any)
	taxon := rabies["EVORAO:pathogenIdentification"].(map[string]any)["EVORAO:taxon"].(map[string]any)
	assert.Equal(t, "Rabies lyssavirus", taxon["dcterms:title"])
	assert.Equal(t, "Rabies lyssavirus", rabies["search:taxonLabel"])
	assert.Contains(t, rabies["search:taxon"], "Lyssavirus")

	unknown := records[1].(map[string]any)
	assert.NotContains(t, unknown["EVORAO:pathogenIdentification"], "EVORAO:taxon")

	t.Run("cache written beside input", func(t *testing.T) {
		cached := readJSON(t, filepath.Join(dir, "ictv_cache.json"))
		assert.Contains(t, cached, "Rabies virus")
		assert.Contains(t, cached, "Mystery agent")
		assert.Nil(t, cached["Mystery agent"])
		assert.NotEmpty(t, cached["_fetched_at"])
	})

	t.Run("metrics textfile", func(t *testing.T) {
		data, err := os.ReadFile(metricsPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "evorao_resolver_cache_misses_total 2")
		assert.Contains(t, string(data), `evorao_enrich_records{state="enriched"} 1`)
	})

	t.Run("second run uses cache", func(t *testing.T) {
		_, err := execute(t, "enrich", "--config", configPath, "--log-level", "error", "-i", input, "-o", output)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("cache stats", func(t *testing.T) {
		out, err := execute(t, "cache", "stats", "--config", configPath, "--cache", filepath.Join(dir, "ictv_cache.json"))
		require.NoError(t, err)
		assert.Contains(t, out, "Driver:     file")
		assert.Contains(t, out, "Labels:     2")
		assert.Contains(t, out, "Resolved:   1")
		assert.Contains(t, out, "Unresolved: 1")
		assert.NotContains(t, out, "never")
	})

	t.Run("cache show", func(t *testing.T) {
		cachePath := filepath.Join(dir, "ictv_cache.json")

		out, err := execute(t, "cache", "show", "Rabies virus", "--config", configPath, "--cache", cachePath)
		require.NoError(t, err)
		assert.Contains(t, out, `"Rabies lyssavirus"`)

		out, err = execute(t, "cache", "show", "Mystery agent", "--config", configPath, "--cache", cachePath)
		require.NoError(t, err)
		assert.Equal(t, "null\n", out)

		_, err = execute(t, "cache", "show", "Never asked", "--config", configPath, "--cache", cachePath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not cached")
	})
}

func TestEnrich_SQLiteDriver(t *testing.T) {
	var calls atomic.Int32
	server := authorityServer(t, &calls)

	dir := t.TempDir()
	input := filepath.Join(dir, "eva.jsonld")
	output := filepath.Join(dir, "eva_enriched.jsonld")
	require.NoError(t, os.WriteFile(input, []byte(evaPage), 0o644))
	configPath := writeConfig(t, dir, server.URL)

	_, err := execute(t, "enrich", "--config", configPath, "--log-level", "error",
		"-i", input, "-o", output, "--cache-driver", "sqlite")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "ictv_cache.db"))

	out, err := execute(t, "cache", "stats", "--config", configPath,
		"--cache-driver", "sqlite", "--cache", filepath.Join(dir, "ictv_cache.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "Labels:     2")
}

func TestEnrich_Errors(t *testing.T) {
	var calls atomic.Int32
	server := authorityServer(t, &calls)
	dir := t.TempDir()
	configPath := writeConfig(t, dir, server.URL)

	t.Run("missing required flags", func(t *testing.T) {
		_, err := execute(t, "enrich", "--config", configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required flag")
	})

	t.Run("missing input", func(t *testing.T) {
		missing := filepath.Join(dir, "nope.jsonld")
		output := filepath.Join(dir, "out.jsonld")
		_, err := execute(t, "enrich", "--config", configPath, "--log-level", "error", "-i", missing, "-o", output)
		require.Error(t, err)
		assert.Contains(t, err.Error(), missing)
		assert.NoFileExists(t, output)
	})

	t.Run("unknown cache driver", func(t *testing.T) {
		input := filepath.Join(dir, "eva.jsonld")
		require.NoError(t, os.WriteFile(input, []byte(evaPage), 0o644))
		_, err := execute(t, "enrich", "--config", configPath, "-i", input, "-o", filepath.Join(dir, "x.jsonld"),
			"--cache-driver", "redis")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown cache driver")
	})

	t.Run("bad config file", func(t *testing.T) {
		_, err := execute(t, "enrich", "--config", filepath.Join(dir, "absent.yaml"), "-i", "a", "-o", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load config")
	})
	assert.Zero(t, calls.Load())
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	pages := filepath.Join(dir, "pages")
	require.NoError(t, os.MkdirAll(pages, 0o755))

	page := func(ids ...string) string {
		nodes := make([]string, 0, len(ids))
		for _, id := range ids {
			nodes = append(nodes, fmt.Sprintf(`{"@id": %q}`, id))
		}
		return `{"@context": {"@vocab": "https://w3id.org/evorao/"}, "@graph": [` + strings.Join(nodes, ",") + `]}`
	}
	require.NoError(t, os.WriteFile(filepath.Join(pages, "eva_p2.jsonld"), []byte(page("eva:b", "eva:c")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "eva_p1.jsonld"), []byte(page("eva:a", "eva:b")), 0o644))

	output := filepath.Join(dir, "eva.jsonld")
	out, err := execute(t, "merge", "--log-level", "error", "-o", output, filepath.Join(pages, "eva_p*.jsonld"))
	require.NoError(t, err)
	assert.Contains(t, out, "Merged 3 records from 2 documents")

	doc := readJSON(t, output)
	var ids []string
	for _, node := range doc["@graph"].([]any) {
		ids = append(ids, node.(map[string]any)["@id"].(string))
	}
	assert.Equal(t, []string{"eva:a", "eva:b", "eva:c"}, ids)

	t.Run("nothing matches", func(t *testing.T) {
		_, err := execute(t, "merge", "--log-level", "error", "-o", output, filepath.Join(dir, "none_*.jsonld"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no input files")
	})
}
