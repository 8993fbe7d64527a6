// Package graph reads, writes and merges EVORAO JSON-LD graph documents.
//
// Documents are decoded generically so every field the enrichment does not
// touch passes through unchanged. Numbers are kept as json.Number to avoid
// float rounding. A graph node that is not modified is written back with its
// original key order.
package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/c360studio/evorao/atomicfile"
	"github.com/c360studio/evorao/vocabulary/evorao"
)

// Document is a JSON-LD document with a top-level @graph list.
type Document struct {
	// Context is the @context value, nil when absent.
	Context any

	// Graph holds the @graph entries in input order. Object entries are
	// map[string]any; other values are carried as decoded.
	Graph []any

	// extra holds any other top-level keys.
	extra map[string]any

	// sources parallels Graph for decoded documents; empty otherwise.
	sources []source
}

// source is a graph node as read: its bytes and its canonical encoding,
// which tells whether the node has since been modified.
type source struct {
	raw   json.RawMessage
	canon []byte
}

// sourceAt returns the source of Graph[i], if known.
func (d *Document) sourceAt(i int) source {
	if len(d.sources) != len(d.Graph) {
		return source{}
	}
	return d.sources[i]
}

// Records returns views of the object nodes of the graph, in order.
// Mutating a Record mutates the document.
func (d *Document) Records() []Record {
	records := make([]Record, 0, len(d.Graph))
	for _, node := range d.Graph {
		if m, ok := node.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records
}

// Decode reads a document from r.
func Decode(r io.Reader) (*Document, error) {
	var top json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if !startsWith(top, '{') {
		return nil, ErrNoGraph
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(top, &obj); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	rawGraph, ok := obj[evorao.KeyGraph]
	if !ok {
		return nil, ErrNoGraph
	}
	if !startsWith(rawGraph, '[') {
		return nil, fmt.Errorf("%w: @graph is not a list", ErrNoGraph)
	}
	var rawNodes []json.RawMessage
	if err := json.Unmarshal(rawGraph, &rawNodes); err != nil {
		return nil, fmt.Errorf("decode @graph: %w", err)
	}

	doc := &Document{
		Graph:   make([]any, 0, len(rawNodes)),
		sources: make([]source, 0, len(rawNodes)),
	}
	for i, raw := range rawNodes {
		node, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode @graph[%d]: %w", i, err)
		}
		canon, err := marshal(node)
		if err != nil {
			return nil, fmt.Errorf("decode @graph[%d]: %w", i, err)
		}
		doc.Graph = append(doc.Graph, node)
		doc.sources = append(doc.sources, source{raw: raw, canon: canon})
	}

	for k, raw := range obj {
		if k == evorao.KeyGraph {
			continue
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		if k == evorao.KeyContext {
			doc.Context = v
			continue
		}
		if doc.extra == nil {
			doc.extra = make(map[string]any)
		}
		doc.extra[k] = v
	}
	return doc, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func startsWith(raw json.RawMessage, c byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == c
}

// marshal encodes v without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ReadFile reads the document at path. Errors name the path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return doc, nil
}

// MarshalJSON writes the document as a single object. Unmodified graph nodes
// keep their original key order; the keys of every other object come out
// sorted.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.extra)+2)
	for k, v := range d.extra {
		out[k] = v
	}
	if d.Context != nil {
		out[evorao.KeyContext] = d.Context
	}
	graph := make([]any, len(d.Graph))
	for i, node := range d.Graph {
		graph[i] = node
		src := d.sourceAt(i)
		if src.raw == nil {
			continue
		}
		current, err := marshal(node)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(current, src.canon) {
			graph[i] = src.raw
		}
	}
	out[evorao.KeyGraph] = graph
	return marshal(out)
}

// Encode writes the document to w, indented by two spaces.
func Encode(w io.Writer, d *Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteFile writes the document to path atomically, creating parent
// directories.
func WriteFile(path string, d *Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
