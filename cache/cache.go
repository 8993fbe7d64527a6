// Package cache persists authority answers keyed by label.
//
// Entries are never evicted and never re-queried: once a label has an
// entry, including an explicit "no match", the resolver skips it.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/evorao/taxonomy"
)

// FetchedAtKey is the reserved document key holding the last save time.
const FetchedAtKey = "_fetched_at"

// Cache maps labels to authority results. A nil result records that the
// authority had no answer for the label.
//
// A Cache is not safe for concurrent mutation; the resolver funnels all
// writes through a single collector.
type Cache struct {
	entries   map[string]*taxonomy.Result
	fetchedAt time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*taxonomy.Result)}
}

// Len returns the number of labels with an entry.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Lookup returns the entry for label. The boolean reports whether the label
// has an entry at all; the result may be nil for a recorded miss.
func (c *Cache) Lookup(label string) (*taxonomy.Result, bool) {
	res, ok := c.entries[label]
	return res, ok
}

// Has reports whether label has an entry.
func (c *Cache) Has(label string) bool {
	_, ok := c.entries[label]
	return ok
}

// Set records res for label. The reserved key is ignored.
func (c *Cache) Set(label string, res *taxonomy.Result) {
	if label == FetchedAtKey {
		return
	}
	if c.entries == nil {
		c.entries = make(map[string]*taxonomy.Result)
	}
	c.entries[label] = res
}

// Labels returns every cached label in sorted order.
func (c *Cache) Labels() []string {
	labels := make([]string, 0, len(c.entries))
	for label := range c.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Missing returns the labels that have no entry, preserving input order and
// dropping blanks and duplicates.
func (c *Cache) Missing(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var missing []string
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" || seen[label] || c.Has(label) {
			continue
		}
		seen[label] = true
		missing = append(missing, label)
	}
	return missing
}

// Resolved counts entries that yield a usable entity.
func (c *Cache) Resolved() int {
	n := 0
	for _, res := range c.entries {
		if res.Entity() != nil {
			n++
		}
	}
	return n
}

// FetchedAt returns the time of the last save, or the zero time.
func (c *Cache) FetchedAt() time.Time {
	return c.fetchedAt
}

// Stamp sets the last-save time.
func (c *Cache) Stamp(t time.Time) {
	c.fetchedAt = t.UTC()
}

// MarshalJSON writes the cache as a single object keyed by label.
func (c *Cache) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(c.entries)+1)
	for label, res := range c.entries {
		raw, err := encodeEntry(res)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", label, err)
		}
		doc[label] = raw
	}

	if c.fetchedAt.IsZero() {
		doc[FetchedAtKey] = json.RawMessage("null")
	} else {
		ts, _ := json.Marshal(c.fetchedAt.UTC().Format(time.RFC3339))
		doc[FetchedAtKey] = ts
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a cache document. Entries that cannot be decoded as
// results are kept opaque so they still count as cached.
func (c *Cache) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("cache document is null")
	}

	c.entries = make(map[string]*taxonomy.Result, len(doc))
	c.fetchedAt = time.Time{}
	for key, raw := range doc {
		if key == FetchedAtKey {
			c.fetchedAt = decodeFetchedAt(raw)
			continue
		}
		c.entries[key] = decodeEntry(raw)
	}
	return nil
}

func encodeEntry(res *taxonomy.Result) (json.RawMessage, error) {
	if res == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(res)
}

func decodeEntry(raw json.RawMessage) *taxonomy.Result {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var res taxonomy.Result
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return taxonomy.Opaque(trimmed)
	}
	return &res
}

func decodeFetchedAt(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	// Timestamps without a zone are taken as UTC.
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", strings.TrimSuffix(s, "Z")); err == nil {
		return t
	}
	return time.Time{}
}
