package taxonomy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entity is a taxon as described by the authority.
type Entity struct {
	Label string `json:"label"`

	// ICTVID is the authority's persistent identifier.
	ICTVID string `json:"ictv_id,omitempty"`

	// MSL is the Master Species List release the entity belongs to.
	MSL string `json:"msl,omitempty"`

	Curie string `json:"ictv_curie,omitempty"`
	IRI   string `json:"iri,omitempty"`

	Rank              *Rank          `json:"rank,omitempty"`
	DirectParentLabel string         `json:"direct_parent_label,omitempty"`
	Synonyms          []string       `json:"synonyms,omitempty"`
	Lineage           []LineageEntry `json:"lineage,omitempty"`
}

// IsZero reports whether the entity is nil or carries no information.
func (e *Entity) IsZero() bool {
	if e == nil {
		return true
	}
	return e.Label == "" && e.ICTVID == "" && e.MSL == "" && e.Curie == "" && e.IRI == "" &&
		e.Rank.label() == "" && e.DirectParentLabel == "" &&
		len(e.Synonyms) == 0 && len(e.Lineage) == 0
}

// RankLabel returns the rank name, or "" when the entity has none.
func (e *Entity) RankLabel() string {
	return e.Rank.label()
}

// LineageLabels returns the non-empty ancestor names in source order.
func (e *Entity) LineageLabels() []string {
	out := make([]string, 0, len(e.Lineage))
	for _, entry := range e.Lineage {
		if label := strings.TrimSpace(entry.Label); label != "" {
			out = append(out, label)
		}
	}
	return out
}

// Rank is a taxonomic rank. The authority sends it as {"label": "species"};
// a bare string is accepted too.
type Rank struct {
	Label string `json:"label"`
}

func (r *Rank) label() string {
	if r == nil {
		return ""
	}
	return r.Label
}

// UnmarshalJSON accepts either a string or an object with a label.
func (r *Rank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Label = s
		return nil
	}
	var obj struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode rank: %w", err)
	}
	r.Label = obj.Label
	return nil
}

// LineageEntry is one ancestor in a flattened lineage. The authority may
// send a plain name or a node bearing a label; both decode to Label and the
// original form is written back unchanged.
type LineageEntry struct {
	Label string

	raw json.RawMessage
}

// NewLineage builds a lineage from plain ancestor names.
func NewLineage(labels ...string) []LineageEntry {
	out := make([]LineageEntry, len(labels))
	for i, l := range labels {
		out[i] = LineageEntry{Label: l}
	}
	return out
}

// UnmarshalJSON accepts a string, or an object with "label" (or
// "dcterms:title") naming the ancestor.
func (l *LineageEntry) UnmarshalJSON(data []byte) error {
	l.raw = append(json.RawMessage(nil), data...)

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.Label = s
		return nil
	}

	var obj struct {
		Label string `json:"label"`
		Title string `json:"dcterms:title"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode lineage entry: %w", err)
	}
	l.Label = obj.Label
	if l.Label == "" {
		l.Label = obj.Title
	}
	return nil
}

// MarshalJSON writes the original form when known, else the plain name.
func (l LineageEntry) MarshalJSON() ([]byte, error) {
	if len(l.raw) > 0 {
		return l.raw, nil
	}
	return json.Marshal(l.Label)
}
