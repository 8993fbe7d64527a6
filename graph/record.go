package graph

import (
	"github.com/c360studio/evorao/vocabulary/evorao"
)

// Record is one node of the graph. Only the pathogen identification block
// and the search fields are interpreted; everything else is opaque.
type Record map[string]any

// ID returns the node's @id, or "".
func (r Record) ID() string {
	id, _ := r[evorao.KeyID].(string)
	return id
}

// PathogenIdentification returns the pathogen block, or nil when the record
// has none or it is not an object.
func (r Record) PathogenIdentification() map[string]any {
	pid, _ := r[evorao.PathogenIdentification].(map[string]any)
	return pid
}

// PathogenNameTitle returns the trimmed title of the pathogen name, or "".
func (r Record) PathogenNameTitle() string {
	pn, _ := r.PathogenIdentification()[evorao.PathogenName].(map[string]any)
	return evorao.TitleOf(pn)
}

// Taxon returns the taxon node of the pathogen block, or nil.
func (r Record) Taxon() map[string]any {
	taxon, _ := r.PathogenIdentification()[evorao.Taxon].(map[string]any)
	return taxon
}

// TaxonTitle returns the trimmed title of the taxon node, or "".
func (r Record) TaxonTitle() string {
	return evorao.TitleOf(r.Taxon())
}

// SetTaxon replaces the taxon node. It reports false, changing nothing, when
// the record has no pathogen block.
func (r Record) SetTaxon(node map[string]any) bool {
	pid := r.PathogenIdentification()
	if pid == nil {
		return false
	}
	pid[evorao.Taxon] = node
	return true
}

// StringList returns the string values of key. A scalar string counts as a
// one-element list.
func (r Record) StringList(key string) []string {
	switch v := r[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

// AppendUnique appends each value not already present to the list at key.
// A scalar already stored at key becomes the first element of the list.
// Existing entries are never removed. It returns the number appended.
func (r Record) AppendUnique(key string, values ...string) int {
	var list []any
	switch v := r[key].(type) {
	case nil:
	case []any:
		list = v
	case []string:
		for _, s := range v {
			list = append(list, s)
		}
	default:
		list = []any{v}
	}

	present := make(map[string]bool, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			present[s] = true
		}
	}

	added := 0
	for _, s := range values {
		if s == "" || present[s] {
			continue
		}
		present[s] = true
		list = append(list, s)
		added++
	}
	if list != nil {
		r[key] = list
	}
	return added
}

// SetString overwrites key with a single string value.
func (r Record) SetString(key, value string) {
	r[key] = value
}
