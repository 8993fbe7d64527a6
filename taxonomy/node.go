package taxonomy

import (
	"strings"

	"github.com/c360studio/evorao/vocabulary/evorao"
)

// TaxonNode is the taxon attached to a record's pathogen identification.
type TaxonNode struct {
	// ID is the record-level identifier (@id) of the node, if any.
	ID string

	Title          string
	TaxonomicID    string
	AuthorityIRI   string
	AuthorityCURIE string

	Version        *TaxonomyVersion
	Rank           *TaxonomicRank
	Parent         *TaxonStub
	AlternateNames []AlternateName
	Lineage        []string
}

// TaxonomyVersion names the authority release a taxon was taken from.
type TaxonomyVersion struct {
	Title      string
	Version    string
	Provenance string
}

// TaxonomicRank is a rank within a specific taxonomy version.
type TaxonomicRank struct {
	Title    string
	Taxonomy *TaxonomyVersion
}

// TaxonStub references a taxon by title only.
type TaxonStub struct {
	Title string
}

// AlternateName is another name a taxon is known by.
type AlternateName struct {
	Title string
}

// ParseTaxonNode reads a taxon node from a decoded JSON-LD value. It returns
// nil when v is not an object. Only the fields enrichment carries forward are
// read: identifier, title, taxonomic id, IRI, alternate names and lineage.
func ParseTaxonNode(v any) *TaxonNode {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	node := &TaxonNode{
		ID:             stringValue(m[evorao.KeyID]),
		Title:          evorao.TitleOf(m),
		TaxonomicID:    stringValue(m[evorao.TaxonomicID]),
		AuthorityIRI:   stringValue(m[evorao.AuthorityIRI]),
		AuthorityCURIE: stringValue(m[evorao.AuthorityCURIE]),
	}

	for _, item := range asList(m[evorao.AlternateName]) {
		var title string
		switch alt := item.(type) {
		case string:
			title = alt
		case map[string]any:
			title = evorao.TitleOf(alt)
		}
		if title = strings.TrimSpace(title); title != "" {
			node.AlternateNames = append(node.AlternateNames, AlternateName{Title: title})
		}
	}

	for _, item := range asList(m[evorao.Lineage]) {
		if s := strings.TrimSpace(stringValue(item)); s != "" {
			node.Lineage = append(node.Lineage, s)
		}
	}

	return node
}

// AlternateTitles returns the titles of the node's alternate names.
func (n *TaxonNode) AlternateTitles() []string {
	out := make([]string, len(n.AlternateNames))
	for i, alt := range n.AlternateNames {
		out[i] = alt.Title
	}
	return out
}

// Document renders the node as a JSON-LD object. Every call builds new maps,
// so the rank's taxonomy version never aliases the node's.
func (n *TaxonNode) Document() map[string]any {
	doc := map[string]any{
		evorao.KeyType: evorao.TypeTaxon,
		evorao.Title:   n.Title,
	}

	if n.ID != "" {
		doc[evorao.KeyID] = n.ID
	}
	if n.TaxonomicID != "" {
		doc[evorao.TaxonomicID] = n.TaxonomicID
	}
	if n.AuthorityIRI != "" {
		doc[evorao.AuthorityIRI] = n.AuthorityIRI
	}
	if n.AuthorityCURIE != "" {
		doc[evorao.AuthorityCURIE] = n.AuthorityCURIE
	}
	if n.Version != nil {
		doc[evorao.TaxonomyVersion] = n.Version.document()
	}
	if n.Rank != nil {
		rank := map[string]any{
			evorao.KeyType: evorao.TypeTaxonomicRank,
			evorao.Title:   n.Rank.Title,
		}
		if n.Rank.Taxonomy != nil {
			rank[evorao.TaxonomyVersion] = n.Rank.Taxonomy.document()
		}
		doc[evorao.TaxonomicRank] = rank
	}
	if n.Parent != nil {
		doc[evorao.ParentTaxon] = map[string]any{
			evorao.KeyType: evorao.TypeTaxon,
			evorao.Title:   n.Parent.Title,
		}
	}
	if len(n.AlternateNames) > 0 {
		alts := make([]any, len(n.AlternateNames))
		for i, alt := range n.AlternateNames {
			alts[i] = map[string]any{
				evorao.KeyType: evorao.TypeAlternateName,
				evorao.Title:   alt.Title,
			}
		}
		doc[evorao.AlternateName] = alts
	}
	if len(n.Lineage) > 0 {
		lineage := make([]any, len(n.Lineage))
		for i, l := range n.Lineage {
			lineage[i] = l
		}
		doc[evorao.Lineage] = lineage
	}

	return doc
}

func (v *TaxonomyVersion) document() map[string]any {
	doc := map[string]any{
		evorao.KeyType: evorao.TypeTaxonomyVersion,
		evorao.Title:   v.Title,
		evorao.Version: v.Version,
	}
	if v.Provenance != "" {
		doc[evorao.Provenance] = v.Provenance
	}
	return doc
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}
