package evorao

import "strings"

// JSON-LD keywords.
const (
	KeyID      = "@id"
	KeyType    = "@type"
	KeyGraph   = "@graph"
	KeyContext = "@context"
)

// Dublin Core terms. Some sources abbreviate the prefix to "dct".
const (
	Title    = "dcterms:title"
	TitleAlt = "dct:title"

	// Provenance records how a taxonomy version node was obtained.
	Provenance = "dcterms:provenance"
)

// Pathogen identification terms.
const (
	// PathogenIdentification holds the pathogen block of a service record.
	PathogenIdentification = "EVORAO:pathogenIdentification"

	// PathogenName is the free-text virus name given by the source catalogue.
	PathogenName = "EVORAO:pathogenName"

	// Taxon is the taxon node embedded in a pathogen identification.
	Taxon = "EVORAO:taxon"
)

// Taxon node terms.
const (
	TaxonomicID     = "EVORAO:taxonomicId"
	TaxonomyVersion = "EVORAO:taxonomyVersion"
	Version         = "EVORAO:version"
	TaxonomicRank   = "EVORAO:taxonomicRank"
	ParentTaxon     = "EVORAO:parentTaxon"
	AlternateName   = "EVORAO:alternateName"
	Lineage         = "EVORAO:lineage"

	// AuthorityIRI links the taxon to the authority's own page for it.
	AuthorityIRI = "EVORAO:ictvIri"
	// AuthorityCURIE is the compact form of the authority identifier.
	AuthorityCURIE = "EVORAO:ictvCurie"
)

// Search index terms maintained by enrichment.
const (
	// Keyword is the DCAT keyword list. Append-only.
	Keyword = "dcat:keyword"

	// SearchTaxon lists every label a taxon can be found by. Append-only.
	SearchTaxon = "search:taxon"

	// SearchTaxonLabel holds the canonical taxon title. Overwritten on every run.
	SearchTaxonLabel = "search:taxonLabel"
)

// Node types.
const (
	TypeTaxon           = "EVORAO:Taxon"
	TypeAlternateName   = "EVORAO:AlternateName"
	TypeTaxonomyVersion = "EVORAO:TaxonomyVersion"
	TypeTaxonomicRank   = "EVORAO:TaxonomicRank"
)

// TitleOf returns the node's dcterms:title, falling back to dct:title. Titles
// are trimmed; non-string values count as absent.
func TitleOf(node map[string]any) string {
	if node == nil {
		return ""
	}
	if s, ok := node[Title].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	s, _ := node[TitleAlt].(string)
	return strings.TrimSpace(s)
}
