package taxonomy

import "strings"

// Authority describes the taxonomy service taxon nodes are resolved against.
type Authority struct {
	// Name titles the taxonomy version node, e.g. "ICTV".
	Name string

	// Provenance is recorded on every taxonomy version node.
	Provenance string
}

// DefaultAuthority returns the ICTV authority description.
func DefaultAuthority() Authority {
	return Authority{
		Name:       "ICTV",
		Provenance: "Resolved to the latest ICTV release through the ICTV OLS taxonomy service",
	}
}

// Canonicalizer builds taxon nodes from authority entities.
type Canonicalizer struct {
	authority Authority
}

// NewCanonicalizer creates a Canonicalizer for the given authority.
func NewCanonicalizer(authority Authority) *Canonicalizer {
	return &Canonicalizer{authority: authority}
}

// Canonicalize builds the taxon node for ent. originalLabel is the label that
// was resolved; existing is the record's taxon node before enrichment, or nil.
//
// The node is rebuilt from scratch: only the existing node's identifier and
// alternate names are carried over. The result depends on nothing but the
// arguments, so repeated runs over the same inputs produce the same node.
func (c *Canonicalizer) Canonicalize(ent *Entity, originalLabel string, existing *TaxonNode) *TaxonNode {
	originalLabel = strings.TrimSpace(originalLabel)

	node := &TaxonNode{
		Title:          ent.Label,
		TaxonomicID:    ent.ICTVID,
		AuthorityIRI:   ent.IRI,
		AuthorityCURIE: ent.Curie,
	}
	if node.Title == "" {
		node.Title = originalLabel
	}

	if existing != nil {
		node.ID = existing.ID
	}

	if ent.MSL != "" {
		node.Version = &TaxonomyVersion{
			Title:      c.authority.Name,
			Version:    ent.MSL,
			Provenance: c.authority.Provenance,
		}
		// Ranks are only meaningful within a taxonomy version.
		if rank := ent.RankLabel(); rank != "" {
			version := *node.Version
			node.Rank = &TaxonomicRank{Title: rank, Taxonomy: &version}
		}
	}

	if ent.DirectParentLabel != "" {
		node.Parent = &TaxonStub{Title: ent.DirectParentLabel}
	}

	names := make([]string, 0, len(ent.Synonyms)+1)
	names = append(names, ent.Synonyms...)
	if originalLabel != "" && originalLabel != node.Title {
		names = append(names, originalLabel)
	}
	if existing != nil {
		names = append(names, existing.AlternateTitles()...)
	}
	for _, title := range uniqueNonEmpty(names) {
		node.AlternateNames = append(node.AlternateNames, AlternateName{Title: title})
	}

	if lineage := ent.LineageLabels(); len(lineage) > 0 {
		node.Lineage = lineage
	}

	return node
}

// uniqueNonEmpty trims values and drops empties and repeats, keeping the
// first occurrence.
func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
