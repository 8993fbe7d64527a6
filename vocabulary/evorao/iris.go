package evorao

// Namespace is the base IRI of the EVORAO ontology.
const Namespace = "https://w3id.org/evorao/"

// SearchNamespace is the base IRI of the portal search vocabulary.
const SearchNamespace = "https://w3id.org/evorao/search#"

// Standard namespace IRIs referenced by EVORAO documents.
const (
	DublinCoreNamespace = "http://purl.org/dc/terms/"
	DCATNamespace       = "http://www.w3.org/ns/dcat#"
)

// DefaultContext returns the @context block written when no input document
// supplies one. A fresh map is returned on every call.
func DefaultContext() map[string]any {
	return map[string]any{
		"@vocab":  Namespace,
		"EVORAO":  Namespace,
		"dcterms": DublinCoreNamespace,
		"dct":     DublinCoreNamespace,
		"dcat":    DCATNamespace,
		"search":  SearchNamespace,
	}
}
