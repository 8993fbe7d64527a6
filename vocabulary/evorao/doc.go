// Package evorao provides the JSON-LD vocabulary used by EVORAO service records.
//
// Records are exchanged as compacted JSON-LD documents, so every key below is a
// prefixed term ("EVORAO:taxon", "dcterms:title") rather than a full IRI. The
// prefixes resolve through the document @context; DefaultContext returns the
// context used when a document carries none.
package evorao
