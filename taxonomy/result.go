// Package taxonomy models taxonomy authority answers and the taxon nodes
// derived from them.
package taxonomy

import (
	"encoding/json"
)

// Status tags an authority answer.
type Status string

const (
	// StatusCurrent means the label names a taxon in the latest release.
	StatusCurrent Status = "current"

	// StatusObsolete means the label names a taxon that was abolished or
	// renamed. The replacement, when known, is carried in Result.Final.
	StatusObsolete Status = "obsolete"
)

// Result is the authority's raw answer for one label.
//
// A Result is immutable once obtained. The document it was decoded from is
// retained and written back verbatim, so fields this package does not model
// survive a cache round trip.
type Result struct {
	Status   Status  `json:"status"`
	Current  *Entity `json:"current,omitempty"`
	Obsolete *Entity `json:"obsolete,omitempty"`
	Final    *Entity `json:"final,omitempty"`

	raw json.RawMessage
}

// resultFields has the same layout as Result without its JSON methods.
type resultFields Result

// UnmarshalJSON decodes the result and keeps a copy of the source document.
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields resultFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Result(fields)
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the source document when there is one.
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(resultFields(r))
}

// Opaque wraps a document that could not be decoded as a Result. It keeps
// the document for persistence but never yields an entity.
func Opaque(raw json.RawMessage) *Result {
	return &Result{raw: append(json.RawMessage(nil), raw...)}
}

// Entity applies the obsolescence rule: a current result yields its current
// entity; an obsolete result yields its final replacement when present and
// the obsolete entity otherwise. Any other status, an empty entity or a nil
// result yields nil.
func (r *Result) Entity() *Entity {
	if r == nil {
		return nil
	}

	var ent *Entity
	switch r.Status {
	case StatusCurrent:
		ent = r.Current
	case StatusObsolete:
		ent = r.Final
		if ent.IsZero() {
			ent = r.Obsolete
		}
	}

	if ent.IsZero() {
		return nil
	}
	return ent
}
