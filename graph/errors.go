package graph

import "errors"

// ErrNoGraph is returned for a document without a top-level @graph list.
var ErrNoGraph = errors.New("document has no @graph list")
