// Package authority provides clients for the taxonomy authority that
// resolves free-text labels to taxa.
package authority

import (
	"context"

	"github.com/c360studio/evorao/taxonomy"
)

// Client resolves labels against the authority.
type Client interface {
	// ResolveToLatest resolves label to its entity in the latest taxonomy
	// release. A nil result with a nil error means the authority has no
	// entry for the label.
	ResolveToLatest(ctx context.Context, label string) (*taxonomy.Result, error)
}

// Factory creates a client handle. Concurrent resolvers call it once per
// task so that no client state is shared between workers.
type Factory func() (Client, error)
