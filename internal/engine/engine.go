// Package engine defines the boundary to the external answer engine.
// The pipeline treats answering as an opaque operation with
// unspecified latency; everything behind this interface (retrieval,
// prompting, the model call) is a collaborator, not core.
package engine

import "context"

// Engine produces an answer for a free-text question. Implementations
// may take arbitrarily long; callers bound latency externally if they
// need to.
type Engine interface {
	// Compute returns the answer for the given text, or an error if
	// the engine fails. A returned error is terminal for the task
	// being processed; the pipeline does not retry it.
	Compute(ctx context.Context, text string) (string, error)
}
