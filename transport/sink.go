// Package transport carries envelopes from a primary to its replicas:
// sinks on the primary side (JSON lines, webhook, in-process callback,
// fan-out) and an HTTP receiver on the replica side.
//
// Replication needs every record delivered once and in emission order.
// Sinks send synchronously and the receiver applies a request's envelopes
// in body order; nothing reorders or deduplicates.
package transport

import (
	"context"

	"github.com/hazyhaar/dommirror/mutation"
)

// Sink delivers envelopes to one backend.
type Sink interface {
	Send(ctx context.Context, env mutation.Envelope) error
	Close() error
}
