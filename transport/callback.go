package transport

import (
	"context"

	"github.com/hazyhaar/dommirror/mutation"
)

// EnvelopeFunc is called for each envelope.
type EnvelopeFunc func(ctx context.Context, env mutation.Envelope) error

// Callback delivers envelopes via a Go function call, without
// serialisation. It links a primary and a replica living in one process.
type Callback struct {
	fn EnvelopeFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn EnvelopeFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, env mutation.Envelope) error {
	if c.fn != nil {
		return c.fn(ctx, env)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
