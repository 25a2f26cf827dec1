package transport

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/dommirror/mutation"
)

// Router fans envelopes out to every sink. One sink failing does not stop
// the others: errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, env mutation.Envelope) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, env); err != nil {
			r.logger.Warn("transport: send failed", "type", env.Type, "root", env.Root, "id", env.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
