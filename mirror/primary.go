// Package mirror replicates a live dom tree into a separate replica tree.
//
// A Primary observes a root through an intercept.Interceptor, turns every
// outermost mutating operation into a mutation.Record and delivers the
// records in order through a transport.Sink. A Replica replays the records
// against its own document with a patch.Applier. A Hub keeps one Replica
// per root ID behind a transport.Receiver.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/dommirror/address"
	"github.com/hazyhaar/dommirror/codec"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/idgen"
	"github.com/hazyhaar/dommirror/intercept"
	"github.com/hazyhaar/dommirror/mutation"
	"github.com/hazyhaar/dommirror/registry"
	"github.com/hazyhaar/dommirror/transport"
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("mirror: primary closed")
	// ErrStalled is returned while delivery is stopped. Records are dropped
	// until the next Sync.
	ErrStalled = errors.New("mirror: delivery stalled")
)

// Option configures a Primary.
type Option func(*Primary)

// WithRootID names the root on the wire. Default: a generated UUIDv7.
func WithRootID(id string) Option {
	return func(p *Primary) { p.id = id }
}

// WithQueueSize bounds the records waiting for delivery. A mutating
// operation blocks while the queue is full and Run is delivering.
// Default: 1024.
func WithQueueSize(n int) Option {
	return func(p *Primary) { p.queueSize = n }
}

// WithRegistry overrides the operation registry.
func WithRegistry(r *registry.Registry) Option {
	return func(p *Primary) { p.reg = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Primary) { p.logger = l }
}

// queued is an envelope with the sync generation it was recorded in.
type queued struct {
	env mutation.Envelope
	gen uint64
}

// Primary is the observed side of a mirror.
type Primary struct {
	id        string
	root      *dom.Node
	sink      transport.Sink
	reg       *registry.Registry
	queueSize int
	logger    *slog.Logger

	icpt  *intercept.Interceptor
	queue chan queued
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	running bool
	gen     uint64
	stalled chan struct{}
	err     error
	warned  bool
	skipped int
	dropped int
}

// NewPrimary attaches to root and starts recording. Records are queued
// until Run delivers them to sink. The root is a document or an element.
func NewPrimary(root *dom.Node, sink transport.Sink, opts ...Option) (*Primary, error) {
	p := &Primary{
		root:      root,
		sink:      sink,
		queueSize: 1024,
		logger:    slog.Default(),
		done:      make(chan struct{}),
		stalled:   make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	if root.Category != dom.CategoryDocument && root.Category != dom.CategoryElement {
		return nil, fmt.Errorf("mirror: root %s: %w", root.Category, codec.ErrUnsupportedNode)
	}
	if p.id == "" {
		p.id = idgen.Root()
	}
	if err := idgen.ValidRoot(p.id); err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	if p.queueSize <= 0 {
		p.queueSize = 1024
	}
	if root.Category == dom.CategoryDocument && (root.FirstChild() == nil || root.FirstChild().Category != dom.CategoryDoctype) {
		p.logger.Warn("mirror: document root without doctype, replica markup will carry one", "root", p.id)
	}
	p.logger = p.logger.With("root", p.id)
	p.queue = make(chan queued, p.queueSize)

	iopts := []intercept.Option{intercept.WithLogger(p.logger)}
	if p.reg != nil {
		iopts = append(iopts, intercept.WithRegistry(p.reg))
	}
	p.icpt = intercept.Attach(root, p.record, iopts...)
	return p, nil
}

// ID returns the root ID carried by every envelope.
func (p *Primary) ID() string { return p.id }

// Root returns the observed root.
func (p *Primary) Root() *dom.Node { return p.root }

// Skipped returns the number of operations that could not be recorded.
func (p *Primary) Skipped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Dropped returns the number of records lost because delivery had stopped
// or the primary was closed.
func (p *Primary) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Err returns the error that stopped delivery, or nil.
func (p *Primary) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Primary) record(target *dom.Node, op []string, args []any) {
	path := address.GetPath(target, p.root)
	if path == nil {
		p.skip("mirror: unaddressable target", "op", op, "node", target.NodeName())
		return
	}
	enc, err := codec.EncodeArguments(args, p.root)
	if err != nil {
		p.skip("mirror: arguments not encodable", "op", op, "error", err)
		return
	}
	env := mutation.Envelope{
		Type:   mutation.TypeRecord,
		Root:   p.id,
		ID:     idgen.Envelope(),
		Record: &mutation.Record{TargetPath: path, Prop: mutation.OpPath(op), Args: enc},
	}
	if err := p.enqueue(env); err != nil {
		p.drop(op, err)
	}
}

func (p *Primary) skip(msg string, attrs ...any) {
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()
	p.logger.Error(msg, attrs...)
}

func (p *Primary) drop(op []string, err error) {
	p.mu.Lock()
	p.dropped++
	first := !p.warned
	p.warned = true
	p.mu.Unlock()
	if first {
		p.logger.Error("mirror: dropping records until sync", "op", op, "error", err)
		return
	}
	p.logger.Debug("mirror: record dropped", "op", op, "error", err)
}

// enqueue waits for room in the queue. It gives up when delivery stalls
// or the primary is closed.
func (p *Primary) enqueue(env mutation.Envelope) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrStalled, err)
	}
	q := queued{env: env, gen: p.gen}
	stalled := p.stalled
	p.mu.Unlock()

	select {
	case p.queue <- q:
		return nil
	case <-stalled:
		return fmt.Errorf("%w: %w", ErrStalled, p.Err())
	case <-p.done:
		return ErrClosed
	}
}

// stall records err as the reason delivery stopped and wakes blocked
// writers.
func (p *Primary) stall(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
		close(p.stalled)
	}
	return err
}

// Sync queues a snapshot of the root. A replica receiving it rebuilds its
// tree, so Sync is the way to start a replica or to recover one that
// diverged. After a stall, Sync discards what is still queued and lets
// Run deliver again.
func (p *Primary) Sync() error {
	snap, err := codec.EncodeRoot(p.root)
	if err != nil {
		return fmt.Errorf("mirror: sync: %w", err)
	}

	p.mu.Lock()
	if p.err != nil {
		discarded := 0
	drain:
		for {
			select {
			case <-p.queue:
				discarded++
			default:
				break drain
			}
		}
		p.gen++
		p.err = nil
		p.warned = false
		p.stalled = make(chan struct{})
		p.logger.Info("mirror: resync after stall", "discarded", discarded, "dropped", p.dropped)
	}
	p.mu.Unlock()

	env := mutation.Envelope{Type: mutation.TypeSnapshot, Root: p.id, ID: idgen.Envelope(), Snapshot: snap}
	if err := p.enqueue(env); err != nil {
		return fmt.Errorf("mirror: sync: %w", err)
	}
	p.logger.Info("mirror: sync queued", "node", p.root.NodeName())
	return nil
}

// Run delivers queued envelopes to the sink in order until Close has been
// called and the queue is drained, or until ctx is done. A delivery error
// or the end of ctx stalls the primary: Run returns, records are dropped
// and Run refuses to start again until a Sync.
func (p *Primary) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("mirror: run: already running")
	}
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return fmt.Errorf("mirror: run: %w: %w", ErrStalled, err)
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return p.stall(ctx.Err())
		case q := <-p.queue:
			if err := p.deliver(ctx, q); err != nil {
				return err
			}
		case <-p.done:
			for {
				select {
				case q := <-p.queue:
					if err := p.deliver(ctx, q); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

func (p *Primary) deliver(ctx context.Context, q queued) error {
	p.mu.Lock()
	stale := q.gen != p.gen
	p.mu.Unlock()
	if stale {
		p.logger.Debug("mirror: stale envelope discarded", "type", q.env.Type, "id", q.env.ID)
		return nil
	}
	if err := p.sink.Send(ctx, q.env); err != nil {
		p.logger.Error("mirror: delivery failed", "type", q.env.Type, "id", q.env.ID, "error", err)
		return p.stall(fmt.Errorf("mirror: deliver %s %s: %w", q.env.Type, q.env.ID, err))
	}
	return nil
}

// Close detaches from the root and wakes writers blocked on a full queue.
// Envelopes already queued are still delivered by Run.
func (p *Primary) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.icpt.Detach()
	close(p.done)
}
