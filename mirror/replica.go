package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/dommirror/codec"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mutation"
	"github.com/hazyhaar/dommirror/patch"
	"github.com/hazyhaar/dommirror/transport"
)

// Replica is the replaying side of a mirror. Its methods are safe for
// concurrent use; records are applied one at a time.
type Replica struct {
	mu      sync.Mutex
	doc     *dom.Document
	root    *dom.Node
	applier *patch.Applier
	applied int
	refused int
	logger  *slog.Logger
}

// NewReplica replays records against the document node of doc until a
// Sync installs another root.
func NewReplica(doc *dom.Document, logger *slog.Logger) *Replica {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Replica{logger: logger}
	r.install(doc, doc.Node())
	return r
}

func (r *Replica) install(doc *dom.Document, root *dom.Node) {
	r.doc = doc
	r.root = root
	r.applier = patch.New(root, patch.WithLogger(r.logger))
}

// Document returns the replica document. Callers must not mutate it while
// records are applied. A Sync replaces it.
func (r *Replica) Document() *dom.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// Root returns the node records are applied against: the document node,
// or the host element rebuilt from an element root.
func (r *Replica) Root() *dom.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// Applied returns the number of records applied since the last Sync.
func (r *Replica) Applied() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Refused returns the number of records whose operation the replica tree
// rejected since the last Sync.
func (r *Replica) Refused() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refused
}

// Apply replays one record. An operation the tree rejects was rejected
// the same way on the primary, which recorded it before running it: it is
// logged and counted, and replication goes on.
func (r *Replica) Apply(rec mutation.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.applier.Apply(rec); err != nil {
		if !errors.Is(err, patch.ErrRefused) {
			return err
		}
		r.refused++
		r.logger.Warn("mirror: operation refused on both sides", "op", rec.Prop.String(), "target", rec.TargetPath.String(), "error", err)
	}
	r.applied++
	return nil
}

// Sync rebuilds the replica from a snapshot. A DocumentFragment becomes
// the children of a new document behind a doctype. An element becomes the
// only child of a new document's body and the root of later records. The
// current document is kept when the snapshot cannot be rebuilt.
func (r *Replica) Sync(snap mutation.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts := []dom.Option{dom.WithURL(r.doc.Location().Href())}
	if r.doc.InertScripts() {
		opts = append(opts, dom.WithInertScripts())
	}

	var doc *dom.Document
	var root *dom.Node
	switch snap.(type) {
	case mutation.FragmentSnapshot:
		doc = dom.NewDocument(opts...)
		root = doc.Node()
		if _, err := root.AppendChild(doc.CreateDocumentType("html")); err != nil {
			return fmt.Errorf("mirror: sync: %w", err)
		}
		frag, err := codec.NewDecoder(root, r.logger).DecodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("mirror: sync: %w", err)
		}
		for _, c := range frag.Children() {
			if c.Category != dom.CategoryElement && c.Category != dom.CategoryComment {
				return fmt.Errorf("mirror: sync: %s under a document: %w", c.Category, mutation.ErrMalformed)
			}
		}
		if err := root.Append(frag); err != nil {
			return fmt.Errorf("mirror: sync: %w", err)
		}
	case mutation.ElementSnapshot, mutation.TemplateSnapshot:
		doc = dom.NewHTMLDocument(opts...)
		el, err := codec.NewDecoder(doc.Node(), r.logger).DecodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("mirror: sync: %w", err)
		}
		if _, err := doc.Body().AppendChild(el); err != nil {
			return fmt.Errorf("mirror: sync: %w", err)
		}
		root = el
	default:
		return fmt.Errorf("mirror: sync with %T: %w", snap, mutation.ErrMalformed)
	}

	r.install(doc, root)
	r.applied = 0
	r.refused = 0
	return nil
}

// Deliver applies a record envelope or synchronises on a snapshot envelope.
func (r *Replica) Deliver(_ context.Context, env mutation.Envelope) error {
	switch env.Type {
	case mutation.TypeSnapshot:
		return r.Sync(env.Snapshot)
	case mutation.TypeRecord:
		if env.Record == nil {
			return fmt.Errorf("mirror: record envelope %s: %w", env.ID, mutation.ErrMalformed)
		}
		return r.Apply(*env.Record)
	}
	return fmt.Errorf("mirror: envelope type %q: %w", env.Type, mutation.ErrMalformed)
}

// Markup renders the replica document.
func (r *Replica) Markup() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	if err := dom.Render(&b, r.doc.Node()); err != nil {
		return "", err
	}
	return b.String(), nil
}

// HubConfig configures a Hub.
type HubConfig struct {
	// InertScripts neutralises script elements of every replica document.
	InertScripts bool
	Logger       *slog.Logger
}

// Hub keeps one Replica per root ID. It implements transport.Replicas.
type Hub struct {
	cfg    HubConfig
	mu     sync.Mutex
	reps   map[string]*Replica
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Hub{cfg: cfg, reps: make(map[string]*Replica), logger: cfg.Logger}
}

// Replica returns the replica of root.
func (h *Hub) Replica(root string) (*Replica, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.reps[root]
	return r, ok
}

// Roots returns the number of replicas.
func (h *Hub) Roots() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reps)
}

// Deliver routes env to the replica of env.Root. A snapshot creates the
// replica on first sight; a record for an unknown root is refused.
func (h *Hub) Deliver(ctx context.Context, env mutation.Envelope) error {
	h.mu.Lock()
	r, ok := h.reps[env.Root]
	if !ok && env.Type == mutation.TypeSnapshot {
		var opts []dom.Option
		if h.cfg.InertScripts {
			opts = append(opts, dom.WithInertScripts())
		}
		r = NewReplica(dom.NewHTMLDocument(opts...), h.logger.With("root", env.Root))
		h.reps[env.Root] = r
		ok = true
		h.logger.Info("mirror: replica created", "root", env.Root)
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("mirror: root %q: %w", env.Root, transport.ErrUnknownRoot)
	}
	return r.Deliver(ctx, env)
}

// Markup renders the replica of root.
func (h *Hub) Markup(root string) (string, error) {
	r, ok := h.Replica(root)
	if !ok {
		return "", fmt.Errorf("mirror: root %q: %w", root, transport.ErrUnknownRoot)
	}
	return r.Markup()
}
