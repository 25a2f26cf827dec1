// Package intercept captures the mutating operations performed on the
// subtree of a root and reports each one once, before it takes effect.
//
// An Interceptor is a dom.Tracer. Convenience operations of the dom
// package call lower-level ones, so the interceptor keeps a call depth and
// reports only the outermost mutating call of a synchronous chain.
package intercept

import (
	"log/slog"

	"github.com/hazyhaar/dommirror/address"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/registry"
)

// MutationFunc receives one captured operation. op is the operation path:
// one segment for an operation on target itself, two for an operation on
// one of its composite sub-objects. args are the live arguments.
type MutationFunc func(target *dom.Node, op []string, args []any)

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithRegistry replaces the default operation registry.
func WithRegistry(r *registry.Registry) Option {
	return func(i *Interceptor) { i.reg = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) { i.logger = l }
}

// Interceptor reports the mutations of one root. It is not safe for
// concurrent use; like the tree it watches, it belongs to one goroutine.
type Interceptor struct {
	root       *dom.Node
	doc        *dom.Document
	reg        *registry.Registry
	onMutation MutationFunc
	logger     *slog.Logger

	depth    int
	attached bool
}

// Attach starts reporting the mutations of root's subtree, shadow roots
// and template contents included, to onMutation.
func Attach(root *dom.Node, onMutation MutationFunc, opts ...Option) *Interceptor {
	i := &Interceptor{
		root:       root,
		doc:        root.OwnerDocument(),
		reg:        registry.Default(),
		onMutation: onMutation,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(i)
	}
	i.doc.AddTracer(i)
	i.attached = true
	i.logger.Debug("intercept: attached", "root", root.Category)
	return i
}

// Detach stops reporting. It is idempotent.
func (i *Interceptor) Detach() {
	if !i.attached {
		return
	}
	i.doc.RemoveTracer(i)
	i.attached = false
}

// Root returns the observed root.
func (i *Interceptor) Root() *dom.Node { return i.root }

// Depth returns the current nesting depth of mutating calls.
func (i *Interceptor) Depth() int { return i.depth }

// Enter implements dom.Tracer.
func (i *Interceptor) Enter(target *dom.Node, op dom.Op, args []any) func() {
	if !i.reg.IsMutating(target.Interface(), op.Path, registry.Kind(op.Kind.String())) {
		return func() {}
	}
	i.depth++
	exit := func() { i.depth-- }
	if i.depth != 1 || !address.Contains(i.root, target) {
		return exit
	}
	i.onMutation(target, append([]string(nil), op.Path...), append([]any(nil), args...))
	return exit
}

// Lifecycle implements dom.Tracer. A connected hook runs at depth zero so
// the mutations it performs are reported even when the hook fires inside
// another captured operation.
func (i *Interceptor) Lifecycle(_ *dom.Node, hook func()) {
	saved := i.depth
	i.depth = 0
	defer func() { i.depth = saved }()
	hook()
}

// ShadowInit implements dom.Tracer. Shadow roots are always attached open
// so their content stays readable.
func (i *Interceptor) ShadowInit(host *dom.Node, init dom.ShadowRootInit) dom.ShadowRootInit {
	if init.Mode != dom.ShadowOpen && address.Contains(i.root, host) {
		i.logger.Debug("intercept: forcing open shadow root", "host", host.TagName(), "requested", init.Mode)
	}
	init.Mode = dom.ShadowOpen
	return init
}
