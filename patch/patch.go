// Package patch replays mutation records onto a replica tree.
//
// Apply resolves the record's target, walks to the composite sub-object
// when the operation path has two segments, decodes the arguments and
// dispatches: a method when the name is callable, otherwise a declared
// setter, otherwise a plain property assignment (or deletion when the
// record carries no argument).
//
// Replaying is not idempotent. Records must arrive exactly once and in
// emission order.
package patch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/dommirror/address"
	"github.com/hazyhaar/dommirror/codec"
	"github.com/hazyhaar/dommirror/dom"
	"github.com/hazyhaar/dommirror/mutation"
)

var (
	// ErrNoSuchProperty is returned when an intermediate segment of the
	// operation path does not lead to a sub-object.
	ErrNoSuchProperty = errors.New("patch: no such property")
	// ErrNotCallable is returned when the final segment is neither a
	// method, a setter nor an assignable property of the resolved object.
	ErrNotCallable = errors.New("patch: operation not callable")
	// ErrBadArgument is returned when a decoded argument does not fit the
	// operation.
	ErrBadArgument = errors.New("patch: bad argument")
	// ErrRefused is returned when the target and arguments resolved but the
	// tree refused the operation itself. The primary recorded the call
	// before running it, so it failed there the same way and both trees
	// are still alike.
	ErrRefused = errors.New("patch: operation refused")
)

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// Applier applies records to the subtree of one replica root. It is not
// safe for concurrent use.
type Applier struct {
	root   *dom.Node
	dec    *codec.Decoder
	logger *slog.Logger
}

// New returns an Applier for root.
func New(root *dom.Node, opts ...Option) *Applier {
	a := &Applier{root: root, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	a.dec = codec.NewDecoder(root, a.logger)
	return a
}

// Root returns the replica root.
func (a *Applier) Root() *dom.Node { return a.root }

// Apply replays one record. A target that cannot be resolved means the
// replica has diverged; the error wraps address.ErrUnresolvable. An
// operation the tree itself rejects wraps ErrRefused.
func (a *Applier) Apply(rec mutation.Record) error {
	op := strings.Join(rec.Prop, ".")
	target, err := address.GetNodeByPath(a.root, rec.TargetPath)
	if err != nil {
		return fmt.Errorf("patch: %s: %w", op, err)
	}

	var obj any = target
	var comp *composite
	switch len(rec.Prop) {
	case 1:
	case 2:
		c, ok := composites[rec.Prop[0]]
		if !ok {
			return fmt.Errorf("patch: %s on %s: %w", op, target.Interface(), ErrNoSuchProperty)
		}
		if obj, ok = c.get(target); !ok {
			return fmt.Errorf("patch: %s on %s: %w", op, target.Interface(), ErrNoSuchProperty)
		}
		comp = c
	default:
		return fmt.Errorf("patch: operation path %q: %w", op, ErrNoSuchProperty)
	}

	decoded, err := a.dec.DecodeArguments(rec.Args)
	if err != nil {
		return fmt.Errorf("patch: %s: %w", op, err)
	}
	name := rec.Prop[len(rec.Prop)-1]
	if comp != nil {
		err = comp.dispatch(obj, name, args(decoded))
	} else {
		err = dispatchNode(target, name, args(decoded))
	}
	if err != nil {
		if !errors.Is(err, ErrBadArgument) && !errors.Is(err, ErrNotCallable) {
			return fmt.Errorf("patch: %s on %s %s: %w: %w", op, target.Interface(), rec.TargetPath, ErrRefused, err)
		}
		return fmt.Errorf("patch: %s on %s %s: %w", op, target.Interface(), rec.TargetPath, err)
	}
	a.logger.Debug("patch: applied", "op", op, "target", rec.TargetPath.String())
	return nil
}

// propertyBag is implemented by objects accepting arbitrary property
// assignment and deletion.
type propertyBag interface {
	AssignProp(name string, v any) error
	DeleteProp(name string) error
}

func assignOrDelete(obj any, name string, a args) error {
	bag, ok := obj.(propertyBag)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotCallable)
	}
	if len(a) == 0 {
		return bag.DeleteProp(name)
	}
	return bag.AssignProp(name, a[0])
}

func dispatchNode(n *dom.Node, name string, a args) error {
	if m, ok := nodeMethods[name]; ok {
		return m(n, a)
	}
	if s, ok := nodeSetters[name]; ok {
		if err := a.need(0); err != nil {
			return err
		}
		return s(n, a)
	}
	return assignOrDelete(n, name, a)
}
