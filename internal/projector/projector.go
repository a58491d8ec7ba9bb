// Package projector compiles selection plans into projections over source
// queries.
//
// A projection is built once per selection plan and element type:
//
//	proj := projector.New()
//	p, err := proj.Compile(root, shape.Object(person))
//	if err != nil {
//		return err // plan errors: nothing has been evaluated yet
//	}
//	people, err := p.Apply(ctx, source)
//
// Compile performs every shape check; Apply only composes the compiled
// closure into the source query, which stays lazy until iterated.
package projector

import (
	"context"
	"fmt"
	"time"

	"github.com/hanpama/projector/internal/eventbus"
	"github.com/hanpama/projector/internal/events"
	"github.com/hanpama/projector/internal/plan"
	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

// Projector compiles selection plans. It is safe for concurrent use.
type Projector struct {
	bus *eventbus.Bus
}

// Option configures a Projector.
type Option func(*Projector)

// WithBus publishes compile events on b instead of the global bus.
func WithBus(b *eventbus.Bus) Option {
	return func(p *Projector) { p.bus = b }
}

func New(opts ...Option) *Projector {
	p := &Projector{}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Projection is a compiled selection plan. It holds no per-application
// state and can be applied to any number of sources concurrently.
type Projection struct {
	// Plan is the projection plan, a query-to-query expression whose only
	// free input is Source.
	Plan   plan.Expr
	Source *plan.Input

	root *selection.Node
	elem *shape.Type
	fn   Func
}

// Project compiles root against the element type of src and applies it.
func (p *Projector) Project(ctx context.Context, src query.Query, root *selection.Node) (query.Query, error) {
	proj, err := p.CompileContext(ctx, root, src.ElementType())
	if err != nil {
		return nil, err
	}
	return proj.Apply(ctx, src)
}

// Compile builds and lowers the plan projecting a query of elem elements
// with root.
func (p *Projector) Compile(root *selection.Node, elem *shape.Type) (*Projection, error) {
	return p.CompileContext(context.Background(), root, elem)
}

// CompileContext is Compile with a context handed to event subscribers.
func (p *Projector) CompileContext(ctx context.Context, root *selection.Node, elem *shape.Type) (*Projection, error) {
	start := time.Now()
	publish(ctx, p.bus, events.CompileStart{Selection: root.String(), ElementType: elem.String()})

	proj, err := compile(root, elem)

	finish := events.CompileFinish{
		Selection:   root.String(),
		ElementType: elem.String(),
		Err:         err,
		Duration:    time.Since(start),
	}
	if err == nil {
		finish.Plan = plan.Format(proj.Plan)
	}
	publish(ctx, p.bus, finish)
	return proj, err
}

func publish[T any](ctx context.Context, bus *eventbus.Bus, e T) {
	if bus != nil {
		eventbus.Emit(ctx, bus, e)
		return
	}
	eventbus.Publish(ctx, e)
}

func compile(root *selection.Node, elem *shape.Type) (*Projection, error) {
	b := plan.NewBuilder()
	srcType := shape.QueryOf(elem)
	source := b.Bind(srcType)

	var expr plan.Expr
	if root.Kind == selection.SelectCollection {
		e, err := b.Build(srcType, root, source)
		if err != nil {
			return nil, err
		}
		// The result is handed back as a query; materializing it here would
		// end composition. A set still drops duplicates, lazily.
		if m, ok := e.(*plan.Materialize); ok {
			e = m.Source
			if m.Kind == shape.Set {
				e = &plan.Distinct{Source: e}
			}
		}
		expr = e
	} else {
		el := b.Bind(elem)
		body, err := b.Build(elem, root, el)
		if err != nil {
			return nil, err
		}
		expr = &plan.Map{
			Source: source,
			Elem:   el,
			Body:   body,
			Mode:   plan.MapQuery,
			Result: shape.QueryOf(body.Type()),
		}
	}

	fn, err := Lower(expr)
	if err != nil {
		return nil, err
	}
	return &Projection{Plan: expr, Source: source, root: root, elem: elem, fn: fn}, nil
}

// ResultType is the element type of the queries Apply returns.
func (p *Projection) ResultType() *shape.Type {
	if t := p.Plan.Type(); t != nil && t.Elem != nil {
		return t.Elem
	}
	return shape.Any
}

// Apply composes the projection into src. src is not modified; the
// returned query is evaluated lazily.
func (p *Projection) Apply(ctx context.Context, src query.Query) (query.Query, error) {
	out, err := p.fn(ctx, src)
	if err != nil {
		return nil, err
	}
	switch out := out.(type) {
	case query.Query:
		return out, nil
	case query.Seq:
		return query.FromSeq(p.ResultType(), out), nil
	case nil:
		return query.FromSlice(p.ResultType(), nil), nil
	default:
		return nil, fmt.Errorf("projection of %s produced %T, not a query", p.root.Field.Name, out)
	}
}
