package projector

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hanpama/projector/internal/plan"
	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/shape"
)

// Func evaluates a lowered plan against the value bound to its free input.
type Func func(ctx context.Context, input any) (any, error)

// eval is a lowered plan node. It reads bound inputs from sc.
type eval func(ctx context.Context, sc *scope) (any, error)

// scope is an immutable chain of input bindings. Every map iteration pushes
// one binding, so evaluations running in parallel never share state.
type scope struct {
	in     *plan.Input
	value  any
	parent *scope
}

func (sc *scope) with(in *plan.Input, v any) *scope {
	return &scope{in: in, value: v, parent: sc}
}

func (sc *scope) lookup(in *plan.Input) (any, bool) {
	for s := sc; s != nil; s = s.parent {
		if s.in == in {
			return s.value, true
		}
	}
	return nil, false
}

// Lower turns expr into a closure. expr must have at most one free input,
// which is bound to the argument the closure is called with.
func Lower(expr plan.Expr) (Func, error) {
	free := freeInput(expr)
	ev, err := lower(expr)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, input any) (any, error) {
		var sc *scope
		if free != nil {
			sc = sc.with(free, input)
		}
		return ev(ctx, sc)
	}, nil
}

// freeInput finds the input that is read but not bound by any Map.
func freeInput(expr plan.Expr) *plan.Input {
	bound := map[*plan.Input]bool{}
	var free *plan.Input
	walk(expr, func(e plan.Expr) {
		switch e := e.(type) {
		case *plan.Map:
			bound[e.Elem] = true
		case *plan.Input:
			if !bound[e] && free == nil {
				free = e
			}
		}
	})
	return free
}

// walk visits e and its operands. A Map's element binding is visited before
// its body.
func walk(e plan.Expr, fn func(plan.Expr)) {
	fn(e)
	switch e := e.(type) {
	case *plan.Member:
		walk(e.From, fn)
	case *plan.Invoke:
		walk(e.From, fn)
	case *plan.Construct:
		for _, a := range e.Args {
			walk(a.Value, fn)
		}
	case *plan.Bind:
		walk(e.Base, fn)
		for _, a := range e.Assignments {
			walk(a.Value, fn)
		}
	case *plan.Guard:
		walk(e.Subject, fn)
		walk(e.Body, fn)
	case *plan.Map:
		walk(e.Source, fn)
		fn(e.Elem)
		walk(e.Body, fn)
	case *plan.Materialize:
		walk(e.Source, fn)
	case *plan.Distinct:
		walk(e.Source, fn)
	}
}

func lower(e plan.Expr) (eval, error) {
	switch e := e.(type) {
	case *plan.Input:
		return func(_ context.Context, sc *scope) (any, error) {
			v, ok := sc.lookup(e)
			if !ok {
				return nil, fmt.Errorf("unbound input %s", e.Name)
			}
			return v, nil
		}, nil

	case *plan.Member:
		from, err := lower(e.From)
		if err != nil {
			return nil, err
		}
		read := shape.ReadMember
		if e.Reader != nil {
			read = e.Reader.Read
		}
		return func(ctx context.Context, sc *scope) (any, error) {
			v, err := from(ctx, sc)
			if err != nil {
				return nil, err
			}
			out, err := read(v, e.Name)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", e.Name, err)
			}
			return out, nil
		}, nil

	case *plan.Invoke:
		from, err := lower(e.From)
		if err != nil {
			return nil, err
		}
		if e.Fn == nil {
			return nil, fmt.Errorf("field %s has no resolver function", e.Field)
		}
		return func(ctx context.Context, sc *scope) (any, error) {
			v, err := from(ctx, sc)
			if err != nil {
				return nil, err
			}
			out, err := e.Fn(v)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", e.Field, err)
			}
			return out, nil
		}, nil

	case *plan.Default:
		zero := shape.ZeroValue(e.Result)
		return func(context.Context, *scope) (any, error) { return zero, nil }, nil

	case *plan.Construct:
		return lowerConstruct(e)

	case *plan.Bind:
		return lowerBind(e)

	case *plan.Guard:
		subject, err := lower(e.Subject)
		if err != nil {
			return nil, err
		}
		body, err := lower(e.Body)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, sc *scope) (any, error) {
			v, err := subject(ctx, sc)
			if err != nil {
				return nil, err
			}
			if isNil(v) {
				return nil, nil
			}
			return body(ctx, sc)
		}, nil

	case *plan.Map:
		return lowerMap(e)

	case *plan.Materialize:
		return lowerMaterialize(e)

	case *plan.Distinct:
		return lowerDistinct(e)

	default:
		return nil, fmt.Errorf("cannot lower %T", e)
	}
}

func lowerConstruct(e *plan.Construct) (eval, error) {
	args := make([]eval, len(e.Args))
	for i, a := range e.Args {
		ev, err := lower(a.Value)
		if err != nil {
			return nil, err
		}
		args[i] = ev
	}
	name := e.Shape.Name()
	return func(ctx context.Context, sc *scope) (any, error) {
		values := make([]any, len(args))
		for i, ev := range args {
			v, err := ev(ctx, sc)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		out, err := e.Ctor.New(values)
		if err != nil {
			return nil, fmt.Errorf("construct %s: %w", name, err)
		}
		return out, nil
	}, nil
}

func lowerBind(e *plan.Bind) (eval, error) {
	base, err := lowerConstruct(e.Base)
	if err != nil {
		return nil, err
	}
	values := make([]eval, len(e.Assignments))
	for i, a := range e.Assignments {
		ev, err := lower(a.Value)
		if err != nil {
			return nil, err
		}
		values[i] = ev
	}
	name := e.Base.Shape.Name()
	return func(ctx context.Context, sc *scope) (any, error) {
		target, err := base(ctx, sc)
		if err != nil {
			return nil, err
		}
		for i, a := range e.Assignments {
			v, err := values[i](ctx, sc)
			if err != nil {
				return nil, err
			}
			if err := a.Member.Set(target, v); err != nil {
				return nil, fmt.Errorf("set %s.%s: %w", name, a.Member.Name, err)
			}
		}
		return target, nil
	}, nil
}

func lowerMap(e *plan.Map) (eval, error) {
	source, err := lower(e.Source)
	if err != nil {
		return nil, err
	}
	body, err := lower(e.Body)
	if err != nil {
		return nil, err
	}
	var elemType *shape.Type
	if e.Result != nil {
		elemType = e.Result.Elem
	}
	return func(ctx context.Context, sc *scope) (any, error) {
		src, err := source(ctx, sc)
		if err != nil {
			return nil, err
		}
		if isNil(src) {
			return nil, nil
		}
		fn := func(v any) (any, error) { return body(ctx, sc.with(e.Elem, v)) }

		if e.Mode == plan.MapQuery {
			if q, ok := src.(query.Query); ok {
				return q.Select(fn, elemType), nil
			}
		}
		seq, err := query.Elements(ctx, src)
		if err != nil {
			return nil, err
		}
		mapped := query.MapSeq(seq, fn)
		if e.Mode == plan.MapQuery {
			return query.FromSeq(elemType, mapped), nil
		}
		return mapped, nil
	}, nil
}

func lowerMaterialize(e *plan.Materialize) (eval, error) {
	source, err := lower(e.Source)
	if err != nil {
		return nil, err
	}
	var collect func(query.Seq) ([]any, error)
	switch e.Kind {
	case shape.List:
		collect = query.ToList
	case shape.Array:
		collect = query.ToArray
	case shape.Set:
		collect = query.ToSet
	default:
		return nil, fmt.Errorf("cannot materialize into %s", e.Kind)
	}
	return func(ctx context.Context, sc *scope) (any, error) {
		src, err := source(ctx, sc)
		if err != nil {
			return nil, err
		}
		if isNil(src) {
			return nil, nil
		}
		seq, err := query.Elements(ctx, src)
		if err != nil {
			return nil, err
		}
		return collect(seq)
	}, nil
}

func lowerDistinct(e *plan.Distinct) (eval, error) {
	source, err := lower(e.Source)
	if err != nil {
		return nil, err
	}
	var elemType *shape.Type
	if t := e.Type(); t != nil {
		elemType = t.Elem
	}
	return func(ctx context.Context, sc *scope) (any, error) {
		src, err := source(ctx, sc)
		if err != nil {
			return nil, err
		}
		if isNil(src) {
			return nil, nil
		}
		if q, ok := src.(query.Query); ok {
			return q.Distinct(), nil
		}
		seq, err := query.Elements(ctx, src)
		if err != nil {
			return nil, err
		}
		return query.FromSeq(elemType, query.DistinctSeq(seq)), nil
	}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
