// Package query provides the composable, lazily evaluated source queries a
// projection is applied to.
//
// A Query describes a sequence of elements without producing them: every
// operator returns a new Query and nothing runs until Iter is ranged over.
// Queries are values; operators never modify the query they are called on.
package query

import (
	"context"
	"iter"

	"github.com/hanpama/projector/internal/shape"
)

// Func maps one element.
type Func func(any) (any, error)

// Predicate filters elements.
type Predicate func(any) (bool, error)

// Seq is a lazy sequence of elements. Iteration stops at the first error.
type Seq = iter.Seq2[any, error]

// Query is a composable, lazily evaluated collection.
type Query interface {
	// ElementType is the type of the elements the query yields.
	ElementType() *shape.Type
	// Select maps every element with fn, keeping order and count.
	Select(fn Func, elem *shape.Type) Query
	Where(p Predicate) Query
	Skip(n int) Query
	Take(n int) Query
	// Distinct drops elements equal to an earlier one, keeping the first.
	Distinct() Query
	// Iter starts the query. Cancelling ctx stops the iteration with
	// ctx.Err().
	Iter(ctx context.Context) Seq
}

type source func(ctx context.Context) Seq

// memQuery is the in-memory Query implementation.
type memQuery struct {
	elem *shape.Type
	run  source
}

var _ Query = (*memQuery)(nil)

// FromSlice returns a query over items. The slice is read, never written.
func FromSlice(elem *shape.Type, items []any) Query {
	return &memQuery{elem: elem, run: func(context.Context) Seq {
		return func(yield func(any, error) bool) {
			for _, it := range items {
				if !yield(it, nil) {
					return
				}
			}
		}
	}}
}

// FromSeq returns a query over a lazy sequence. The sequence is ranged over
// once per Iter call.
func FromSeq(elem *shape.Type, seq Seq) Query {
	return &memQuery{elem: elem, run: func(context.Context) Seq { return seq }}
}

func (q *memQuery) ElementType() *shape.Type { return q.elem }

func (q *memQuery) Iter(ctx context.Context) Seq {
	inner := q.run(ctx)
	return func(yield func(any, error) bool) {
		for v, err := range inner {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (q *memQuery) Select(fn Func, elem *shape.Type) Query {
	return &memQuery{elem: elem, run: func(ctx context.Context) Seq {
		return MapSeq(q.run(ctx), fn)
	}}
}

func (q *memQuery) Where(p Predicate) Query {
	return &memQuery{elem: q.elem, run: func(ctx context.Context) Seq {
		inner := q.run(ctx)
		return func(yield func(any, error) bool) {
			for v, err := range inner {
				if err != nil {
					yield(nil, err)
					return
				}
				ok, err := p(v)
				if err != nil {
					yield(nil, err)
					return
				}
				if ok && !yield(v, nil) {
					return
				}
			}
		}
	}}
}

func (q *memQuery) Skip(n int) Query {
	return &memQuery{elem: q.elem, run: func(ctx context.Context) Seq {
		inner := q.run(ctx)
		return func(yield func(any, error) bool) {
			i := 0
			for v, err := range inner {
				if err != nil {
					yield(nil, err)
					return
				}
				if i++; i <= n {
					continue
				}
				if !yield(v, nil) {
					return
				}
			}
		}
	}}
}

func (q *memQuery) Take(n int) Query {
	return &memQuery{elem: q.elem, run: func(ctx context.Context) Seq {
		inner := q.run(ctx)
		return func(yield func(any, error) bool) {
			if n <= 0 {
				return
			}
			i := 0
			for v, err := range inner {
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(v, nil) {
					return
				}
				if i++; i >= n {
					return
				}
			}
		}
	}}
}

func (q *memQuery) Distinct() Query {
	return &memQuery{elem: q.elem, run: func(ctx context.Context) Seq {
		return DistinctSeq(q.run(ctx))
	}}
}

// MapSeq lazily maps every element of seq with fn.
func MapSeq(seq Seq, fn Func) Seq {
	return func(yield func(any, error) bool) {
		for v, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			out, err := fn(v)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
