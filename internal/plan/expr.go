package plan

import "github.com/hanpama/projector/internal/shape"

// Expr is a node of a projection plan.
//
// This is a sealed interface: only types in this package implement it, so
// backends can switch over it exhaustively. Plans are immutable once built
// and hold no per-execution state; the same plan can be lowered any number
// of times.
//
// Expression types:
//   - Input: a binding (the root source or one collection element)
//   - Member: read one member of a value
//   - Invoke: a computed resolver applied to a value
//   - Default: the zero value of a type
//   - Construct: a constructor call
//   - Bind: member assignments applied after construction
//   - Guard: short-circuits to nil when its subject is nil
//   - Map: element-wise map over a collection
//   - Materialize: conversion of a mapped sequence into a concrete collection
//   - Distinct: lazy deduplication of a query
type Expr interface {
	Type() *shape.Type
	exprNode()
}

// Input is a binding introduced by the builder.
type Input struct {
	Name   string
	Result *shape.Type
}

// Member reads Name from the value of From. Reader, when set, is the
// source shape's own member reader.
type Member struct {
	From   Expr
	Name   string
	Reader shape.Reader
	Result *shape.Type
}

// Invoke applies a computed resolver to the value of From.
type Invoke struct {
	From   Expr
	Field  string
	Fn     func(input any) (any, error)
	Result *shape.Type
}

type Default struct {
	Result *shape.Type
}

type Arg struct {
	Param string
	Value Expr
}

type Construct struct {
	Shape  shape.Descriptor
	Ctor   *shape.Constructor
	Args   []Arg
	Result *shape.Type
}

type Assignment struct {
	Member *shape.Member
	Value  Expr
}

// Bind assigns members on the value produced by Base.
type Bind struct {
	Base        *Construct
	Assignments []Assignment
}

// Guard evaluates Body unless Subject evaluates to nil.
type Guard struct {
	Subject Expr
	Body    Expr
}

type MapMode int

const (
	// MapQuery composes the map into the source query.
	MapQuery MapMode = iota
	// MapSequence maps a plain lazy sequence.
	MapSequence
)

func (m MapMode) String() string {
	if m == MapQuery {
		return "Select"
	}
	return "Map"
}

// Map selects one value per source element, in source order, by evaluating
// Body with Elem bound to the element.
type Map struct {
	Source Expr
	Elem   *Input
	Body   Expr
	Mode   MapMode
	Result *shape.Type
}

type Materialize struct {
	Kind   shape.CollectionKind
	Source Expr
	Result *shape.Type
}

// Distinct drops duplicate elements of Source without materializing it.
type Distinct struct {
	Source Expr
}

func (e *Input) Type() *shape.Type       { return e.Result }
func (e *Member) Type() *shape.Type      { return e.Result }
func (e *Invoke) Type() *shape.Type      { return e.Result }
func (e *Default) Type() *shape.Type     { return e.Result }
func (e *Construct) Type() *shape.Type   { return e.Result }
func (e *Bind) Type() *shape.Type        { return e.Base.Result }
func (e *Guard) Type() *shape.Type       { return shape.NullableOf(e.Body.Type()) }
func (e *Map) Type() *shape.Type         { return e.Result }
func (e *Materialize) Type() *shape.Type { return e.Result }
func (e *Distinct) Type() *shape.Type    { return e.Source.Type() }

func (*Input) exprNode()       {}
func (*Member) exprNode()      {}
func (*Invoke) exprNode()      {}
func (*Default) exprNode()     {}
func (*Construct) exprNode()   {}
func (*Bind) exprNode()        {}
func (*Guard) exprNode()       {}
func (*Map) exprNode()         {}
func (*Materialize) exprNode() {}
func (*Distinct) exprNode()    {}
