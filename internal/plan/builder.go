package plan

import (
	"fmt"

	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

// Builder turns selection plans into projection plans. A Builder hands out
// fresh binding names, so one Builder should serve one compilation; it is
// not safe for concurrent use.
type Builder struct {
	next int
}

func NewBuilder() *Builder { return &Builder{} }

// Bind introduces a fresh binding of type t.
func (b *Builder) Bind(t *shape.Type) *Input {
	in := &Input{Name: fmt.Sprintf("e%d", b.next), Result: t}
	b.next++
	return in
}

// Build produces the plan fragment for node, reading from input whose type
// is sourceType.
func (b *Builder) Build(sourceType *shape.Type, node *selection.Node, input Expr) (Expr, error) {
	return b.build(sourceType, node, input, nil)
}

func (b *Builder) build(sourceType *shape.Type, node *selection.Node, input Expr, path []string) (Expr, error) {
	switch node.Kind {
	case selection.PassThrough:
		return input, nil

	case selection.SelectFields:
		declared := returnType(node)
		target := shape.Unwrap(declared)
		expr, err := b.construct(target, node.Children, sourceType, input, path)
		if err != nil {
			return nil, err
		}
		if declared.IsNullable() {
			return &Guard{Subject: input, Body: expr}, nil
		}
		return expr, nil

	case selection.SelectCollection:
		if opaque(sourceType) {
			sourceType = returnType(node)
		}
		src := shape.Enumerable(sourceType)
		if src == nil {
			return nil, &InvalidSourceError{Type: sourceType.String(), Path: path}
		}
		if node.Inner == nil {
			return nil, fmt.Errorf("%scollection selection %q has no inner selection", pathPrefix(path), node.Field.Name)
		}
		elem := b.Bind(src.Elem)
		body, err := b.build(src.Elem, node.Inner, elem, path)
		if err != nil {
			return nil, err
		}
		mode, kind := MapSequence, shape.Sequence
		if src.Collection == shape.Query {
			mode, kind = MapQuery, shape.Query
		}
		mapped := &Map{
			Source: input,
			Elem:   elem,
			Body:   body,
			Mode:   mode,
			Result: shape.CollectionOf(kind, body.Type()),
		}
		declared := kind
		if c := shape.Enumerable(returnType(node)); c != nil {
			declared = c.Collection
		}
		return Cast(declared, mapped), nil

	default:
		return nil, fmt.Errorf("%sunknown selection kind %s", pathPrefix(path), node.Kind)
	}
}

// value resolves the value expression of one selected field read from
// input, recursing into any nested selection under it. Alias reads carry
// the type of the source member they read; the declared field type is only
// used when the source says nothing about it.
func (b *Builder) value(child *selection.Node, sourceType *shape.Type, input Expr, path []string) (Expr, error) {
	fieldType := child.Field.Type
	if fieldType == nil {
		fieldType = returnType(child)
	}
	var raw Expr
	if child.Resolver.IsAlias() {
		name := child.Resolver.MemberName(child.Field.Name)
		m := &Member{From: input, Name: name, Result: fieldType}
		if t := sourceMember(sourceType, name); t != nil && !opaque(t) {
			m.Result = t
		}
		if obj := shape.Unwrap(sourceType); obj != nil && obj.Shape != nil {
			if r, ok := obj.Shape.(shape.Reader); ok {
				m.Reader = r
			}
		}
		raw = m
	} else {
		raw = &Invoke{From: input, Field: child.Field.Name, Fn: child.Resolver.Compute, Result: fieldType}
	}
	return b.build(raw.Type(), child, raw, append(path[:len(path):len(path)], child.Field.Name))
}

// sourceMember finds the type of the member called name on values of
// source, looking at settable members first and constructor parameters
// after. It returns nil when source has no such member.
func sourceMember(source *shape.Type, name string) *shape.Type {
	obj := shape.Unwrap(source)
	if obj == nil || obj.Shape == nil {
		return nil
	}
	if m := shape.MemberByName(obj.Shape, name); m != nil {
		return m.Type
	}
	key := shape.Fold(name)
	for _, c := range obj.Shape.Constructors() {
		for _, p := range c.Params {
			if shape.Fold(p.Name) == key {
				return p.Type
			}
		}
	}
	return nil
}

// opaque reports whether t tells nothing about the structure of its values:
// Any, untyped scalars such as Go maps, and interface or union objects.
func opaque(t *shape.Type) bool {
	if t.IsNullable() {
		t = t.Elem
	}
	switch {
	case t == nil:
		return true
	case t.Kind == shape.TypeKindScalar:
		return t.Zero == nil
	case t.Kind == shape.TypeKindObject:
		return t.Shape == nil || t.Shape.Form() == shape.FormUnion
	}
	return false
}

func returnType(n *selection.Node) *shape.Type {
	if n.ReturnType != nil {
		return n.ReturnType
	}
	return n.Field.Type
}

// Cast wraps a mapped sequence into the collection kind a plan declares.
// List and Array preserve source order; Set deduplicates and leaves the
// order unspecified; any other kind passes the sequence through.
func Cast(kind shape.CollectionKind, mapped Expr) Expr {
	switch kind {
	case shape.List, shape.Array, shape.Set:
		elem := mapped.Type().Elem
		return &Materialize{Kind: kind, Source: mapped, Result: shape.CollectionOf(kind, elem)}
	default:
		return mapped
	}
}
