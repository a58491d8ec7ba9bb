package selection

import (
	"strings"

	"github.com/hanpama/projector/internal/shape"
)

// Node is one field of a selection plan. Plans are finite, acyclic trees and
// are never mutated once built.
type Node struct {
	Field    Field
	Kind     NodeKind
	Children []*Node // For SelectFields
	Inner    *Node   // For SelectCollection
	Resolver Resolver

	// ReturnType is the declared type of the value this node produces. The
	// type of the value it is read from belongs to the source, not the plan.
	ReturnType *shape.Type
}

// Field is the definition a node was planned from.
type Field struct {
	Name string
	Type *shape.Type
}

type NodeKind int

const (
	// PassThrough copies the value as-is.
	PassThrough NodeKind = iota
	// SelectFields constructs a shape from named children.
	SelectFields
	// SelectCollection maps a collection element-wise with Inner.
	SelectCollection
)

func (k NodeKind) String() string {
	switch k {
	case PassThrough:
		return "PassThrough"
	case SelectFields:
		return "SelectFields"
	case SelectCollection:
		return "SelectCollection"
	default:
		return "Unknown"
	}
}

// Resolver describes how a field value is obtained from its parent value.
// A resolver with Compute set is an arbitrary computed expression; otherwise
// it is a trivial alias reading Member (or the field name when Member is
// empty) from the input.
type Resolver struct {
	Member  string
	Compute func(input any) (any, error)
}

// IsAlias reports whether the resolver only reads one member of its input.
func (r Resolver) IsAlias() bool { return r.Compute == nil }

// MemberName returns the member an alias resolver reads for field name.
func (r Resolver) MemberName(field string) string {
	if r.Member != "" {
		return r.Member
	}
	return field
}

// Leaf plans a field whose value is copied unchanged.
func Leaf(name string, typ *shape.Type) *Node {
	return &Node{Field: Field{Name: name, Type: typ}, Kind: PassThrough, ReturnType: typ}
}

// Fields plans a field that constructs typ from the given children.
func Fields(name string, typ *shape.Type, children ...*Node) *Node {
	return &Node{Field: Field{Name: name, Type: typ}, Kind: SelectFields, Children: children, ReturnType: typ}
}

// Collection plans a field whose collection value is mapped element-wise
// with inner. typ is the declared collection type of the result.
func Collection(name string, typ *shape.Type, inner *Node) *Node {
	return &Node{Field: Field{Name: name, Type: typ}, Kind: SelectCollection, Inner: inner, ReturnType: typ}
}

// WithResolver returns n with r as its resolver.
func (n *Node) WithResolver(r Resolver) *Node {
	n.Resolver = r
	return n
}

// From sets the member an alias resolver reads.
func (n *Node) From(member string) *Node {
	return n.WithResolver(Resolver{Member: member})
}

// Computed sets a computed resolver.
func (n *Node) Computed(fn func(input any) (any, error)) *Node {
	return n.WithResolver(Resolver{Compute: fn})
}

// String renders the tree in a compact form, e.g. "person{name pets[{name}]}".
func (n *Node) String() string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	b.WriteString(n.Field.Name)
	writeBody(b, n)
}

func writeBody(b *strings.Builder, n *Node) {
	switch n.Kind {
	case SelectFields:
		b.WriteByte('{')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeNode(b, c)
		}
		b.WriteByte('}')
	case SelectCollection:
		b.WriteByte('[')
		if n.Inner != nil {
			writeBody(b, n.Inner)
		}
		b.WriteByte(']')
	}
}
