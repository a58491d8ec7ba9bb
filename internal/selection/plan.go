package selection

import (
	"fmt"

	"github.com/hanpama/projector/internal/language"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/shape"
)

// TypeSource supplies the shape types selection plans are built with.
type TypeSource interface {
	// Scalar returns the type of a scalar or enum.
	Scalar(t *schema.Type) *shape.Type
	// Object returns the target shape of object type t given the response
	// fields selected on it.
	Object(t *schema.Type, fields []shape.Param) (*shape.Type, error)
	// Abstract returns the type of an interface or union.
	Abstract(t *schema.Type) *shape.Type
}

// Operation is the planned form of one GraphQL operation.
type Operation struct {
	Name   string
	Type   language.Operation
	Fields []*RootField
}

// RootField is one root field of an operation. Node plans the value the
// field resolves to: a SelectCollection node for list fields, whose inner
// node plans one element.
type RootField struct {
	ResponseName string
	Field        *schema.Field
	Arguments    map[string]any
	Node         *Node
}

// ParseQuery parses a query document. Documents are validated against sch
// when it was loaded from SDL.
func ParseQuery(sch *schema.Schema, src string) (*language.QueryDocument, error) {
	return language.ParseQuery(sch.AST(), src)
}

// Plan turns the operation opName of doc into one selection plan per root
// field. opName may be empty when doc holds a single operation.
func Plan(sch *schema.Schema, types TypeSource, doc *language.QueryDocument, opName string, vars map[string]any) (*Operation, error) {
	op, err := language.SelectOperation(doc, opName)
	if err != nil {
		return nil, err
	}
	root := sch.RootType(string(op.Operation))
	if root == nil {
		return nil, fmt.Errorf("schema does not support %s operations", op.Operation)
	}
	coerced, err := coerceVariableValues(sch, op, vars)
	if err != nil {
		return nil, err
	}

	p := &planner{
		collector: collector{schema: sch, doc: doc, vars: coerced},
		types:     types,
	}
	out := &Operation{Name: op.Name, Type: op.Operation}
	groups := p.collect(root, op.SelectionSet)
	for _, name := range groups.order {
		fields := groups.index[name]
		if fields[0].Name == "__typename" {
			out.Fields = append(out.Fields, &RootField{
				ResponseName: name,
				Field:        schema.NewField("__typename", "", schema.NonNullType(schema.NamedType(schema.String))),
				Node:         typename(name, root.Name),
			})
			continue
		}
		def := root.Field(fields[0].Name)
		if def == nil {
			return nil, fmt.Errorf("cannot query field %q on type %q", fields[0].Name, root.Name)
		}
		args, err := argumentValues(sch, def, fields[0].Arguments, coerced)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		node, err := p.field(name, def, fields)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, &RootField{ResponseName: name, Field: def, Arguments: args, Node: node})
	}
	return out, nil
}

type planner struct {
	collector
	types TypeSource
}

// field plans the merged fields sharing one response name.
func (p *planner) field(responseName string, def *schema.Field, fields []*language.Field) (*Node, error) {
	var sets []language.SelectionSet
	for _, f := range fields {
		if len(f.SelectionSet) > 0 {
			sets = append(sets, f.SelectionSet)
		}
	}
	n, err := p.value(responseName, def.Type, sets)
	if err != nil {
		return nil, err
	}
	if def.Name != responseName {
		n.From(def.Name)
	}
	return n, nil
}

// value plans a value of type ref. Non-null drops the nullable wrapper the
// type would otherwise carry.
func (p *planner) value(name string, ref *schema.TypeRef, sets []language.SelectionSet) (*Node, error) {
	if ref.IsNonNull() {
		n, err := p.value(name, ref.OfType, sets)
		if err != nil {
			return nil, err
		}
		n.Field.Type = n.Field.Type.Elem
		n.ReturnType = n.Field.Type
		return n, nil
	}

	var n *Node
	switch ref.Kind {
	case schema.TypeRefKindList:
		inner, err := p.value("", ref.OfType, sets)
		if err != nil {
			return nil, err
		}
		n = Collection(name, shape.ListOf(returnType(inner)), inner)
	default:
		t := p.schema.Types[ref.Named]
		if t == nil {
			return nil, fmt.Errorf("unknown type %q", ref.Named)
		}
		var err error
		n, err = p.named(name, t, sets)
		if err != nil {
			return nil, err
		}
	}
	n.Field.Type = shape.NullableOf(n.Field.Type)
	n.ReturnType = n.Field.Type
	return n, nil
}

func (p *planner) named(name string, t *schema.Type, sets []language.SelectionSet) (*Node, error) {
	if t.IsLeaf() {
		return Leaf(name, p.types.Scalar(t)), nil
	}
	if t.IsAbstract() {
		// Abstract targets have no construction strategy; the projection
		// compiler reports them.
		return Fields(name, p.types.Abstract(t)), nil
	}
	if t.Kind != schema.TypeKindObject {
		return nil, fmt.Errorf("type %s cannot be selected", t.Name)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("field %q of type %s must have a selection of subfields", name, t.Name)
	}

	groups := p.collect(t, sets...)
	children := make([]*Node, 0, len(groups.order))
	params := make([]shape.Param, 0, len(groups.order))
	for _, resp := range groups.order {
		fields := groups.index[resp]
		var child *Node
		if fields[0].Name == "__typename" {
			child = typename(resp, t.Name)
		} else {
			def := t.Field(fields[0].Name)
			if def == nil {
				return nil, fmt.Errorf("cannot query field %q on type %q", fields[0].Name, t.Name)
			}
			var err error
			child, err = p.field(resp, def, fields)
			if err != nil {
				return nil, err
			}
		}
		children = append(children, child)
		params = append(params, shape.Param{Name: resp, Type: returnType(child)})
	}

	typ, err := p.types.Object(t, params)
	if err != nil {
		return nil, err
	}
	return Fields(name, typ, children...), nil
}

// typename plans __typename, which always reads as the name of the type it
// is selected on.
func typename(responseName, typeName string) *Node {
	return Leaf(responseName, shape.String).Computed(func(any) (any, error) { return typeName, nil })
}

func returnType(n *Node) *shape.Type {
	if n.ReturnType != nil {
		return n.ReturnType
	}
	return n.Field.Type
}
