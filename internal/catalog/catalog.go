// Package catalog maps GraphQL schema types onto shape types: the target
// shapes selection plans construct and the element types of source data.
package catalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hanpama/projector/internal/protoshape"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

// Catalog hands out shape types for one schema. Object targets are records
// keyed by response name unless a protobuf registry is configured. It is safe
// for concurrent use.
type Catalog struct {
	schema    *schema.Schema
	proto     *protoshape.Registry
	immutable bool

	mu      sync.Mutex
	targets map[string]*shape.Type
	sources map[string]*shape.Type
}

var _ selection.TypeSource = (*Catalog)(nil)

// Option configures a Catalog.
type Option func(*Catalog)

// WithProto makes object targets the dynamic protobuf messages of reg.
func WithProto(reg *protoshape.Registry) Option {
	return func(c *Catalog) { c.proto = reg }
}

// WithImmutableRecords makes record targets immutable, constructed through
// one canonical constructor instead of member assignment.
func WithImmutableRecords() Option {
	return func(c *Catalog) { c.immutable = true }
}

func New(sch *schema.Schema, opts ...Option) *Catalog {
	c := &Catalog{
		schema:  sch,
		targets: make(map[string]*shape.Type),
		sources: make(map[string]*shape.Type),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Schema returns the schema the catalog was built for.
func (c *Catalog) Schema() *schema.Schema { return c.schema }

// Scalar maps built-in scalars onto the common shape scalars. Enums are
// strings; custom scalars are opaque and default to nil.
func (c *Catalog) Scalar(t *schema.Type) *shape.Type {
	switch t.Name {
	case schema.String:
		return shape.String
	case schema.Int:
		return shape.Int
	case schema.Float:
		return shape.Float
	case schema.Boolean:
		return shape.Boolean
	case schema.ID:
		return shape.ID
	}
	if t.Kind == schema.TypeKindEnum {
		return shape.Scalar(t.Name, "")
	}
	return shape.Scalar(t.Name, nil)
}

// Object returns the target shape of t for the selected response fields.
func (c *Catalog) Object(t *schema.Type, fields []shape.Param) (*shape.Type, error) {
	// Introspection types have no generated message and always project
	// into records.
	if c.proto != nil && !strings.HasPrefix(t.Name, "__") {
		m, err := c.proto.Descriptor(t.Name)
		if err != nil {
			return nil, err
		}
		return shape.Object(m), nil
	}

	key := targetKey(t.Name, fields)
	c.mu.Lock()
	defer c.mu.Unlock()
	if typ, ok := c.targets[key]; ok {
		return typ, nil
	}
	var opts []shape.RecordOption
	if c.immutable {
		opts = append(opts, shape.Immutable())
	}
	typ := shape.Object(shape.NewRecord(t.Name, fields, opts...))
	c.targets[key] = typ
	return typ, nil
}

// Abstract returns a union shape, which never classifies as constructible.
func (c *Catalog) Abstract(t *schema.Type) *shape.Type {
	if c.proto != nil {
		if m, err := c.proto.Descriptor(t.Name); err == nil {
			return shape.Object(m)
		}
	}
	return shape.Object(shape.Union(t.Name))
}

func targetKey(name string, fields []shape.Param) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

// Type returns the element type of source values of the named type. Object
// and interface values are records of every schema field; fields of object
// type are left untyped.
func (c *Catalog) Type(name string) (*shape.Type, error) {
	t := c.schema.Types[name]
	if t == nil {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	if t.IsLeaf() {
		return c.Scalar(t), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if typ, ok := c.sources[name]; ok {
		return typ, nil
	}
	if t.Kind == schema.TypeKindUnion {
		typ := shape.Object(shape.Union(t.Name))
		c.sources[name] = typ
		return typ, nil
	}
	fields := make([]shape.Param, 0, len(t.Fields))
	for _, f := range t.Fields {
		ft, err := c.fieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, f.Name, err)
		}
		fields = append(fields, shape.Param{Name: f.Name, Type: ft})
	}
	typ := shape.Object(shape.NewRecord(t.Name, fields))
	c.sources[name] = typ
	return typ, nil
}

// TypeRef returns the source type of a value of ref, e.g. the elements a
// root field's dataset holds.
func (c *Catalog) TypeRef(ref *schema.TypeRef) (*shape.Type, error) {
	return wrap(ref, c.Type)
}

// fieldType is the type of a record field in a source record. It runs with
// c.mu held and does not descend into object types.
func (c *Catalog) fieldType(ref *schema.TypeRef) (*shape.Type, error) {
	return wrap(ref, func(name string) (*shape.Type, error) {
		t := c.schema.Types[name]
		if t == nil {
			return nil, fmt.Errorf("unknown type %q", name)
		}
		if t.IsLeaf() {
			return c.Scalar(t), nil
		}
		return shape.Any, nil
	})
}

// wrap applies the list and nullability wrappers of ref around the named
// type. Non-null drops the nullable wrapper.
func wrap(ref *schema.TypeRef, named func(string) (*shape.Type, error)) (*shape.Type, error) {
	switch ref.Kind {
	case schema.TypeRefKindNonNull:
		inner, err := wrap(ref.OfType, named)
		if err != nil {
			return nil, err
		}
		return inner.Elem, nil
	case schema.TypeRefKindList:
		elem, err := wrap(ref.OfType, named)
		if err != nil {
			return nil, err
		}
		return shape.NullableOf(shape.ListOf(elem)), nil
	default:
		t, err := named(ref.Named)
		if err != nil {
			return nil, err
		}
		return shape.NullableOf(t), nil
	}
}
