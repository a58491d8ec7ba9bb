// Package schema models the GraphQL type system the planner and the shape
// catalog read: named types with their fields, and wrapped type references.
// Schemas come from SDL (BuildFromSDL) or from the builder functions.
package schema

import (
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
)

// Schema is a set of named types and directives with up to three root
// operation types.
type Schema struct {
	Description      string
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
	Directives       map[string]*Directive

	// ast is the validated document queries are checked against; nil for
	// schemas assembled in code.
	ast *ast.Schema
}

func (s *Schema) GetQueryType() *Type    { return s.Types[s.QueryType] }
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// RootType returns the root type of operation ("query", "mutation" or
// "subscription"), or nil when the schema does not declare one.
func (s *Schema) RootType(operation string) *Type {
	name := map[string]string{
		"query":        s.QueryType,
		"mutation":     s.MutationType,
		"subscription": s.SubscriptionType,
	}[operation]
	if name == "" {
		return nil
	}
	return s.Types[name]
}

// PossibleTypes lists the object types a value of t can have: t itself for
// an object, the members of a union in declaration order, and the
// implementations of an interface by name.
func (s *Schema) PossibleTypes(t *Type) []*Type {
	var out []*Type
	switch t.Kind {
	case TypeKindObject:
		out = append(out, t)
	case TypeKindUnion:
		for _, name := range t.PossibleTypes {
			if member, ok := s.Types[name]; ok {
				out = append(out, member)
			}
		}
	case TypeKindInterface:
		for _, name := range SortedTypeNames(s) {
			if impl := s.Types[name]; impl.Kind == TypeKindObject && impl.Implements(t.Name) {
				out = append(out, impl)
			}
		}
	}
	return out
}

// TypeKind is the __TypeKind of a named type.
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Which of the member lists are used depends on Kind.
type Type struct {
	Name        string
	Kind        TypeKind
	Description string
	BuiltIn     bool

	Fields     []*Field // objects and interfaces
	Interfaces []string // objects and interfaces

	PossibleTypes []string      // unions
	EnumValues    []*EnumValue  // enums
	InputFields   []*InputValue // input objects
	OneOf         bool          // input objects

	SpecifiedByURL *string // scalars
}

// Field returns the field called name, or nil.
func (t *Type) Field(name string) *Field {
	if i := slices.IndexFunc(t.Fields, func(f *Field) bool { return f.Name == name }); i >= 0 {
		return t.Fields[i]
	}
	return nil
}

// Implements reports whether t declares the interface called name.
func (t *Type) Implements(name string) bool { return slices.Contains(t.Interfaces, name) }

// IsLeaf reports whether t is a scalar or an enum.
func (t *Type) IsLeaf() bool { return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum }

// IsAbstract reports whether t is an interface or a union.
func (t *Type) IsAbstract() bool { return t.Kind == TypeKindInterface || t.Kind == TypeKindUnion }

type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	IsDeprecated      bool
	DeprecationReason string
}

// InputValue is an argument or an input object field.
type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type EnumValue struct {
	Name              string
	Description       string
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

// TypeRefKind tells a named reference from the two wrappers.
type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// TypeRef is a possibly wrapped reference to a named type. Wrappers keep
// the wrapped reference in OfType; a named reference keeps the name.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }

func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == TypeRefKindNonNull }

// Nullable returns t without its non-null wrapper.
func (t *TypeRef) Nullable() *TypeRef {
	if t.IsNonNull() {
		return t.OfType
	}
	return t
}

// IsList reports whether t is a list, nullable or not.
func (t *TypeRef) IsList() bool {
	n := t.Nullable()
	return n != nil && n.Kind == TypeRefKindList
}

// GetNamedType returns the name at the core of t.
func (t *TypeRef) GetNamedType() string {
	for t != nil && t.Kind != TypeRefKindNamed {
		t = t.OfType
	}
	if t == nil {
		return ""
	}
	return t.Named
}

// String renders t in SDL notation, e.g. "[Pet!]!".
func (t *TypeRef) String() string {
	switch {
	case t == nil:
		return ""
	case t.Kind == TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case t.Kind == TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Named
	}
}
