package shape

import "strings"

// Type describes a value flowing through a projection: a scalar, a
// constructible object, a collection or a nullable wrapper.
type Type struct {
	Name       string
	Kind       TypeKind
	Elem       *Type          // For COLLECTION and NULLABLE
	Collection CollectionKind // For COLLECTION
	Shape      Descriptor     // For OBJECT
	Zero       any            // For SCALAR
}

// TypeKind represents the kind of a type descriptor
type TypeKind string

const (
	TypeKindScalar     TypeKind = "SCALAR"
	TypeKindObject     TypeKind = "OBJECT"
	TypeKindCollection TypeKind = "COLLECTION"
	TypeKindNullable   TypeKind = "NULLABLE"
)

// CollectionKind tells how a collection is materialized.
type CollectionKind string

const (
	List     CollectionKind = "List"
	Array    CollectionKind = "Array"
	Set      CollectionKind = "Set"
	Sequence CollectionKind = "Sequence" // plain lazy sequence
	Query    CollectionKind = "Query"    // composable query
)

func Scalar(name string, zero any) *Type {
	return &Type{Name: name, Kind: TypeKindScalar, Zero: zero}
}

func Object(d Descriptor) *Type {
	return &Type{Name: d.Name(), Kind: TypeKindObject, Shape: d}
}

func CollectionOf(kind CollectionKind, elem *Type) *Type {
	return &Type{Kind: TypeKindCollection, Collection: kind, Elem: elem}
}

func ListOf(elem *Type) *Type     { return CollectionOf(List, elem) }
func ArrayOf(elem *Type) *Type    { return CollectionOf(Array, elem) }
func SetOf(elem *Type) *Type      { return CollectionOf(Set, elem) }
func SequenceOf(elem *Type) *Type { return CollectionOf(Sequence, elem) }
func QueryOf(elem *Type) *Type    { return CollectionOf(Query, elem) }
func NullableOf(t *Type) *Type    { return &Type{Kind: TypeKindNullable, Elem: t} }

// Common scalars.
var (
	String  = Scalar("String", "")
	Int     = Scalar("Int", 0)
	Float   = Scalar("Float", float64(0))
	Boolean = Scalar("Boolean", false)
	ID      = Scalar("ID", "")
	Any     = Scalar("Any", nil)
)

func (t *Type) IsNullable() bool { return t != nil && t.Kind == TypeKindNullable }

func (t *Type) IsCollection() bool { return t != nil && t.Kind == TypeKindCollection }

// IsEnumerable reports whether t (possibly behind a nullable wrapper) can
// be mapped element-wise.
func IsEnumerable(t *Type) bool {
	if t.IsNullable() {
		t = t.Elem
	}
	return t.IsCollection()
}

// Enumerable returns the collection type behind an optional nullable
// wrapper, or nil.
func Enumerable(t *Type) *Type {
	if t.IsNullable() {
		t = t.Elem
	}
	if t.IsCollection() {
		return t
	}
	return nil
}

// Unwrap strips nullable and collection wrappers down to the underlying
// element type.
func Unwrap(t *Type) *Type {
	for t != nil && (t.Kind == TypeKindNullable || t.Kind == TypeKindCollection) {
		t = t.Elem
	}
	return t
}

// ZeroValue returns the default value a missing constructor argument of
// type t receives.
func ZeroValue(t *Type) any {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeKindScalar:
		return t.Zero
	default:
		return nil
	}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeKindNullable:
		return t.Elem.String() + "?"
	case TypeKindCollection:
		return string(t.Collection) + "<" + t.Elem.String() + ">"
	default:
		return t.Name
	}
}

// Fold is the case-insensitive key used for every name comparison.
func Fold(name string) string { return strings.ToLower(name) }
