package shape

// Descriptor exposes the construction metadata of a target shape. It is the
// only introspection capability the projection compiler relies on; it can be
// backed by reflection, code generation or pre-registered metadata.
//
// Contract
//   - Constructors and Members return the same slices on every call and the
//     returned values must not be mutated by callers.
//   - Constructor.New receives exactly one argument per parameter, in
//     declaration order, already shaped for the parameter type.
//   - Member.Set is only called on values produced by one of the
//     constructors of the same descriptor.
type Descriptor interface {
	Name() string
	Form() Form
	Constructors() []*Constructor
	Members() []*Member
}

// Form is the structural category of a shape.
type Form int

const (
	// FormRecord is a shape with named parts.
	FormRecord Form = iota
	// FormTuple is positional and has no stable member names.
	FormTuple
	// FormUnion is a sum of alternative shapes.
	FormUnion
)

func (f Form) String() string {
	switch f {
	case FormRecord:
		return "Record"
	case FormTuple:
		return "Tuple"
	case FormUnion:
		return "Union"
	default:
		return "Unknown"
	}
}

// Param is a named constructor parameter.
type Param struct {
	Name string
	Type *Type
}

type Constructor struct {
	Params []Param
	// Canonical marks the fully-parameterized constructor of an immutable shape.
	Canonical bool
	New       func(args []any) (any, error)
}

// Member is a settable member, assigned after construction.
type Member struct {
	Name string
	Type *Type
	Set  func(target any, value any) error
}

// Reader is implemented by descriptors that know how to read members of
// their own values. ReadMember falls back to generic access otherwise.
type Reader interface {
	Read(value any, member string) (any, error)
}

// Canonical returns the canonical constructor of d, or nil.
func Canonical(d Descriptor) *Constructor {
	for _, c := range d.Constructors() {
		if c.Canonical {
			return c
		}
	}
	return nil
}

// MemberByName finds a settable member by case-insensitive name.
func MemberByName(d Descriptor, name string) *Member {
	key := Fold(name)
	for _, m := range d.Members() {
		if Fold(m.Name) == key {
			return m
		}
	}
	return nil
}
