package shape

// Class is the construction strategy of a target shape.
type Class int

const (
	Unsupported Class = iota
	NominalConstructible
	GeneralObject
)

func (c Class) String() string {
	switch c {
	case NominalConstructible:
		return "NominalConstructible"
	case GeneralObject:
		return "GeneralObject"
	default:
		return "Unsupported"
	}
}

// Classify categorizes how values of t are constructed. Only the structural
// metadata of the descriptor is consulted.
//
//   - tuple-like and union forms are Unsupported;
//   - a canonical constructor makes the shape NominalConstructible;
//   - any other constructor makes it a GeneralObject;
//   - everything else, including non-object types, is Unsupported.
func Classify(t *Type) Class {
	if t == nil || t.Kind != TypeKindObject || t.Shape == nil {
		return Unsupported
	}
	return ClassifyShape(t.Shape)
}

func ClassifyShape(d Descriptor) Class {
	switch d.Form() {
	case FormTuple, FormUnion:
		return Unsupported
	}
	if Canonical(d) != nil {
		return NominalConstructible
	}
	if len(d.Constructors()) > 0 {
		return GeneralObject
	}
	return Unsupported
}
