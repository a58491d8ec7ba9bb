package schema

// Built-in scalar names.
const (
	String  = "String"
	Int     = "Int"
	Float   = "Float"
	Boolean = "Boolean"
	ID      = "ID"
)

// IsBuiltinScalar reports whether name is one of the scalars every schema
// carries.
func IsBuiltinScalar(name string) bool {
	switch name {
	case String, Int, Float, Boolean, ID:
		return true
	}
	return false
}

// WithBuiltins adds the built-in scalars and the skip and include
// directives to a schema assembled with the builder functions.
func (s *Schema) WithBuiltins() *Schema {
	for _, name := range []string{String, Int, Float, Boolean, ID} {
		if _, ok := s.Types[name]; !ok {
			t := NewType(name, TypeKindScalar, "")
			t.BuiltIn = true
			s.AddType(t)
		}
	}
	for _, name := range []string{"include", "skip"} {
		if _, ok := s.Directives[name]; ok {
			continue
		}
		d := NewDirective(name, "").
			AddArgument(NewInputValue("if", "", NonNullType(NamedType(Boolean))))
		d.Locations = []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}
		s.AddDirective(d)
	}
	return s
}
