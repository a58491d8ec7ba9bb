package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// BuildFromSDL parses and validates SDL and returns the corresponding Schema.
// A schema without an explicit schema definition uses the type named Query
// as its query root.
func BuildFromSDL(sdl string) (*Schema, error) {
	return BuildFromSources(&ast.Source{Name: "schema.graphql", Input: sdl})
}

// BuildFromSources merges several SDL sources, extensions included, into
// one schema.
func BuildFromSources(sources ...*ast.Source) (*Schema, error) {
	doc, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return FromAST(doc), nil
}

// FromAST converts a validated gqlparser schema. Introspection types are
// left out.
func FromAST(doc *ast.Schema) *Schema {
	s := NewSchema(doc.Description)
	s.ast = doc
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}
	for name, def := range doc.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		s.AddType(buildType(def))
	}
	for _, def := range doc.Directives {
		s.AddDirective(buildDirective(def))
	}
	return s
}

// IntrospectionTypes returns __Schema, __Type and the other introspection
// types of the GraphQL prelude, sorted by name.
func IntrospectionTypes(s *Schema) ([]*Type, error) {
	doc := s.AST()
	if doc == nil {
		var err error
		doc, err = gqlparser.LoadSchema(&ast.Source{Name: "prelude.graphql", Input: "type Query { _unused: Boolean }"})
		if err != nil {
			return nil, fmt.Errorf("load prelude: %w", err)
		}
	}
	var out []*Type
	for name, def := range doc.Types {
		if strings.HasPrefix(name, "__") {
			out = append(out, buildType(def))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AST returns the gqlparser schema s was built from, or nil when s was
// assembled with the builder functions.
func (s *Schema) AST() *ast.Schema { return s.ast }

func buildType(def *ast.Definition) *Type {
	t := NewType(def.Name, TypeKind(def.Kind), def.Description)
	t.BuiltIn = def.BuiltIn
	for _, name := range def.Interfaces {
		t.AddInterface(name)
	}
	switch def.Kind {
	case ast.Object, ast.Interface:
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			t.AddField(buildField(fd))
		}
	case ast.Union:
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
	case ast.Enum:
		for _, ev := range def.EnumValues {
			v := NewEnumValue(ev.Name, ev.Description)
			if reason, ok := deprecation(ev.Directives); ok {
				v.Deprecate(reason)
			}
			t.AddEnumValue(v)
		}
	case ast.InputObject:
		t.SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, fd := range def.Fields {
			v := NewInputValue(fd.Name, fd.Description, TypeRefFromAST(fd.Type)).SetDefault(defaultValue(fd.DefaultValue))
			if reason, ok := deprecation(fd.Directives); ok {
				v.Deprecate(reason)
			}
			t.AddInputField(v)
		}
	case ast.Scalar:
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				url := arg.Value.Raw
				t.SpecifiedByURL = &url
			}
		}
	}
	return t
}

func buildField(def *ast.FieldDefinition) *Field {
	f := NewField(def.Name, def.Description, TypeRefFromAST(def.Type))
	if reason, ok := deprecation(def.Directives); ok {
		f.Deprecate(reason)
	}
	for _, arg := range def.Arguments {
		f.AddArgument(buildArgument(arg))
	}
	return f
}

func buildArgument(def *ast.ArgumentDefinition) *InputValue {
	v := NewInputValue(def.Name, def.Description, TypeRefFromAST(def.Type)).SetDefault(defaultValue(def.DefaultValue))
	if reason, ok := deprecation(def.Directives); ok {
		v.Deprecate(reason)
	}
	return v
}

func buildDirective(def *ast.DirectiveDefinition) *Directive {
	d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
	for _, loc := range def.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range def.Arguments {
		d.AddArgument(buildArgument(arg))
	}
	return d
}

// TypeRefFromAST converts a gqlparser type, which carries non-null as a flag,
// into a wrapped reference.
func TypeRefFromAST(t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(TypeRefFromAST(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

func defaultValue(v *ast.Value) any {
	if v == nil {
		return nil
	}
	out, err := v.Value(nil)
	if err != nil {
		return v.Raw
	}
	return out
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return reason, true
}
