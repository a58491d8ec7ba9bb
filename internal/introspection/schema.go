// Package introspection answers __schema and __type by projection: the
// schema is described as plain maps that serve as the datasets of the two
// root fields.
package introspection

import (
	"fmt"

	"github.com/hanpama/projector/internal/schema"
)

// Root fields added to the query type.
const (
	SchemaField = "__schema"
	TypeField   = "__type"
)

// Extend returns a copy of sch with the introspection types and a query
// type that also declares __schema and __type. sch is not modified.
func Extend(sch *schema.Schema) (*schema.Schema, error) {
	query := sch.GetQueryType()
	if query == nil {
		return nil, fmt.Errorf("schema has no query type")
	}
	types, err := schema.IntrospectionTypes(sch)
	if err != nil {
		return nil, err
	}

	out := sch.Copy()
	for _, t := range types {
		out.AddType(t)
	}

	q := *query
	q.Fields = append(append([]*schema.Field(nil), query.Fields...),
		schema.NewField(SchemaField, "Access the current type schema of this server.",
			schema.NonNullType(schema.NamedType("__Schema"))),
		schema.NewField(TypeField, "Request the type information of a single type.",
			schema.NamedType("__Type")).
			AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType(schema.String)))),
	)
	out.AddType(&q)
	return out, nil
}

// Enabled reports whether sch was extended with Extend.
func Enabled(sch *schema.Schema) bool {
	q := sch.GetQueryType()
	return q != nil && q.Field(SchemaField) != nil
}

// Datasets returns the data __schema and __type are answered from, or nil
// when sch was not extended. __type filters the type list by its name
// argument.
func Datasets(sch *schema.Schema) map[string][]any {
	if !Enabled(sch) {
		return nil
	}
	desc := Describe(sch)
	return map[string][]any{
		SchemaField: {desc},
		TypeField:   desc["types"].([]any),
	}
}
