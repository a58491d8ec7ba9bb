package selection_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/projector/internal/catalog"
	"github.com/hanpama/projector/internal/language"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

const testSDL = `
type Query {
  people(role: Role, first: Int = 10, tags: [String!]): [Person!]!
  person(name: String!): Person
  search: [Searchable!]!
  matrix: [[Int]]
}

type Mutation {
  rename(name: String!): Person
}

type Person {
  name: String!
  age: Int
  role: Role
  pets: [Pet!]!
  best: Pet
}

type Pet {
  name: String!
  owner: Person
}

enum Role { ADMIN MEMBER }

union Searchable = Person | Pet
`

func plan(t *testing.T, src string, vars map[string]any) *selection.Operation {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	doc, err := selection.ParseQuery(sch, src)
	require.NoError(t, err)
	op, err := selection.Plan(sch, catalog.New(sch), doc, "", vars)
	require.NoError(t, err)
	return op
}

func planErr(t *testing.T, src string, vars map[string]any) error {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	doc, err := selection.ParseQuery(sch, src)
	if err != nil {
		return err
	}
	_, err = selection.Plan(sch, catalog.New(sch), doc, "", vars)
	return err
}

func trees(op *selection.Operation) []string {
	out := make([]string, len(op.Fields))
	for i, f := range op.Fields {
		out[i] = f.Node.String()
	}
	return out
}

func TestPlanTrees(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  []string
	}{
		{
			name:  "nested",
			query: `{ people { name pets { name owner { name } } best { name } } }`,
			want:  []string{"people[{name pets[{name owner{name}}] best{name}}]"},
		},
		{
			name:  "aliases",
			query: `{ folks: people { who: name } p: person(name: "Ada") { age } }`,
			want:  []string{"folks[{who}]", "p{age}"},
		},
		{
			name:  "merged fields",
			query: `{ people { name pets { name } pets { owner { name } } name } }`,
			want:  []string{"people[{name pets[{name owner{name}}]}]"},
		},
		{
			name:  "fragments",
			query: `{ people { ...PersonName ... on Person { age } } } fragment PersonName on Person { name }`,
			want:  []string{"people[{name age}]"},
		},
		{
			name:  "skip and include",
			query: `query ($yes: Boolean!) { people { name @skip(if: true) age @include(if: $yes) role @include(if: false) } }`,
			vars:  map[string]any{"yes": true},
			want:  []string{"people[{age}]"},
		},
		{
			name:  "typename",
			query: `{ people { __typename name } }`,
			want:  []string{"people[{__typename name}]"},
		},
		{
			name:  "nested lists",
			query: `{ matrix }`,
			want:  []string{"matrix[[]]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := plan(t, tt.query, tt.vars)
			if diff := cmp.Diff(tt.want, trees(op)); diff != "" {
				t.Fatalf("plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanNodes(t *testing.T) {
	op := plan(t, `{ folks: people { who: name age __typename } }`, nil)
	require.Len(t, op.Fields, 1)
	rf := op.Fields[0]
	assert.Equal(t, "folks", rf.ResponseName)
	assert.Equal(t, "people", rf.Field.Name)
	assert.Equal(t, language.Query, op.Type)

	root := rf.Node
	assert.Equal(t, selection.SelectCollection, root.Kind)
	assert.Equal(t, "people", root.Resolver.MemberName(root.Field.Name))
	assert.False(t, root.ReturnType.IsNullable())

	elem := root.Inner
	require.NotNil(t, elem)
	assert.Equal(t, selection.SelectFields, elem.Kind)
	assert.Equal(t, "Person", elem.ReturnType.String())

	who, age, typename := elem.Children[0], elem.Children[1], elem.Children[2]
	assert.Equal(t, "name", who.Resolver.MemberName(who.Field.Name))
	assert.True(t, who.Resolver.IsAlias())
	assert.Same(t, shape.String, who.ReturnType)
	assert.True(t, age.ReturnType.IsNullable())

	require.False(t, typename.Resolver.IsAlias())
	v, err := typename.Resolver.Compute(nil)
	require.NoError(t, err)
	assert.Equal(t, "Person", v)
}

func TestPlanArguments(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  map[string]any
	}{
		{"defaults", `{ people { name } }`, nil, map[string]any{"first": 10}},
		{"literals", `{ people(role: ADMIN, first: 2) { name } }`, nil, map[string]any{"role": "ADMIN", "first": 2}},
		{"single value list", `{ people(tags: "a") { name } }`, nil, map[string]any{"first": 10, "tags": []any{"a"}}},
		{
			"variables",
			`query ($r: Role, $n: Int) { people(role: $r, first: $n) { name } }`,
			map[string]any{"r": "MEMBER", "n": float64(3)},
			map[string]any{"role": "MEMBER", "first": 3},
		},
		{
			"missing variable uses default",
			`query ($n: Int) { people(first: $n) { name } }`,
			nil,
			map[string]any{"first": 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := plan(t, tt.query, tt.vars)
			if diff := cmp.Diff(tt.want, op.Fields[0].Arguments); diff != "" {
				t.Fatalf("arguments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  string
	}{
		{"required variable", `query ($n: String!) { person(name: $n) { name } }`, nil, "variable $n of required type String! was not provided"},
		{"bad variable", `query ($r: Role) { people(role: $r) { name } }`, map[string]any{"r": "OWNER"}, "OWNER is not a value of enum Role"},
		{"bad int", `query ($n: Int) { people(first: $n) { name } }`, map[string]any{"n": 1.5}, "cannot coerce 1.5 (float64) to Int"},
		{"validation", `{ people { height } }`, nil, `Cannot query field "height"`},
		{"several operations", `query A { people { name } } query B { people { age } }`, nil, "operation name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := planErr(t, tt.query, tt.vars)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestPlanOperationByName(t *testing.T) {
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	doc, err := selection.ParseQuery(sch, `query A { people { name } } mutation B { rename(name: "x") { name } }`)
	require.NoError(t, err)

	op, err := selection.Plan(sch, catalog.New(sch), doc, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, language.Mutation, op.Type)
	assert.Equal(t, []string{"rename{name}"}, trees(op))

	_, err = selection.Plan(sch, catalog.New(sch), doc, "C", nil)
	require.ErrorContains(t, err, `unknown operation "C"`)
}

func TestPlanAbstractHasNoChildren(t *testing.T) {
	op := plan(t, `{ search { ... on Person { name } } }`, nil)
	inner := op.Fields[0].Node.Inner
	require.NotNil(t, inner)
	assert.Equal(t, selection.SelectFields, inner.Kind)
	assert.Empty(t, inner.Children)
	assert.Equal(t, shape.Unsupported, shape.Classify(shape.Unwrap(inner.ReturnType)))
}

func TestNodeBuilders(t *testing.T) {
	pet := shape.Object(shape.NewRecord("Pet", []shape.Param{{Name: "name", Type: shape.String}}))
	n := selection.Fields("person", shape.Any,
		selection.Leaf("name", shape.String).From("fullName"),
		selection.Collection("pets", shape.ListOf(pet), selection.Fields("", pet, selection.Leaf("name", shape.String))),
	)
	assert.Equal(t, "person{name pets[{name}]}", n.String())
	assert.Same(t, shape.Any, n.ReturnType)
	assert.Equal(t, "fullName", n.Children[0].Resolver.MemberName("name"))
	assert.Equal(t, "SelectCollection", n.Children[1].Kind.String())

	shared := selection.Leaf("name", shape.String)
	before := *shared
	selection.Fields("a", pet, shared)
	selection.Fields("b", shape.Any, shared)
	assert.Equal(t, before, *shared, "building a parent must not change its children")
}
