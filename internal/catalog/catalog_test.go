package catalog_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/projector/internal/catalog"
	"github.com/hanpama/projector/internal/plan"
	"github.com/hanpama/projector/internal/projector"
	"github.com/hanpama/projector/internal/protoshape"
	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

const testSDL = `
type Query {
  people: [Person!]!
  search: [Searchable!]!
}

type Person {
  name: String!
  age: Int
  role: Role
  pets: [Pet!]!
  best: Pet
  seen: Time
}

type Pet {
  name: String!
}

enum Role { ADMIN MEMBER }

union Searchable = Person | Pet

scalar Time
`

func loadSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	return sch
}

func TestScalar(t *testing.T) {
	sch := loadSchema(t)
	c := catalog.New(sch)

	assert.Same(t, shape.String, c.Scalar(sch.Types["String"]))
	assert.Same(t, shape.Int, c.Scalar(sch.Types["Int"]))
	assert.Same(t, shape.Float, c.Scalar(sch.Types["Float"]))
	assert.Same(t, shape.Boolean, c.Scalar(sch.Types["Boolean"]))
	assert.Same(t, shape.ID, c.Scalar(sch.Types["ID"]))

	role := c.Scalar(sch.Types["Role"])
	assert.Equal(t, "Role", role.Name)
	assert.Equal(t, "", role.Zero)

	tm := c.Scalar(sch.Types["Time"])
	assert.Equal(t, "Time", tm.Name)
	assert.Nil(t, tm.Zero)
}

func TestObjectRecordsAreCached(t *testing.T) {
	sch := loadSchema(t)
	c := catalog.New(sch)
	person := sch.Types["Person"]

	fields := []shape.Param{{Name: "name", Type: shape.String}, {Name: "years", Type: shape.NullableOf(shape.Int)}}
	a, err := c.Object(person, fields)
	require.NoError(t, err)
	b, err := c.Object(person, fields)
	require.NoError(t, err)
	other, err := c.Object(person, fields[:1])
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, "Person", a.Name)
	assert.Equal(t, shape.GeneralObject, shape.Classify(a))
	require.NotNil(t, shape.MemberByName(a.Shape, "years"), "records are keyed by response name")
}

func TestImmutableRecords(t *testing.T) {
	sch := loadSchema(t)
	c := catalog.New(sch, catalog.WithImmutableRecords())

	typ, err := c.Object(sch.Types["Pet"], []shape.Param{{Name: "name", Type: shape.String}})
	require.NoError(t, err)
	assert.Equal(t, shape.NominalConstructible, shape.Classify(typ))
}

func TestAbstractIsUnsupported(t *testing.T) {
	sch := loadSchema(t)
	c := catalog.New(sch)
	assert.Equal(t, shape.Unsupported, shape.Classify(c.Abstract(sch.Types["Searchable"])))
}

func TestSourceTypes(t *testing.T) {
	c := catalog.New(loadSchema(t))

	person, err := c.Type("Person")
	require.NoError(t, err)
	rec, ok := person.Shape.(*shape.Record)
	require.True(t, ok)

	got := map[string]string{}
	for _, f := range rec.Fields() {
		got[f.Name] = f.Type.String()
	}
	want := map[string]string{
		"name": "String",
		"age":  "Int?",
		"role": "Role?",
		"pets": "List<Any>",
		"best": "Any?",
		"seen": "Time?",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("field types mismatch (-want +got):\n%s", diff)
	}

	again, err := c.Type("Person")
	require.NoError(t, err)
	assert.Same(t, person, again)

	ref, err := c.TypeRef(c.Schema().GetQueryType().Field("people").Type)
	require.NoError(t, err)
	assert.Equal(t, "List<Person>", ref.String())

	_, err = c.Type("Nope")
	require.ErrorContains(t, err, `unknown type "Nope"`)
}

func compileField(t *testing.T, c *catalog.Catalog, src string) *projector.Projection {
	t.Helper()
	doc, err := selection.ParseQuery(c.Schema(), src)
	require.NoError(t, err)
	op, err := selection.Plan(c.Schema(), c, doc, "", nil)
	require.NoError(t, err)
	require.Len(t, op.Fields, 1)

	elem, err := c.Type(op.Fields[0].Field.Type.GetNamedType())
	require.NoError(t, err)
	proj, err := projector.New().Compile(op.Fields[0].Node, elem)
	require.NoError(t, err)
	return proj
}

func people() []any {
	return []any{
		map[string]any{"name": "Ada", "age": float64(36), "role": "ADMIN", "pets": []any{
			map[string]any{"name": "Rex"},
		}},
		map[string]any{"name": "Bob", "pets": []any{}},
	}
}

func TestProjectRecords(t *testing.T) {
	c := catalog.New(loadSchema(t))
	proj := compileField(t, c, `{ people { name years: age pets { name } } }`)

	assert.Equal(t,
		"e0.Select(e1 => new Person() { name = e1.name, years = e1.age, pets = e1.pets.Map(e2 => new Pet() { name = e2.name }).ToList() })",
		plan.Format(proj.Plan))

	src := query.FromSlice(proj.Source.Result.Elem, people())
	out, err := proj.Apply(context.Background(), src)
	require.NoError(t, err)
	got, err := query.ToList(out.Iter(context.Background()))
	require.NoError(t, err)

	want := []any{
		map[string]any{"name": "Ada", "years": float64(36), "pets": []any{map[string]any{"name": "Rex"}}},
		map[string]any{"name": "Bob", "years": nil, "pets": []any{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectProtoMessages(t *testing.T) {
	sch := loadSchema(t)
	reg, err := protoshape.Build(sch)
	require.NoError(t, err)
	c := catalog.New(sch, catalog.WithProto(reg))
	proj := compileField(t, c, `{ people { name role pets { name } } }`)

	src := query.FromSlice(proj.Source.Result.Elem, people())
	out, err := proj.Apply(context.Background(), src)
	require.NoError(t, err)
	got, err := query.ToList(out.Iter(context.Background()))
	require.NoError(t, err)
	require.Len(t, got, 2)

	person, err := reg.Descriptor("Person")
	require.NoError(t, err)
	name, err := person.Read(got[0], "name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)
	role, err := person.Read(got[0], "role")
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", role)
	pets, err := person.Read(got[0], "pets")
	require.NoError(t, err)
	assert.Len(t, pets, 1)
}

func TestProtoAliasMismatch(t *testing.T) {
	sch := loadSchema(t)
	reg, err := protoshape.Build(sch)
	require.NoError(t, err)
	c := catalog.New(sch, catalog.WithProto(reg))

	doc, err := selection.ParseQuery(sch, `{ people { years: age } }`)
	require.NoError(t, err)
	op, err := selection.Plan(sch, c, doc, "", nil)
	require.NoError(t, err)
	elem, err := c.Type("Person")
	require.NoError(t, err)

	_, err = projector.New().Compile(op.Fields[0].Node, elem)
	require.ErrorIs(t, err, plan.ErrShapeMismatch)
}

func TestUnionSelectionIsUnsupported(t *testing.T) {
	c := catalog.New(loadSchema(t))
	doc, err := selection.ParseQuery(c.Schema(), `{ search { __typename } }`)
	require.NoError(t, err)
	op, err := selection.Plan(c.Schema(), c, doc, "", nil)
	require.NoError(t, err)
	elem, err := c.Type("Searchable")
	require.NoError(t, err)

	_, err = projector.New().Compile(op.Fields[0].Node, elem)
	require.ErrorIs(t, err, plan.ErrUnsupportedShape)
}
