package protoshape_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/projector/internal/protoshape"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/shape"
)

const testSDL = `
type Query {
  people: [Person!]!
}

"A person who owns pets"
type Person {
  name: String!
  age: Int
  nickName: String
  pets: [Pet!]!
  role: Role
  joined: Time
}

type Pet {
  name: String!
}

enum Role { ADMIN MEMBER }

union Searchable = Person | Pet

scalar Time
`

func buildRegistry(t *testing.T, opts ...protoshape.Option) *protoshape.Registry {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	reg, err := protoshape.Build(sch, opts...)
	require.NoError(t, err)
	return reg
}

func TestBuildMessages(t *testing.T) {
	reg := buildRegistry(t)
	fd := reg.File()

	assert.Equal(t, protoshape.FilePath, fd.Path())
	assert.Equal(t, protoshape.Package, fd.Package())
	assert.Nil(t, fd.Messages().ByName("Query"), "root types are skipped")

	person := fd.Messages().ByName("Person")
	require.NotNil(t, person)

	var names []string
	for i := 0; i < person.Fields().Len(); i++ {
		names = append(names, string(person.Fields().Get(i).Name()))
	}
	if diff := cmp.Diff([]string{"name", "age", "nick_name", "pets", "role", "joined"}, names); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	pets := person.Fields().ByName("pets")
	assert.True(t, pets.IsList())
	assert.Equal(t, protoreflect.FullName("projector.shapes.Pet"), pets.Message().FullName())
	assert.Equal(t, protoreflect.Int32Kind, person.Fields().ByName("age").Kind())
	assert.Equal(t, protoreflect.StringKind, person.Fields().ByName("joined").Kind())

	role := fd.Enums().ByName("Role")
	require.NotNil(t, role)
	assert.Equal(t, protoreflect.EnumNumber(0), role.Values().ByName("ROLE_UNSPECIFIED").Number())
	assert.NotNil(t, role.Values().ByName("ROLE_ADMIN"))

	searchable := fd.Messages().ByName("Searchable")
	require.NotNil(t, searchable)
	require.Equal(t, 1, searchable.Oneofs().Len())
	assert.Equal(t, 2, searchable.Oneofs().Get(0).Fields().Len())
}

func TestFieldNumbersAreStable(t *testing.T) {
	a := buildRegistry(t).File().Messages().ByName("Person").Fields()
	b := buildRegistry(t).File().Messages().ByName("Person").Fields()
	for i := 0; i < a.Len(); i++ {
		n := a.Get(i).Number()
		assert.Equal(t, n, b.ByName(a.Get(i).Name()).Number())
		assert.False(t, n >= 19000 && n <= 19999, "reserved number %d", n)
	}
}

func TestWithScalar(t *testing.T) {
	reg := buildRegistry(t, protoshape.WithScalar("Time", protoreflect.Int64Kind))
	fd := reg.FieldDescriptor("Person", "joined")
	require.NotNil(t, fd)
	assert.Equal(t, protoreflect.Int64Kind, fd.Kind())
}

func TestBuildRejectsNestedLists(t *testing.T) {
	sch, err := schema.BuildFromSDL(`
type Query { grid: Grid }
type Grid { cells: [[Int!]!]! }
`)
	require.NoError(t, err)
	_, err = protoshape.Build(sch)
	require.ErrorContains(t, err, "Grid.cells: nested list")
}

func TestDescriptorClassification(t *testing.T) {
	reg := buildRegistry(t)

	person, err := reg.Descriptor("Person")
	require.NoError(t, err)
	assert.Equal(t, shape.GeneralObject, shape.ClassifyShape(person))
	assert.Len(t, person.Members(), 6)

	searchable, err := reg.Descriptor("Searchable")
	require.NoError(t, err)
	assert.Equal(t, shape.Unsupported, shape.ClassifyShape(searchable))

	_, err = reg.Descriptor("Query")
	require.Error(t, err)
}

func TestMembersSetAndRead(t *testing.T) {
	reg := buildRegistry(t)
	person, err := reg.Descriptor("Person")
	require.NoError(t, err)
	pet, err := reg.Descriptor("Pet")
	require.NoError(t, err)

	rex, err := pet.Constructors()[0].New(nil)
	require.NoError(t, err)
	require.NoError(t, shape.MemberByName(pet, "name").Set(rex, "Rex"))

	v, err := person.Constructors()[0].New(nil)
	require.NoError(t, err)
	require.IsType(t, &dynamicpb.Message{}, v)

	set := func(name string, value any) {
		t.Helper()
		require.NoError(t, shape.MemberByName(person, name).Set(v, value))
	}
	set("name", "Ada")
	set("age", float64(36)) // JSON numbers decode as float64
	set("nickName", "Addy")
	set("nickName", nil)
	set("role", "ADMIN")
	set("pets", []any{rex, map[string]any{"name": "Tom"}})

	read := func(name string) any {
		t.Helper()
		out, err := person.Read(v, name)
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, "Ada", read("name"))
	assert.Equal(t, int32(36), read("age"))
	assert.Empty(t, read("nickName"))
	assert.Equal(t, "ADMIN", read("role"))

	pets, ok := read("pets").([]any)
	require.True(t, ok)
	require.Len(t, pets, 2)
	name, err := pet.Read(pets[1], "name")
	require.NoError(t, err)
	assert.Equal(t, "Tom", name)
}

func TestMemberSetErrors(t *testing.T) {
	reg := buildRegistry(t)
	person, err := reg.Descriptor("Person")
	require.NoError(t, err)
	v, err := person.Constructors()[0].New(nil)
	require.NoError(t, err)

	tests := []struct {
		member string
		target any
		value  any
		want   string
	}{
		{"age", v, "old", "cannot use string as int32"},
		{"age", v, 1.5, "cannot use float64 as int32"},
		{"role", v, "OWNER", "cannot use string as enum"},
		{"name", map[string]any{}, "Ada", "cannot set name"},
		{"pets", v, []any{"Rex"}, "cannot use string as message"},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			err := shape.MemberByName(person, tt.member).Set(tt.target, tt.value)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReadFallsBackForOtherValues(t *testing.T) {
	reg := buildRegistry(t)
	person, err := reg.Descriptor("Person")
	require.NoError(t, err)

	out, err := person.Read(map[string]any{"name": "Ada"}, "name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", out)
}

func TestRender(t *testing.T) {
	reg := buildRegistry(t)
	var buf bytes.Buffer
	require.NoError(t, protoshape.Render(reg, &buf))

	out := buf.String()
	for _, want := range []string{
		`syntax = "proto3";`,
		`package projector.shapes;`,
		`// A person who owns pets`,
		`message Person {`,
		`repeated Pet pets =`,
		`enum Role {`,
		`ROLE_UNSPECIFIED = 0;`,
		`oneof value {`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderDir(t *testing.T) {
	reg := buildRegistry(t)
	dir := t.TempDir()
	require.NoError(t, protoshape.RenderDir(reg, dir))
	assert.FileExists(t, dir+"/"+protoshape.FilePath)
}
