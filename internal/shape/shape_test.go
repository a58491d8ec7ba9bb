package shape_test

import (
	"errors"
	"iter"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hanpama/projector/internal/shape"
)

type Point struct {
	X, Y int
}

func NewPoint(x, y int) Point { return Point{X: x, Y: y} }

type Pet struct {
	Name string `json:"name"`
	Tags map[string]struct{}
}

type Person struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Pets  []Pet  `json:"pets"`
	Owner *Person
	skip  int
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		typ  *shape.Type
		want shape.Class
	}{
		{"scalar", shape.String, shape.Unsupported},
		{"list", shape.ListOf(shape.String), shape.Unsupported},
		{"nil", nil, shape.Unsupported},
		{"tuple", shape.Object(shape.Tuple("Pair")), shape.Unsupported},
		{"union", shape.Object(shape.Union("Node")), shape.Unsupported},
		{"tuple struct", shape.Object(shape.MustStruct[Point](shape.AsTuple())), shape.Unsupported},
		{"mutable record", shape.Object(shape.NewRecord("Pet", nil)), shape.GeneralObject},
		{"immutable record", shape.Object(shape.NewRecord("Point", nil, shape.Immutable())), shape.NominalConstructible},
		{"plain struct", shape.Object(shape.MustStruct[Person]()), shape.GeneralObject},
		{"canonical struct", shape.Object(shape.MustStruct[Point](shape.WithCanonical(NewPoint, "x", "y"))), shape.NominalConstructible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, shape.Classify(tc.typ))
		})
	}
}

func TestStructDescriptor(t *testing.T) {
	d := shape.MustStruct[Person]()
	require.Equal(t, "Person", d.Name())
	require.Equal(t, shape.FormRecord, d.Form())
	require.Len(t, d.Constructors(), 1)

	var names []string
	for _, m := range d.Members() {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"name", "age", "pets", "Owner"}, names); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}

	pets := shape.MemberByName(d, "PETS")
	require.NotNil(t, pets)
	require.Equal(t, "List<Pet>", pets.Type.String())
	require.Equal(t, "Person?", shape.MemberByName(d, "owner").Type.String())

	v, err := d.Constructors()[0].New(nil)
	require.NoError(t, err)
	require.NoError(t, shape.MemberByName(d, "name").Set(v, "Ann"))
	require.NoError(t, pets.Set(v, []any{&Pet{Name: "x"}, Pet{Name: "y"}}))
	require.NoError(t, shape.MemberByName(d, "age").Set(v, int64(7)))

	want := &Person{Name: "Ann", Age: 7, Pets: []Pet{{Name: "x"}, {Name: "y"}}}
	if diff := cmp.Diff(want, v, cmp.AllowUnexported(Person{})); diff != "" {
		t.Fatalf("constructed value mismatch (-want +got):\n%s", diff)
	}
}

func TestStructCanonicalHasNoMembers(t *testing.T) {
	d := shape.MustStruct[Point](shape.WithCanonical(NewPoint, "x", "y"))
	require.Empty(t, d.Members())
	c := shape.Canonical(d)
	require.NotNil(t, c)
	require.Equal(t, "x", c.Params[0].Name)

	v, err := c.New([]any{1, float64(2)})
	require.NoError(t, err)
	require.Equal(t, Point{X: 1, Y: 2}, v)
}

func TestStructConstructorValidation(t *testing.T) {
	_, err := shape.Struct[Point](shape.WithConstructor(NewPoint, "x"))
	require.ErrorContains(t, err, "takes 2 parameters, 1 names given")

	_, err = shape.Struct[Point](shape.WithConstructor(func() string { return "" }))
	require.ErrorContains(t, err, "returns string")

	_, err = shape.Struct[int]()
	require.ErrorContains(t, err, "is not a struct")
}

func TestConstructorError(t *testing.T) {
	boom := errors.New("boom")
	d := shape.MustStruct[Point](shape.WithCanonical(func(x, y int) (*Point, error) { return nil, boom }, "x", "y"))
	_, err := shape.Canonical(d).New([]any{1, 2})
	require.ErrorIs(t, err, boom)
}

func TestRecord(t *testing.T) {
	r := shape.NewRecord("Pet", []shape.Param{{Name: "name", Type: shape.String}})
	v, err := r.Constructors()[0].New(nil)
	require.NoError(t, err)
	require.NoError(t, r.Members()[0].Set(v, "x"))
	require.Equal(t, map[string]any{"name": "x"}, v)
	require.Error(t, r.Members()[0].Set(Pet{}, "x"))

	imm := shape.NewRecord("Point", []shape.Param{{Name: "x"}, {Name: "y"}}, shape.Immutable())
	v, err = shape.Canonical(imm).New([]any{1, 2})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": 1, "y": 2}, v)
	_, err = shape.Canonical(imm).New([]any{1})
	require.Error(t, err)
}

func TestReadMember(t *testing.T) {
	owner := &Person{Name: "Bo"}
	cases := []struct {
		name   string
		value  any
		member string
		want   any
	}{
		{"nil", nil, "name", nil},
		{"map exact", map[string]any{"name": "a"}, "name", "a"},
		{"map folded", map[string]any{"Name": "a"}, "NAME", "a"},
		{"map missing", map[string]any{}, "name", nil},
		{"struct by json tag", Person{Age: 3}, "AGE", 3},
		{"struct pointer", &Person{Owner: owner}, "owner", owner},
		{"nil struct pointer", (*Person)(nil), "name", nil},
		{"typed map", map[string]int{"Count": 2}, "count", 2},
		{"proto scalar", wrapperspb.String("w"), "value", "w"},
		{"proto json name", structpb.NewNumberValue(4), "numberValue", float64(4)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := shape.ReadMember(tc.value, tc.member)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := shape.ReadMember(Person{}, "color")
	require.ErrorContains(t, err, `no member "color"`)
	_, err = shape.ReadMember(42, "x")
	require.Error(t, err)
}

func TestReadMemberProtoUnsetMessageIsNil(t *testing.T) {
	v, err := shape.ReadMember(structpb.NewNullValue(), "struct_value")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestAssignCollections(t *testing.T) {
	var seq iter.Seq2[any, error] = func(yield func(any, error) bool) {
		for _, s := range []any{"a", "b", "a"} {
			if !yield(s, nil) {
				return
			}
		}
	}

	var set map[string]struct{}
	require.NoError(t, shape.Assign(reflect.ValueOf(&set).Elem(), seq))
	require.Equal(t, map[string]struct{}{"a": {}, "b": {}}, set)

	var arr [2]int
	require.NoError(t, shape.Assign(reflect.ValueOf(&arr).Elem(), []any{1, 2}))
	require.Equal(t, [2]int{1, 2}, arr)
	require.ErrorContains(t, shape.Assign(reflect.ValueOf(&arr).Elem(), []any{1, 2, 3}), "more than 2 elements")

	var p *int
	require.NoError(t, shape.Assign(reflect.ValueOf(&p).Elem(), 5))
	require.Equal(t, 5, *p)
	require.NoError(t, shape.Assign(reflect.ValueOf(&p).Elem(), nil))
	require.Nil(t, p)

	var s string
	require.ErrorContains(t, shape.Assign(reflect.ValueOf(&s).Elem(), []any{}), "cannot assign")
}

func TestTypeOfGo(t *testing.T) {
	cases := []struct {
		typ  reflect.Type
		want string
	}{
		{reflect.TypeOf(""), "string"},
		{reflect.TypeOf([]int{}), "List<int>"},
		{reflect.TypeOf([3]int{}), "Array<int>"},
		{reflect.TypeOf(map[string]struct{}{}), "Set<string>"},
		{reflect.TypeOf(&Pet{}), "Pet?"},
		{reflect.TypeOf([]byte{}), "Bytes"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, shape.TypeOfGo(tc.typ).String())
	}
	require.Equal(t, "", shape.ZeroValue(shape.TypeOfGo(reflect.TypeOf(""))))
}

func TestTypeHelpers(t *testing.T) {
	q := shape.NullableOf(shape.QueryOf(shape.String))
	require.True(t, shape.IsEnumerable(q))
	require.Same(t, q.Elem, shape.Enumerable(q))
	require.Nil(t, shape.Enumerable(shape.String))
	require.Same(t, shape.String, shape.Unwrap(q))
	require.Equal(t, "Query<String>?", q.String())
	require.Equal(t, 0, shape.ZeroValue(shape.Int))
	require.Nil(t, shape.ZeroValue(shape.ListOf(shape.Int)))
}
