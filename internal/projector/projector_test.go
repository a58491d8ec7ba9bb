package projector_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/projector/internal/eventbus"
	"github.com/hanpama/projector/internal/events"
	"github.com/hanpama/projector/internal/plan"
	"github.com/hanpama/projector/internal/projector"
	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

type Pet struct {
	Name string `json:"name"`
}

type Person struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
	Pets []Pet  `json:"pets"`
}

var (
	petShape    = shape.MustStruct[Pet]()
	personShape = shape.MustStruct[Person]()
	rawPerson   = shape.Object(shape.NewRecord("RawPerson", []shape.Param{
		{Name: "name", Type: shape.String},
		{Name: "age", Type: shape.Int},
		{Name: "pets", Type: shape.ListOf(shape.Any)},
	}))
)

func people() []any {
	return []any{
		map[string]any{"name": "A", "age": 1, "pets": []any{
			map[string]any{"name": "x", "kind": "dog"},
			map[string]any{"name": "y", "kind": "cat"},
		}},
		map[string]any{"name": "B", "age": 2, "pets": []any{}},
		map[string]any{"name": "C", "age": 3, "pets": []any{
			map[string]any{"name": "z", "kind": "eel"},
		}},
	}
}

func personSelection() *selection.Node {
	pet := shape.Object(petShape)
	return selection.Fields("person", shape.Object(personShape),
		selection.Leaf("name", shape.String),
		selection.Leaf("age", shape.Int),
		selection.Collection("pets", shape.ListOf(pet),
			selection.Fields("", pet, selection.Leaf("name", shape.String)),
		),
	)
}

func collect(t *testing.T, q query.Query) []any {
	t.Helper()
	got, err := query.ToList(q.Iter(context.Background()))
	require.NoError(t, err)
	return got
}

func TestProjectPeopleWithPets(t *testing.T) {
	src := query.FromSlice(rawPerson, people())

	out, err := projector.New().Project(context.Background(), src, personSelection())
	require.NoError(t, err)

	want := []any{
		&Person{Name: "A", Age: 1, Pets: []Pet{{Name: "x"}, {Name: "y"}}},
		&Person{Name: "B", Age: 2, Pets: []Pet{}},
		&Person{Name: "C", Age: 3, Pets: []Pet{{Name: "z"}}},
	}
	if diff := cmp.Diff(want, collect(t, out)); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, people(), collect(t, src), "source must not change")
}

func TestRootCollectionStaysComposable(t *testing.T) {
	pet := shape.Object(petShape)
	root := selection.Collection("pets", shape.ListOf(pet),
		selection.Fields("", pet, selection.Leaf("name", shape.String)),
	)
	src := query.FromSlice(shape.Any, []any{
		map[string]any{"name": "x"},
		map[string]any{"name": "y"},
		map[string]any{"name": "z"},
	})

	p, err := projector.New().Compile(root, src.ElementType())
	require.NoError(t, err)
	_, materialized := p.Plan.(*plan.Materialize)
	require.False(t, materialized, "root plan must stay a query: %s", plan.Format(p.Plan))

	out, err := p.Apply(context.Background(), src)
	require.NoError(t, err)
	page := out.Where(func(v any) (bool, error) { return v.(*Pet).Name != "x", nil }).Take(1)
	if diff := cmp.Diff([]any{&Pet{Name: "y"}}, collect(t, page)); diff != "" {
		t.Fatalf("composed result mismatch (-want +got):\n%s", diff)
	}
}

func TestRootSetDropsDuplicates(t *testing.T) {
	root := selection.Collection("tags", shape.SetOf(shape.String), selection.Leaf("", shape.String))
	src := query.FromSlice(shape.String, []any{"a", "b", "a", "c", "b"})

	p, err := projector.New().Compile(root, src.ElementType())
	require.NoError(t, err)
	require.Equal(t, "e0.Select(e1 => e1).Distinct()", plan.Format(p.Plan))

	out, err := p.Apply(context.Background(), src)
	require.NoError(t, err)
	require.ElementsMatch(t, []any{"a", "b", "c"}, collect(t, out))

	page := out.Where(func(v any) (bool, error) { return v != "a", nil }).Take(1)
	if diff := cmp.Diff([]any{"b"}, collect(t, page)); diff != "" {
		t.Fatalf("composed result mismatch (-want +got):\n%s", diff)
	}
}

func TestPassThroughIsIdentity(t *testing.T) {
	src := query.FromSlice(rawPerson, people())
	out, err := projector.New().Project(context.Background(), src, selection.Leaf("person", rawPerson))
	require.NoError(t, err)
	require.Equal(t, people(), collect(t, out))
}

func TestRecordTargets(t *testing.T) {
	tagged := shape.NewRecord("Tagged", []shape.Param{
		{Name: "name", Type: shape.String},
		{Name: "tags", Type: shape.SetOf(shape.String)},
		{Name: "scores", Type: shape.ArrayOf(shape.Int)},
		{Name: "label", Type: shape.String},
	})
	root := selection.Fields("item", shape.Object(tagged),
		selection.Leaf("NAME", shape.String),
		selection.Collection("tags", shape.SetOf(shape.String), selection.Leaf("", shape.String)),
		selection.Collection("scores", shape.ArrayOf(shape.Int), selection.Leaf("", shape.Int)),
		selection.Leaf("label", shape.String).Computed(func(v any) (any, error) {
			return "#" + v.(map[string]any)["name"].(string), nil
		}),
	)
	src := query.FromSlice(shape.Any, []any{
		map[string]any{"name": "a", "tags": []any{"t1", "t2", "t1"}, "scores": []any{3, 1, 3}},
	})

	out, err := projector.New().Project(context.Background(), src, root)
	require.NoError(t, err)
	got := collect(t, out)
	require.Len(t, got, 1)
	item := got[0].(map[string]any)
	require.Equal(t, "a", item["name"])
	require.Equal(t, "#a", item["label"])
	require.ElementsMatch(t, []any{"t1", "t2"}, item["tags"])
	require.Equal(t, []any{3, 1, 3}, item["scores"])
}

func TestCanonicalConstructorDefaults(t *testing.T) {
	point := shape.NewRecord("Point", []shape.Param{
		{Name: "x", Type: shape.Int},
		{Name: "y", Type: shape.Int},
	}, shape.Immutable())
	root := selection.Fields("point", shape.Object(point), selection.Leaf("x", shape.Int))
	src := query.FromSlice(shape.Any, []any{map[string]any{"x": 5, "y": 9}})

	out, err := projector.New().Project(context.Background(), src, root)
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"x": 5, "y": 0}}, collect(t, out))
}

func TestNullableShape(t *testing.T) {
	pet := shape.Object(petShape)
	owner := shape.NewRecord("Owner", []shape.Param{{Name: "pet", Type: shape.NullableOf(pet)}})
	root := selection.Fields("owner", shape.Object(owner),
		selection.Fields("pet", shape.NullableOf(pet), selection.Leaf("name", shape.String)),
	)
	src := query.FromSlice(shape.Any, []any{
		map[string]any{"pet": map[string]any{"name": "x"}},
		map[string]any{"pet": nil},
	})

	out, err := projector.New().Project(context.Background(), src, root)
	require.NoError(t, err)
	want := []any{
		map[string]any{"pet": &Pet{Name: "x"}},
		map[string]any{"pet": nil},
	}
	if diff := cmp.Diff(want, collect(t, out)); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileErrorsBeforeSourceAccess(t *testing.T) {
	touched := false
	src := query.FromSeq(shape.Any, func(yield func(any, error) bool) {
		touched = true
	})
	root := selection.Fields("pair", shape.Object(shape.Tuple("Pair")), selection.Leaf("first", shape.String))

	_, err := projector.New().Project(context.Background(), src, root)
	require.ErrorIs(t, err, plan.ErrUnsupportedShape)
	require.False(t, touched)
}

func TestRuntimeErrorsSurfaceOnIteration(t *testing.T) {
	boom := errors.New("boom")
	root := selection.Fields("pet", shape.Object(petShape),
		selection.Leaf("name", shape.String).Computed(func(any) (any, error) { return nil, boom }),
	)
	out, err := projector.New().Project(context.Background(), query.FromSlice(shape.Any, []any{1}), root)
	require.NoError(t, err)

	_, err = query.ToList(out.Iter(context.Background()))
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "resolve name")
}

func TestProjectionIsReusable(t *testing.T) {
	p, err := projector.New().Compile(personSelection(), rawPerson)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]any, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := p.Apply(context.Background(), query.FromSlice(rawPerson, people()[i%3:]))
			if err != nil {
				return
			}
			results[i], _ = query.ToList(out.Iter(context.Background()))
		}()
	}
	wg.Wait()
	for i, r := range results {
		require.Len(t, r, 3-i%3)
	}
}

func TestCompileEvents(t *testing.T) {
	bus := eventbus.New()
	var started []events.CompileStart
	var finished []events.CompileFinish
	eventbus.Attach(bus, func(_ context.Context, e events.CompileStart) { started = append(started, e) })
	eventbus.Attach(bus, func(_ context.Context, e events.CompileFinish) { finished = append(finished, e) })

	proj := projector.New(projector.WithBus(bus))
	_, err := proj.Compile(personSelection(), rawPerson)
	require.NoError(t, err)
	_, err = proj.Compile(selection.Fields("p", shape.Object(shape.Union("U"))), rawPerson)
	require.Error(t, err)

	require.Len(t, started, 2)
	require.Equal(t, "person{name age pets[{name}]}", started[0].Selection)
	require.Equal(t, "RawPerson", started[0].ElementType)
	require.Len(t, finished, 2)
	require.Equal(t,
		"e0.Select(e1 => new Person() { name = e1.name, age = e1.age, pets = e1.pets.Map(e2 => new Pet() { name = e2.name }).ToList() })",
		finished[0].Plan)
	require.NoError(t, finished[0].Err)
	require.ErrorIs(t, finished[1].Err, plan.ErrUnsupportedShape)
	require.Empty(t, finished[1].Plan)
}

func TestLowerRequiresResolverFunction(t *testing.T) {
	_, err := projector.Lower(&plan.Invoke{From: &plan.Input{Name: "e0"}, Field: "f"})
	require.ErrorContains(t, err, "has no resolver function")
}
