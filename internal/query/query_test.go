package query_test

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/shape"
)

func ints(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func drain(t *testing.T, q query.Query) []any {
	t.Helper()
	got, err := query.ToList(q.Iter(context.Background()))
	require.NoError(t, err)
	return got
}

func TestOperatorsCompose(t *testing.T) {
	src := query.FromSlice(shape.Int, ints(10))
	double := func(v any) (any, error) { return v.(int) * 2, nil }
	even := func(v any) (bool, error) { return v.(int)%4 == 0, nil }

	q := src.Select(double, shape.Int).Where(even).Skip(1).Take(2)

	if diff := cmp.Diff([]any{8, 12}, drain(t, q)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	// Iterating again re-runs the pipeline from the source.
	if diff := cmp.Diff([]any{8, 12}, drain(t, q)); diff != "" {
		t.Fatalf("second iteration mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, ints(10), drain(t, src), "source must be unchanged")
}

func TestSelectIsLazy(t *testing.T) {
	calls := 0
	q := query.FromSlice(shape.Int, ints(5)).Select(func(v any) (any, error) {
		calls++
		return v, nil
	}, shape.Int)
	require.Zero(t, calls)

	got := drain(t, q.Take(2))
	require.Len(t, got, 2)
	require.Equal(t, 2, calls)
}

func TestTakeZero(t *testing.T) {
	require.Empty(t, drain(t, query.FromSlice(shape.Int, ints(3)).Take(0)))
}

func TestErrorsStopIteration(t *testing.T) {
	boom := errors.New("boom")
	q := query.FromSlice(shape.Int, ints(3)).Select(func(v any) (any, error) {
		if v.(int) == 2 {
			return nil, boom
		}
		return v, nil
	}, shape.Int)
	_, err := query.ToList(q.Iter(context.Background()))
	require.ErrorIs(t, err, boom)
}

func TestIterHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := query.ToList(query.FromSlice(shape.Int, ints(3)).Iter(ctx))
	require.ErrorIs(t, err, context.Canceled)
}

func TestToSet(t *testing.T) {
	seq := query.FromSlice(shape.Any, []any{
		"a", "b", "a",
		map[string]any{"n": 1}, map[string]any{"n": 1}, map[string]any{"n": 2},
		wrapperspb.String("x"), wrapperspb.String("x"),
	}).Iter(context.Background())

	got, err := query.ToSet(seq)
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.ElementsMatch(t, []any{"a", "b"}, got[:2])
}

func TestDistinct(t *testing.T) {
	calls := 0
	q := query.FromSlice(shape.String, []any{"a", "b", "a", "c", "b"}).Select(func(v any) (any, error) {
		calls++
		return v, nil
	}, shape.String).Distinct()
	require.Zero(t, calls)

	if diff := cmp.Diff([]any{"a", "b"}, drain(t, q.Take(2))); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 2, calls)
	// Every iteration forgets what the previous one saw.
	if diff := cmp.Diff([]any{"a", "b", "c"}, drain(t, q)); diff != "" {
		t.Fatalf("second iteration mismatch (-want +got):\n%s", diff)
	}
}

func TestToArrayCapacity(t *testing.T) {
	got, err := query.ToArray(query.FromSlice(shape.Int, ints(3)).Iter(context.Background()))
	require.NoError(t, err)
	require.Equal(t, 3, cap(got))
}

func TestElements(t *testing.T) {
	ctx := context.Background()
	var seq1 iter.Seq[any] = func(yield func(any) bool) {
		for _, v := range []any{1, 2} {
			if !yield(v) {
				return
			}
		}
	}
	cases := []struct {
		name  string
		value any
		want  []any
	}{
		{"any slice", []any{1, 2}, []any{1, 2}},
		{"typed slice", []string{"a", "b"}, []any{"a", "b"}},
		{"array", [2]int{3, 4}, []any{3, 4}},
		{"query", query.FromSlice(shape.Int, ints(2)), []any{1, 2}},
		{"seq", query.FromSlice(shape.Int, ints(2)).Iter(ctx), []any{1, 2}},
		{"iter.Seq", seq1, []any{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := query.Elements(ctx, tc.value)
			require.NoError(t, err)
			got, err := query.ToList(seq)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("elements mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := query.Elements(ctx, 42)
	require.ErrorContains(t, err, "not enumerable")

	seq, err := query.Elements(ctx, []int(nil))
	require.NoError(t, err)
	require.Nil(t, seq)
}

func TestEqual(t *testing.T) {
	require.True(t, query.Equal(wrapperspb.Int32(1), wrapperspb.Int32(1)))
	require.False(t, query.Equal(wrapperspb.Int32(1), wrapperspb.Int32(2)))
	require.False(t, query.Equal(wrapperspb.Int32(1), 1))
	require.True(t, query.Equal([]any{1}, []any{1}))
}
