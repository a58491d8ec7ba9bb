package query

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Elements returns a lazy sequence over any enumerable value: a Query, a
// Seq, an iter.Seq[any], a protobuf list or a Go slice or array. A nil
// value yields a nil sequence and no error.
func Elements(ctx context.Context, v any) (Seq, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case Query:
		return v.Iter(ctx), nil
	case iter.Seq2[any, error]:
		return v, nil
	case iter.Seq[any]:
		return func(yield func(any, error) bool) {
			for e := range v {
				if !yield(e, nil) {
					return
				}
			}
		}, nil
	case []any:
		return sliceSeq(v), nil
	case protoreflect.List:
		return func(yield func(any, error) bool) {
			for i := 0; i < v.Len(); i++ {
				if !yield(protoListValue(v.Get(i)), nil) {
					return
				}
			}
		}, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		fallthrough
	case reflect.Array:
		return func(yield func(any, error) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface(), nil) {
					return
				}
			}
		}, nil
	}
	return nil, fmt.Errorf("value of type %T is not enumerable", v)
}

func sliceSeq(items []any) Seq {
	return func(yield func(any, error) bool) {
		for _, it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

func protoListValue(v protoreflect.Value) any {
	switch x := v.Interface().(type) {
	case protoreflect.EnumNumber:
		return int32(x)
	default:
		return x
	}
}

// ToList drains seq into a slice, in sequence order.
func ToList(seq Seq) ([]any, error) {
	out := []any{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ToArray drains seq into a slice whose capacity equals its length.
func ToArray(seq Seq) ([]any, error) {
	list, err := ToList(seq)
	if err != nil {
		return nil, err
	}
	return list[:len(list):len(list)], nil
}

// ToSet drains seq dropping duplicate elements. The first occurrence of
// every element is kept; callers must not rely on the order.
func ToSet(seq Seq) ([]any, error) { return ToList(DistinctSeq(seq)) }

// DistinctSeq lazily drops the elements of seq that are Equal to an earlier
// one. Every iteration starts with an empty set of seen elements.
func DistinctSeq(seq Seq) Seq {
	return func(yield func(any, error) bool) {
		var (
			kept []any
			seen = map[any]struct{}{}
		)
		for v, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			if hashable(v) {
				if _, dup := seen[v]; dup {
					continue
				}
				seen[v] = struct{}{}
			} else {
				if containsEqual(kept, v) {
					continue
				}
				kept = append(kept, v)
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// hashable reports whether v can be used as a map key without panicking.
func hashable(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func containsEqual(items []any, v any) bool {
	for _, it := range items {
		if Equal(it, v) {
			return true
		}
	}
	return false
}

// Equal is the element equality sets use: protobuf messages compare with
// proto.Equal, everything else structurally.
func Equal(a, b any) bool {
	if am, ok := asMessage(a); ok {
		if bm, ok := asMessage(b); ok {
			return proto.Equal(am, bm)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asMessage(v any) (proto.Message, bool) {
	switch m := v.(type) {
	case proto.Message:
		return m, true
	case protoreflect.Message:
		return m.Interface(), true
	}
	return nil, false
}
