package server

import (
	"fmt"
	"math"
	"sort"

	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/shape"
)

// Root field arguments with paging meaning. Every other argument filters the
// dataset to elements whose member of the same name equals it.
const (
	argFirst  = "first"
	argOffset = "offset"
)

func applyArguments(src query.Query, args map[string]any) (query.Query, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := args[name]
		if v == nil || name == argFirst || name == argOffset {
			continue
		}
		src = src.Where(func(e any) (bool, error) {
			got, err := shape.ReadMember(e, name)
			if err != nil {
				return false, err
			}
			return looseEqual(got, v), nil
		})
	}

	if v, ok := args[argOffset]; ok && v != nil {
		n, err := toInt(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("argument %s: expected a non-negative integer, got %v", argOffset, v)
		}
		src = src.Skip(n)
	}
	if v, ok := args[argFirst]; ok && v != nil {
		n, err := toInt(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("argument %s: expected a non-negative integer, got %v", argFirst, v)
		}
		src = src.Take(n)
	}
	return src, nil
}

// looseEqual compares numbers by value regardless of their Go type, since
// JSON data decodes to float64 while arguments coerce to int.
func looseEqual(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	return query.Equal(a, b)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func toInt(v any) (int, error) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", v)
	}
	return int(f), nil
}
