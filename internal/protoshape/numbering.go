package protoshape

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	maxFieldNumber = 31767
	reservedStart  = 19000
	reservedEnd    = 19999
)

func allocateFieldNumbers(fieldBuilders []*protobuilder.FieldBuilder) error {
	names := make([]string, len(fieldBuilders))
	for i, fb := range fieldBuilders {
		names[i] = string(fb.Name())
	}
	numbers, err := fnvNumbers(names)
	if err != nil {
		return err
	}
	for i, fb := range fieldBuilders {
		fb.SetNumber(protoreflect.FieldNumber(numbers[i]))
	}
	return nil
}

func allocateEnumValueNumbers(valueBuilders []*protobuilder.EnumValueBuilder) error {
	names := make([]string, len(valueBuilders))
	for i, vb := range valueBuilders {
		names[i] = string(vb.Name())
	}
	numbers, err := fnvNumbers(names)
	if err != nil {
		return err
	}
	for i, vb := range valueBuilders {
		vb.SetNumber(protoreflect.EnumNumber(numbers[i]))
	}
	return nil
}

// fnvNumbers assigns stable tag numbers to names. A name's candidate is
// FNV-32a(name) mod 31767 plus one; collisions and the reserved block
// 19000-19999 are resolved by linear probing. Names are processed in sorted
// order so the result does not depend on declaration order.
func fnvNumbers(names []string) ([]int, error) {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return names[order[i]] < names[order[j]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, idx := range order {
		cand := int(fnv32(names[idx])%maxFieldNumber) + 1
		assigned := false
		for range maxFieldNumber {
			if cand >= reservedStart && cand <= reservedEnd {
				cand = reservedEnd + 1
			}
			if !used[cand] {
				used[cand] = true
				out[idx] = cand
				assigned = true
				break
			}
			if cand++; cand > maxFieldNumber {
				cand = 1
			}
		}
		if !assigned {
			return nil, fmt.Errorf("no field number left for %q", names[idx])
		}
	}
	return out, nil
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
