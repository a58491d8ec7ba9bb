package plan

import (
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

// construct builds the expression creating target from the selected
// children: constructor parameters are matched by name first, the fields
// left over are assigned to settable members afterwards.
func (b *Builder) construct(target *shape.Type, children []*selection.Node, sourceType *shape.Type, input Expr, path []string) (Expr, error) {
	if shape.Classify(target) == shape.Unsupported {
		return nil, &UnsupportedShapeError{Shape: target.String(), Path: path}
	}
	desc := target.Shape

	selected, err := fieldSet(children, path)
	if err != nil {
		return nil, err
	}

	ctor := chooseConstructor(desc, selected)
	matched := make(map[string]bool, len(ctor.Params))
	args := make([]Arg, len(ctor.Params))
	for i, p := range ctor.Params {
		key := shape.Fold(p.Name)
		child, ok := selected.byKey[key]
		if !ok || matched[key] {
			args[i] = Arg{Param: p.Name, Value: &Default{Result: p.Type}}
			continue
		}
		v, err := b.value(child, sourceType, input, path)
		if err != nil {
			return nil, err
		}
		matched[key] = true
		args[i] = Arg{Param: p.Name, Value: v}
	}
	base := &Construct{Shape: desc, Ctor: ctor, Args: args, Result: target}

	remaining := selected.without(matched)
	if len(remaining) == 0 {
		return base, nil
	}
	assignments := make([]Assignment, 0, len(remaining))
	for _, child := range remaining {
		m := shape.MemberByName(desc, child.Field.Name)
		if m == nil {
			return nil, &ShapeMismatchError{Shape: desc.Name(), Field: child.Field.Name, Path: path}
		}
		v, err := b.value(child, sourceType, input, path)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, Assignment{Member: m, Value: v})
	}
	return &Bind{Base: base, Assignments: assignments}, nil
}

// selectedFields is the set of selected children keyed by folded name,
// keeping selection order.
type selectedFields struct {
	order []string
	byKey map[string]*selection.Node
}

func fieldSet(children []*selection.Node, path []string) (selectedFields, error) {
	s := selectedFields{byKey: make(map[string]*selection.Node, len(children))}
	for _, c := range children {
		key := shape.Fold(c.Field.Name)
		if prev, ok := s.byKey[key]; ok {
			return s, &AmbiguousFieldError{Fields: [2]string{prev.Field.Name, c.Field.Name}, Path: path}
		}
		s.byKey[key] = c
		s.order = append(s.order, key)
	}
	return s, nil
}

// without returns the selected children whose keys are not in matched, in
// selection order.
func (s selectedFields) without(matched map[string]bool) []*selection.Node {
	var out []*selection.Node
	for _, key := range s.order {
		if !matched[key] {
			out = append(out, s.byKey[key])
		}
	}
	return out
}

// chooseConstructor picks the canonical constructor when there is one.
// Otherwise it picks the constructor whose parameter names overlap most
// with the selection, preferring fewer parameters and then declaration
// order on ties.
func chooseConstructor(d shape.Descriptor, selected selectedFields) *shape.Constructor {
	if c := shape.Canonical(d); c != nil {
		return c
	}
	var best *shape.Constructor
	bestOverlap := -1
	for _, c := range d.Constructors() {
		overlap := 0
		for _, p := range c.Params {
			if _, ok := selected.byKey[shape.Fold(p.Name)]; ok {
				overlap++
			}
		}
		switch {
		case overlap > bestOverlap:
		case overlap == bestOverlap && len(c.Params) < len(best.Params):
		default:
			continue
		}
		best, bestOverlap = c, overlap
	}
	return best
}
