package introspection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hanpama/projector/internal/schema"
)

// Describe returns the __Schema value of sch. Named types are described
// once and shared by every reference, so the result is a cyclic graph of
// maps; it is meant to be projected, not serialized. Deprecated fields,
// arguments and values are always listed and carry isDeprecated.
func Describe(sch *schema.Schema) map[string]any {
	d := &describer{sch: sch, types: make(map[string]map[string]any, len(sch.Types))}

	names := schema.SortedTypeNames(sch)
	for _, name := range names {
		t := sch.Types[name]
		d.types[name] = map[string]any{
			"kind":           string(t.Kind),
			"name":           t.Name,
			"description":    optional(t.Description),
			"specifiedByURL": deref(t.SpecifiedByURL),
			"isOneOf":        t.OneOf,
			"ofType":         nil,
		}
	}
	types := make([]any, len(names))
	for i, name := range names {
		d.fill(sch.Types[name], d.types[name])
		types[i] = d.types[name]
	}

	dirNames := make([]string, 0, len(sch.Directives))
	for name := range sch.Directives {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames)
	directives := make([]any, len(dirNames))
	for i, name := range dirNames {
		directives[i] = d.directive(sch.Directives[name])
	}

	return map[string]any{
		"description":      optional(sch.Description),
		"types":            types,
		"queryType":        d.named(sch.QueryType),
		"mutationType":     d.named(sch.MutationType),
		"subscriptionType": d.named(sch.SubscriptionType),
		"directives":       directives,
	}
}

type describer struct {
	sch   *schema.Schema
	types map[string]map[string]any
}

// fill sets the members of a __Type that only apply to some kinds; the
// others stay null.
func (d *describer) fill(t *schema.Type, out map[string]any) {
	out["fields"] = nil
	out["interfaces"] = nil
	out["possibleTypes"] = nil
	out["enumValues"] = nil
	out["inputFields"] = nil

	switch t.Kind {
	case schema.TypeKindObject, schema.TypeKindInterface:
		fields := make([]any, 0, len(t.Fields))
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			fields = append(fields, d.field(f))
		}
		out["fields"] = fields
		interfaces := make([]any, 0, len(t.Interfaces))
		for _, name := range t.Interfaces {
			if it := d.named(name); it != nil {
				interfaces = append(interfaces, it)
			}
		}
		out["interfaces"] = interfaces
	case schema.TypeKindEnum:
		values := make([]any, len(t.EnumValues))
		for i, ev := range t.EnumValues {
			values[i] = map[string]any{
				"name":              ev.Name,
				"description":       optional(ev.Description),
				"isDeprecated":      ev.IsDeprecated,
				"deprecationReason": reason(ev.IsDeprecated, ev.DeprecationReason),
			}
		}
		out["enumValues"] = values
	case schema.TypeKindInputObject:
		out["inputFields"] = d.inputValues(t.InputFields)
	}

	if t.IsAbstract() {
		possible := []any{}
		for _, pt := range d.sch.PossibleTypes(t) {
			possible = append(possible, d.types[pt.Name])
		}
		out["possibleTypes"] = possible
	}
}

func (d *describer) field(f *schema.Field) map[string]any {
	return map[string]any{
		"name":              f.Name,
		"description":       optional(f.Description),
		"args":              d.inputValues(f.Arguments),
		"type":              d.ref(f.Type),
		"isDeprecated":      f.IsDeprecated,
		"deprecationReason": reason(f.IsDeprecated, f.DeprecationReason),
	}
}

func (d *describer) inputValues(values []*schema.InputValue) []any {
	out := make([]any, len(values))
	for i, v := range values {
		var def any
		if v.DefaultValue != nil {
			def = d.literal(v.DefaultValue, v.Type)
		}
		out[i] = map[string]any{
			"name":              v.Name,
			"description":       optional(v.Description),
			"type":              d.ref(v.Type),
			"defaultValue":      def,
			"isDeprecated":      v.IsDeprecated,
			"deprecationReason": reason(v.IsDeprecated, v.DeprecationReason),
		}
	}
	return out
}

func (d *describer) directive(dir *schema.Directive) map[string]any {
	locations := make([]any, len(dir.Locations))
	for i, l := range dir.Locations {
		locations[i] = l
	}
	return map[string]any{
		"name":         dir.Name,
		"description":  optional(dir.Description),
		"isRepeatable": dir.IsRepeatable,
		"locations":    locations,
		"args":         d.inputValues(dir.Arguments),
	}
}

// ref describes a type reference. Wrapping kinds get their own __Type;
// named types resolve to the shared description.
func (d *describer) ref(r *schema.TypeRef) map[string]any {
	switch r.Kind {
	case schema.TypeRefKindNonNull, schema.TypeRefKindList:
		return map[string]any{
			"kind":   string(r.Kind),
			"name":   nil,
			"ofType": d.ref(r.OfType),
		}
	default:
		if t, ok := d.types[r.Named]; ok {
			return t
		}
		return map[string]any{"kind": string(schema.TypeKindScalar), "name": r.Named}
	}
}

func (d *describer) named(name string) any {
	if name == "" {
		return nil
	}
	if t, ok := d.types[name]; ok {
		return t
	}
	return nil
}

// literal renders a default value in GraphQL syntax.
func (d *describer) literal(v any, ref *schema.TypeRef) string {
	if ref != nil && ref.IsNonNull() {
		ref = ref.OfType
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		if ref != nil && ref.Kind == schema.TypeRefKindNamed {
			if t := d.sch.Types[ref.Named]; t != nil && t.Kind == schema.TypeKindEnum {
				return x
			}
		}
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		var elem *schema.TypeRef
		if ref != nil && ref.Kind == schema.TypeRefKindList {
			elem = ref.OfType
		}
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = d.literal(e, elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		var input *schema.Type
		if ref != nil && ref.Kind == schema.TypeRefKindNamed {
			input = d.sch.Types[ref.Named]
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			var fref *schema.TypeRef
			if input != nil {
				for _, f := range input.InputFields {
					if f.Name == k {
						fref = f.Type
					}
				}
			}
			parts[i] = k + ": " + d.literal(x[k], fref)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func reason(deprecated bool, r string) any {
	if !deprecated {
		return nil
	}
	return r
}
