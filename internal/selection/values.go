package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/projector/internal/language"
	"github.com/hanpama/projector/internal/schema"
)

// coerceVariableValues coerces the provided variables to the types the
// operation declares, applying defaults.
func coerceVariableValues(sch *schema.Schema, op *language.OperationDefinition, provided map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		name := def.Variable
		val, ok := provided[name]
		if !ok {
			val, ok = provided[strings.TrimPrefix(name, "$")]
		}
		if !ok {
			switch {
			case def.DefaultValue != nil:
				val = literalValue(def.DefaultValue, nil)
			case def.Type.NonNull:
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, def.Type.String())
			default:
				continue
			}
		}
		cv, err := coerceValue(sch, val, schema.TypeRefFromAST(def.Type))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s: %w", name, def.Type.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// argumentValues coerces the arguments of one field, filling in defaults.
func argumentValues(sch *schema.Schema, def *schema.Field, args language.ArgumentList, vars map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(def.Arguments))
	for _, argDef := range def.Arguments {
		arg := args.ForName(argDef.Name)
		if arg == nil || (arg.Value.Kind == language.Variable && !hasVariable(vars, arg.Value.Raw)) {
			if argDef.DefaultValue != nil {
				cv, err := coerceValue(sch, argDef.DefaultValue, argDef.Type)
				if err != nil {
					return nil, fmt.Errorf("argument %q default: %w", argDef.Name, err)
				}
				out[argDef.Name] = cv
			} else if argDef.Type.IsNonNull() {
				return nil, fmt.Errorf("argument %q of required type %s was not provided", argDef.Name, argDef.Type)
			}
			continue
		}
		cv, err := coerceValue(sch, literalValue(arg.Value, vars), argDef.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", argDef.Name, err)
		}
		out[argDef.Name] = cv
	}
	return out, nil
}

func hasVariable(vars map[string]any, name string) bool {
	_, ok := vars[name]
	return ok
}

// literalValue converts a literal to a Go value, substituting variables.
func literalValue(v *language.Value, vars map[string]any) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return vars[v.Raw]
	case language.IntValue:
		if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return int(i)
		}
		return nil
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw
	case language.BooleanValue:
		return v.Raw == "true"
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = literalValue(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = literalValue(c.Value, vars)
		}
		return out
	default:
		return nil
	}
}

func coerceValue(sch *schema.Schema, value any, ref *schema.TypeRef) (any, error) {
	if ref.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("null given for non-null type %s", ref)
		}
		return coerceValue(sch, value, ref.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if ref.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			// A single value is a list of one.
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := coerceValue(sch, item, ref.OfType)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	switch name := ref.Named; name {
	case schema.Int:
		return coerceInt(value)
	case schema.Float:
		return coerceFloat(value)
	case schema.String:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case schema.Boolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case schema.ID:
		switch v := value.(type) {
		case string:
			return v, nil
		case int, int32, int64:
			return fmt.Sprint(v), nil
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
	default:
		return coerceNamed(sch, value, name)
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to %s", value, value, ref.Named)
}

func coerceNamed(sch *schema.Schema, value any, name string) (any, error) {
	t := sch.Types[name]
	if t == nil {
		return nil, fmt.Errorf("unknown type %s", name)
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		s, ok := value.(string)
		if ok {
			for _, ev := range t.EnumValues {
				if ev.Name == s {
					return s, nil
				}
			}
		}
		return nil, fmt.Errorf("%v is not a value of enum %s", value, name)
	case schema.TypeKindInputObject:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot coerce %T to input object %s", value, name)
		}
		out := make(map[string]any, len(t.InputFields))
		for _, f := range t.InputFields {
			v, ok := m[f.Name]
			if !ok {
				if f.DefaultValue != nil {
					out[f.Name] = f.DefaultValue
				} else if f.Type.IsNonNull() {
					return nil, fmt.Errorf("field %s.%s of required type %s was not provided", name, f.Name, f.Type)
				}
				continue
			}
			cv, err := coerceValue(sch, v, f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", name, f.Name, err)
			}
			out[f.Name] = cv
		}
		for k := range m {
			if !hasInputField(t, k) {
				return nil, fmt.Errorf("field %q is not defined on input object %s", k, name)
			}
		}
		return out, nil
	default:
		// Custom scalars pass through unchanged.
		return value, nil
	}
}

func hasInputField(t *schema.Type, name string) bool {
	for _, f := range t.InputFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func coerceInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}
