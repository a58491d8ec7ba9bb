package shape

import (
	"fmt"
	"reflect"
	"strings"
)

// StructDescriptor describes a Go struct through runtime reflection.
//
// Without options a struct is a GeneralObject: it is constructed with new(T)
// (or a registered constructor function) and its exported fields are the
// settable members. Registering a canonical constructor turns it into an
// immutable NominalConstructible shape that exposes no settable members.
type StructDescriptor struct {
	typ     reflect.Type
	name    string
	form    Form
	ctors   []*Constructor
	members []*Member
}

var (
	_ Descriptor = (*StructDescriptor)(nil)
	_ Reader     = (*StructDescriptor)(nil)
)

type structConfig struct {
	name      string
	form      Form
	canonical *ctorSpec
	ctors     []ctorSpec
}

type ctorSpec struct {
	fn    any
	names []string
}

type StructOption func(*structConfig)

// WithName overrides the shape name (defaults to the Go type name).
func WithName(name string) StructOption { return func(c *structConfig) { c.name = name } }

// WithConstructor registers an additional constructor function. names gives
// the parameter names in declaration order.
func WithConstructor(fn any, names ...string) StructOption {
	return func(c *structConfig) { c.ctors = append(c.ctors, ctorSpec{fn: fn, names: names}) }
}

// WithCanonical registers the canonical, fully-parameterized constructor.
func WithCanonical(fn any, names ...string) StructOption {
	return func(c *structConfig) { c.canonical = &ctorSpec{fn: fn, names: names} }
}

// AsTuple marks the struct as positional.
func AsTuple() StructOption { return func(c *structConfig) { c.form = FormTuple } }

// Struct describes T, which must be a struct type.
func Struct[T any](opts ...StructOption) (*StructDescriptor, error) {
	return StructOf(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

// MustStruct is like Struct but panics on error.
func MustStruct[T any](opts ...StructOption) *StructDescriptor {
	d, err := Struct[T](opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func StructOf(rt reflect.Type, opts ...StructOption) (*StructDescriptor, error) {
	return newStructDescriptor(rt, map[reflect.Type]*StructDescriptor{}, opts...)
}

func newStructDescriptor(rt reflect.Type, seen map[reflect.Type]*StructDescriptor, opts ...StructOption) (*StructDescriptor, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("shape: %s is not a struct", rt)
	}
	cfg := structConfig{name: rt.Name()}
	for _, o := range opts {
		o(&cfg)
	}
	d := &StructDescriptor{typ: rt, name: cfg.name, form: cfg.form}
	seen[rt] = d

	if cfg.canonical != nil {
		c, err := funcConstructor(rt, *cfg.canonical, seen)
		if err != nil {
			return nil, err
		}
		c.Canonical = true
		d.ctors = []*Constructor{c}
		return d, nil
	}

	d.ctors = append(d.ctors, &Constructor{New: func([]any) (any, error) {
		return reflect.New(rt).Interface(), nil
	}})
	for _, spec := range cfg.ctors {
		c, err := funcConstructor(rt, spec, seen)
		if err != nil {
			return nil, err
		}
		d.ctors = append(d.ctors, c)
	}
	for _, f := range reflect.VisibleFields(rt) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		d.members = append(d.members, structMember(f, seen))
	}
	return d, nil
}

func structMember(f reflect.StructField, seen map[reflect.Type]*StructDescriptor) *Member {
	name := f.Name
	if tag := jsonName(f); tag != "" {
		name = tag
	}
	index := f.Index
	return &Member{
		Name: name,
		Type: typeOfGo(f.Type, seen),
		Set: func(target, value any) error {
			rv := reflect.ValueOf(target)
			if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
				return fmt.Errorf("cannot set %s on %T", name, target)
			}
			return Assign(rv.Elem().FieldByIndex(index), value)
		},
	}
}

func funcConstructor(rt reflect.Type, spec ctorSpec, seen map[reflect.Type]*StructDescriptor) (*Constructor, error) {
	fv := reflect.ValueOf(spec.fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("shape: constructor for %s is %s, not a func", rt, ft)
	}
	if ft.NumIn() != len(spec.names) {
		return nil, fmt.Errorf("shape: constructor for %s takes %d parameters, %d names given", rt, ft.NumIn(), len(spec.names))
	}
	out := ft.NumOut()
	returnsErr := out == 2 && ft.Out(1) == errorType
	if out == 0 || out > 2 || (out == 2 && !returnsErr) {
		return nil, fmt.Errorf("shape: constructor for %s must return the value and optionally an error", rt)
	}
	if res := ft.Out(0); res != rt && res != reflect.PointerTo(rt) {
		return nil, fmt.Errorf("shape: constructor for %s returns %s", rt, res)
	}

	params := make([]Param, ft.NumIn())
	for i := range params {
		params[i] = Param{Name: spec.names[i], Type: typeOfGo(ft.In(i), seen)}
	}
	return &Constructor{
		Params: params,
		New: func(args []any) (any, error) {
			in := make([]reflect.Value, ft.NumIn())
			for i := range in {
				v := reflect.New(ft.In(i)).Elem()
				if err := Assign(v, args[i]); err != nil {
					return nil, fmt.Errorf("argument %s: %w", spec.names[i], err)
				}
				in[i] = v
			}
			res := fv.Call(in)
			if returnsErr && !res[1].IsNil() {
				return nil, res[1].Interface().(error)
			}
			return res[0].Interface(), nil
		},
	}, nil
}

func (d *StructDescriptor) Name() string                 { return d.name }
func (d *StructDescriptor) Form() Form                   { return d.form }
func (d *StructDescriptor) Constructors() []*Constructor { return d.ctors }
func (d *StructDescriptor) Members() []*Member           { return d.members }
func (d *StructDescriptor) GoType() reflect.Type         { return d.typ }

func (d *StructDescriptor) Read(value any, member string) (any, error) {
	return ReadMember(value, member)
}

// TypeOfGo maps a Go type to a type descriptor: structs become objects,
// slices lists, arrays arrays, map[K]struct{} sets, pointers nullables and
// everything else a scalar carrying its zero value.
func TypeOfGo(rt reflect.Type) *Type {
	return typeOfGo(rt, map[reflect.Type]*StructDescriptor{})
}

func typeOfGo(rt reflect.Type, seen map[reflect.Type]*StructDescriptor) *Type {
	switch rt.Kind() {
	case reflect.Pointer:
		return NullableOf(typeOfGo(rt.Elem(), seen))
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return Scalar("Bytes", []byte(nil))
		}
		return ListOf(typeOfGo(rt.Elem(), seen))
	case reflect.Array:
		return ArrayOf(typeOfGo(rt.Elem(), seen))
	case reflect.Map:
		if rt.Elem() == emptyStructType {
			return SetOf(typeOfGo(rt.Key(), seen))
		}
		return Scalar(rt.String(), nil)
	case reflect.Interface:
		return Object(Union(rt.String()))
	case reflect.Struct:
		if d, ok := seen[rt]; ok {
			return Object(d)
		}
		d, err := newStructDescriptor(rt, seen)
		if err != nil {
			return Scalar(rt.String(), nil)
		}
		return Object(d)
	default:
		return Scalar(rt.String(), reflect.Zero(rt).Interface())
	}
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

var (
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	emptyStructType = reflect.TypeOf(struct{}{})
)
