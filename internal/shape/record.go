package shape

import "fmt"

// Record is a pre-registered shape whose values are map[string]any keyed by
// field name. Mutable records are constructed empty and filled through
// settable members; immutable records expose one canonical constructor that
// takes every field.
type Record struct {
	name      string
	fields    []Param
	immutable bool
	ctors     []*Constructor
	members   []*Member
}

var (
	_ Descriptor = (*Record)(nil)
	_ Reader     = (*Record)(nil)
)

type RecordOption func(*Record)

// Immutable turns the record into a nominal shape with a canonical constructor.
func Immutable() RecordOption { return func(r *Record) { r.immutable = true } }

// NewRecord registers a record shape. The field set is fixed at creation.
func NewRecord(name string, fields []Param, opts ...RecordOption) *Record {
	r := &Record{name: name, fields: append([]Param(nil), fields...)}
	for _, o := range opts {
		o(r)
	}
	if r.immutable {
		r.ctors = []*Constructor{{Params: r.fields, Canonical: true, New: r.newFromArgs}}
		return r
	}
	r.ctors = []*Constructor{{New: func([]any) (any, error) { return make(map[string]any, len(r.fields)), nil }}}
	r.members = make([]*Member, len(r.fields))
	for i, f := range r.fields {
		name := f.Name
		r.members[i] = &Member{Name: name, Type: f.Type, Set: func(target, value any) error {
			m, ok := target.(map[string]any)
			if !ok {
				return fmt.Errorf("record %s: cannot set %s on %T", r.name, name, target)
			}
			m[name] = value
			return nil
		}}
	}
	return r
}

func (r *Record) newFromArgs(args []any) (any, error) {
	if len(args) != len(r.fields) {
		return nil, fmt.Errorf("record %s: expected %d arguments, got %d", r.name, len(r.fields), len(args))
	}
	m := make(map[string]any, len(r.fields))
	for i, f := range r.fields {
		m[f.Name] = args[i]
	}
	return m, nil
}

func (r *Record) Name() string                 { return r.name }
func (r *Record) Form() Form                   { return FormRecord }
func (r *Record) Constructors() []*Constructor { return r.ctors }
func (r *Record) Members() []*Member           { return r.members }
func (r *Record) Fields() []Param              { return r.fields }

func (r *Record) Read(value any, member string) (any, error) {
	return ReadMember(value, member)
}

// opaque is a descriptor with a fixed non-record form.
type opaque struct {
	name string
	form Form
}

func (o opaque) Name() string                 { return o.name }
func (o opaque) Form() Form                   { return o.form }
func (o opaque) Constructors() []*Constructor { return nil }
func (o opaque) Members() []*Member           { return nil }

// Tuple returns a positional shape. It never classifies as constructible.
func Tuple(name string) Descriptor { return opaque{name: name, form: FormTuple} }

// Union returns a sum shape. It never classifies as constructible.
func Union(name string) Descriptor { return opaque{name: name, form: FormUnion} }
