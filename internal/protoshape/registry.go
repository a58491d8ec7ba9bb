package protoshape

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/shape"
)

// Registry holds the generated file and one shape descriptor per message.
type Registry struct {
	file   protoreflect.FileDescriptor
	shapes map[string]*Message
	fields map[[2]string]protoreflect.FieldDescriptor
}

func newRegistry(sch *schema.Schema, fd protoreflect.FileDescriptor, fieldNames map[[2]string]protoreflect.Name) (*Registry, error) {
	r := &Registry{
		file:   fd,
		shapes: make(map[string]*Message),
		fields: make(map[[2]string]protoreflect.FieldDescriptor, len(fieldNames)),
	}
	byFullName := make(map[protoreflect.FullName]*Message)

	messages := fd.Messages()
	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		t := sch.Types[string(md.Name())]
		if t == nil {
			return nil, fmt.Errorf("message %s has no schema type", md.Name())
		}
		m := &Message{name: t.Name, md: md, form: shape.FormUnion, byField: map[string]protoreflect.FieldDescriptor{}}
		if t.Kind == schema.TypeKindObject {
			m.form = shape.FormRecord
			m.ctors = []*shape.Constructor{{New: m.newMessage}}
		}
		r.shapes[t.Name] = m
		byFullName[md.FullName()] = m
	}

	for key, name := range fieldNames {
		m := r.shapes[key[0]]
		if m == nil {
			continue
		}
		fd := m.md.Fields().ByName(name)
		if fd == nil {
			return nil, fmt.Errorf("message %s has no field %s", key[0], name)
		}
		r.fields[key] = fd
		m.byField[key[1]] = fd
	}

	// Members follow schema field order.
	for name, m := range r.shapes {
		t := sch.Types[name]
		if t.Kind != schema.TypeKindObject {
			continue
		}
		m.members = make([]*shape.Member, 0, len(t.Fields))
		for _, f := range t.Fields {
			fd := m.byField[f.Name]
			m.members = append(m.members, &shape.Member{
				Name: f.Name,
				Type: memberType(fd, byFullName),
				Set:  m.setter(fd),
			})
		}
	}
	return r, nil
}

// File returns the generated file descriptor.
func (r *Registry) File() protoreflect.FileDescriptor { return r.file }

// Descriptor returns the shape of the message generated for the GraphQL
// type name.
func (r *Registry) Descriptor(name string) (*Message, error) {
	m, ok := r.shapes[name]
	if !ok {
		return nil, fmt.Errorf("no message for type %q", name)
	}
	return m, nil
}

// FieldDescriptor returns the protobuf field generated for a GraphQL field,
// or nil.
func (r *Registry) FieldDescriptor(typeName, field string) protoreflect.FieldDescriptor {
	return r.fields[[2]string{typeName, field}]
}

// Message is the shape descriptor of one generated message. Object types
// construct empty dynamic messages and expose one settable member per
// GraphQL field; interfaces and unions have the union form and cannot be
// constructed.
type Message struct {
	name    string
	md      protoreflect.MessageDescriptor
	form    shape.Form
	ctors   []*shape.Constructor
	members []*shape.Member
	byField map[string]protoreflect.FieldDescriptor
}

var (
	_ shape.Descriptor = (*Message)(nil)
	_ shape.Reader     = (*Message)(nil)
)

func (m *Message) Name() string                       { return m.name }
func (m *Message) Form() shape.Form                   { return m.form }
func (m *Message) Constructors() []*shape.Constructor { return m.ctors }
func (m *Message) Members() []*shape.Member           { return m.members }

// MessageDescriptor returns the descriptor of the generated message.
func (m *Message) MessageDescriptor() protoreflect.MessageDescriptor { return m.md }

func (m *Message) newMessage([]any) (any, error) {
	return dynamicpb.NewMessage(m.md), nil
}

// Read reads a GraphQL field from value. Messages of this descriptor are
// read through the generated field; any other value is read generically.
func (m *Message) Read(value any, member string) (any, error) {
	if msg, ok := asMessage(value); ok && msg.Descriptor().FullName() == m.md.FullName() {
		if fd, ok := m.byField[member]; ok {
			v, err := shape.ReadMember(msg, string(fd.Name()))
			if err != nil || fd.Enum() == nil {
				return v, err
			}
			return enumNames(fd.Enum(), v), nil
		}
	}
	return shape.ReadMember(value, member)
}

// enumNames turns protobuf enum value names back into GraphQL ones.
func enumNames(ed protoreflect.EnumDescriptor, v any) any {
	prefix := string(nameProtoEnumValue(string(ed.Name()), ""))
	switch x := v.(type) {
	case string:
		return strings.TrimPrefix(x, prefix)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = enumNames(ed, e)
		}
		return out
	}
	return v
}

func (m *Message) setter(fd protoreflect.FieldDescriptor) func(target, value any) error {
	return func(target, value any) error {
		msg, ok := asMessage(target)
		if !ok || msg.Descriptor().FullName() != m.md.FullName() {
			return fmt.Errorf("cannot set %s on %T", fd.Name(), target)
		}
		if isNil(value) {
			msg.Clear(fd)
			return nil
		}
		if fd.IsList() {
			list := msg.NewField(fd).List()
			err := shape.EachElement(value, func(e any) error {
				v, err := toValue(fd, e)
				if err != nil {
					return err
				}
				list.Append(v)
				return nil
			})
			if err != nil {
				return err
			}
			msg.Set(fd, protoreflect.ValueOfList(list))
			return nil
		}
		v, err := toValue(fd, value)
		if err != nil {
			return err
		}
		msg.Set(fd, v)
		return nil
	}
}

// memberType describes the values a generated field holds.
func memberType(fd protoreflect.FieldDescriptor, messages map[protoreflect.FullName]*Message) *shape.Type {
	var elem *shape.Type
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if m := messages[fd.Message().FullName()]; m != nil {
			elem = shape.Object(m)
		} else {
			elem = shape.Any
		}
	case protoreflect.EnumKind:
		elem = shape.Scalar(string(fd.Enum().Name()), "")
	case protoreflect.StringKind:
		elem = shape.String
	case protoreflect.BoolKind:
		elem = shape.Boolean
	case protoreflect.DoubleKind:
		elem = shape.Float
	case protoreflect.FloatKind:
		elem = shape.Scalar("Float32", float32(0))
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		elem = shape.Scalar("Int32", int32(0))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		elem = shape.Scalar("Int64", int64(0))
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		elem = shape.Scalar("Uint32", uint32(0))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		elem = shape.Scalar("Uint64", uint64(0))
	case protoreflect.BytesKind:
		elem = shape.Scalar("Bytes", []byte(nil))
	default:
		elem = shape.Any
	}
	switch {
	case fd.IsList():
		return shape.ListOf(elem)
	case fd.HasPresence():
		return shape.NullableOf(elem)
	default:
		return elem
	}
}
