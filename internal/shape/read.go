package shape

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// ReadMember reads the member called name from value. Names match
// case-insensitively. Supported values are map[string]any, protobuf messages,
// Go structs (and pointers to them) and string-keyed maps. A nil value reads
// as nil.
func ReadMember(value any, name string) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if x, ok := v[name]; ok {
			return x, nil
		}
		key := Fold(name)
		for k, x := range v {
			if Fold(k) == key {
				return x, nil
			}
		}
		return nil, nil
	case protoreflect.Message:
		return readMessage(v, name)
	case proto.Message:
		return readMessage(v.ProtoReflect(), name)
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		f, ok := fieldByFoldedName(rv.Type(), name)
		if !ok {
			return nil, fmt.Errorf("%s has no member %q", rv.Type(), name)
		}
		return rv.FieldByIndex(f.Index).Interface(), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		key := Fold(name)
		iter := rv.MapRange()
		for iter.Next() {
			if Fold(iter.Key().String()) == key {
				return iter.Value().Interface(), nil
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("cannot read member %q of %T", name, value)
}

func fieldByFoldedName(t reflect.Type, name string) (reflect.StructField, bool) {
	key := Fold(name)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if Fold(f.Name) == key {
			return f, true
		}
		if tag := jsonName(f); tag != "" && Fold(tag) == key {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func readMessage(msg protoreflect.Message, name string) (any, error) {
	fd := FieldByFoldedName(msg.Descriptor(), name)
	if fd == nil {
		return nil, fmt.Errorf("message %s has no field %q", msg.Descriptor().FullName(), name)
	}
	if fd.IsList() {
		list := msg.Get(fd).List()
		out := make([]any, list.Len())
		for i := range out {
			out[i] = protoValueToGo(fd, list.Get(i))
		}
		return out, nil
	}
	if !msg.Has(fd) && (fd.Message() != nil || fd.HasPresence()) {
		return nil, nil
	}
	return protoValueToGo(fd, msg.Get(fd)), nil
}

// FieldByFoldedName resolves a protobuf field by name or JSON name,
// case-insensitively.
func FieldByFoldedName(md protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	key := Fold(name)
	fields := md.Fields()
	for i := range fields.Len() {
		fd := fields.Get(i)
		if Fold(string(fd.Name())) == key || Fold(fd.JSONName()) == key {
			return fd
		}
	}
	return nil
}

func protoValueToGo(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return v.Message()
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	default:
		return v.Interface()
	}
}
