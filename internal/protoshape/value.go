package protoshape

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/projector/internal/shape"
)

// toValue converts a Go value into a singular value of field fd.
func toValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.StringKind:
		switch s := v.(type) {
		case string:
			return protoreflect.ValueOfString(s), nil
		case []byte:
			return protoreflect.ValueOfString(string(s)), nil
		case fmt.Stringer:
			return protoreflect.ValueOfString(s.String()), nil
		}
		// IDs are often numeric in source data.
		if n, ok := toInt64(v); ok {
			return protoreflect.ValueOfString(strconv.FormatInt(n, 10)), nil
		}
	case protoreflect.BytesKind:
		switch b := v.(type) {
		case []byte:
			return protoreflect.ValueOfBytes(b), nil
		case string:
			return protoreflect.ValueOfBytes([]byte(b)), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := toInt64(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := toInt64(v); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := toInt64(v); ok && n >= 0 && n <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := toInt64(v); ok && n >= 0 {
			return protoreflect.ValueOfUint64(uint64(n)), nil
		}
	case protoreflect.FloatKind:
		if f, ok := toFloat64(v); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := toFloat64(v); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.EnumKind:
		if n, ok := enumNumber(fd.Enum(), v); ok {
			return protoreflect.ValueOfEnum(n), nil
		}
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if msg, ok := asMessage(v); ok {
			if msg.Descriptor().FullName() != fd.Message().FullName() {
				return protoreflect.Value{}, fmt.Errorf("field %s: cannot use %s as %s", fd.Name(), msg.Descriptor().FullName(), fd.Message().FullName())
			}
			return protoreflect.ValueOfMessage(msg), nil
		}
		if rec, ok := v.(map[string]any); ok {
			msg, err := fromMap(fd.Message(), rec)
			if err != nil {
				return protoreflect.Value{}, fmt.Errorf("field %s: %w", fd.Name(), err)
			}
			return protoreflect.ValueOfMessage(msg), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("field %s: cannot use %T as %s", fd.Name(), v, fd.Kind())
}

// fromMap builds a dynamic message from a record keyed by field name or
// JSON name.
func fromMap(md protoreflect.MessageDescriptor, rec map[string]any) (protoreflect.Message, error) {
	msg := dynamicpb.NewMessage(md)
	for k, v := range rec {
		fd := shape.FieldByFoldedName(md, k)
		if fd == nil {
			fd = shape.FieldByFoldedName(md, snakeCase(k))
		}
		if fd == nil {
			return nil, fmt.Errorf("message %s has no field %q", md.FullName(), k)
		}
		if isNil(v) {
			continue
		}
		if fd.IsList() {
			list := msg.NewField(fd).List()
			err := shape.EachElement(v, func(e any) error {
				ev, err := toValue(fd, e)
				if err != nil {
					return err
				}
				list.Append(ev)
				return nil
			})
			if err != nil {
				return nil, err
			}
			msg.Set(fd, protoreflect.ValueOfList(list))
			continue
		}
		fv, err := toValue(fd, v)
		if err != nil {
			return nil, err
		}
		msg.Set(fd, fv)
	}
	return msg, nil
}

// enumNumber accepts GraphQL enum value names, full protobuf value names
// and numbers.
func enumNumber(ed protoreflect.EnumDescriptor, v any) (protoreflect.EnumNumber, bool) {
	switch x := v.(type) {
	case protoreflect.EnumNumber:
		return x, true
	case string:
		values := ed.Values()
		if ev := values.ByName(nameProtoEnumValue(string(ed.Name()), x)); ev != nil {
			return ev.Number(), true
		}
		if ev := values.ByName(protoreflect.Name(strings.ToUpper(x))); ev != nil {
			return ev.Number(), true
		}
		return 0, false
	}
	if n, ok := toInt64(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
		return protoreflect.EnumNumber(n), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.CanInt():
		return rv.Int(), true
	case rv.CanUint():
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case rv.CanFloat():
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.CanFloat():
		return rv.Float(), true
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	}
	return 0, false
}

func asMessage(v any) (protoreflect.Message, bool) {
	switch m := v.(type) {
	case protoreflect.Message:
		return m, true
	case proto.Message:
		return m.ProtoReflect(), true
	}
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
