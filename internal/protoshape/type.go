package protoshape

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/projector/internal/schema"
)

type resolvedType struct {
	isRepeated bool
	isOptional bool
	fieldType  *protobuilder.FieldType
}

// resolveTypeRef maps a GraphQL field type onto a protobuf field type.
// Nullable named types become optional fields and lists become repeated
// fields; lists of lists have no protobuf counterpart.
func (b *builder) resolveTypeRef(ref *schema.TypeRef) (resolvedType, error) {
	switch ref.Kind {
	case schema.TypeRefKindNonNull:
		inner, err := b.resolveTypeRef(ref.OfType)
		if err != nil {
			return resolvedType{}, err
		}
		inner.isOptional = false
		return inner, nil
	case schema.TypeRefKindList:
		elem, err := b.resolveTypeRef(ref.OfType)
		if err != nil {
			return resolvedType{}, err
		}
		if elem.isRepeated {
			return resolvedType{}, fmt.Errorf("nested list %s cannot be represented", ref)
		}
		return resolvedType{isRepeated: true, fieldType: elem.fieldType}, nil
	default:
		ft, err := b.mapNamedType(ref.Named)
		if err != nil {
			return resolvedType{}, err
		}
		return resolvedType{isOptional: true, fieldType: ft}, nil
	}
}

func (b *builder) mapNamedType(name string) (*protobuilder.FieldType, error) {
	if mb, ok := b.messages[name]; ok {
		return protobuilder.FieldTypeMessage(mb), nil
	}
	if eb, ok := b.enums[name]; ok {
		return protobuilder.FieldTypeEnum(eb), nil
	}
	if kind, ok := b.scalars[name]; ok {
		return protobuilder.FieldTypeScalar(kind), nil
	}
	t := b.schema.Types[name]
	if t == nil {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	if t.Kind == schema.TypeKindScalar {
		return protobuilder.FieldTypeScalar(protoreflect.StringKind), nil
	}
	return nil, fmt.Errorf("type %s (%s) cannot be a message field", name, t.Kind)
}

var scalarKinds = map[string]protoreflect.Kind{
	protoreflect.BoolKind.String():     protoreflect.BoolKind,
	protoreflect.Int32Kind.String():    protoreflect.Int32Kind,
	protoreflect.Sint32Kind.String():   protoreflect.Sint32Kind,
	protoreflect.Uint32Kind.String():   protoreflect.Uint32Kind,
	protoreflect.Int64Kind.String():    protoreflect.Int64Kind,
	protoreflect.Sint64Kind.String():   protoreflect.Sint64Kind,
	protoreflect.Uint64Kind.String():   protoreflect.Uint64Kind,
	protoreflect.Sfixed32Kind.String(): protoreflect.Sfixed32Kind,
	protoreflect.Fixed32Kind.String():  protoreflect.Fixed32Kind,
	protoreflect.FloatKind.String():    protoreflect.FloatKind,
	protoreflect.Sfixed64Kind.String(): protoreflect.Sfixed64Kind,
	protoreflect.Fixed64Kind.String():  protoreflect.Fixed64Kind,
	protoreflect.DoubleKind.String():   protoreflect.DoubleKind,
	protoreflect.StringKind.String():   protoreflect.StringKind,
	protoreflect.BytesKind.String():    protoreflect.BytesKind,
}

// ParseKind parses a protobuf scalar type name such as "int64" or "bytes".
func ParseKind(name string) (protoreflect.Kind, error) {
	if k, ok := scalarKinds[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown protobuf scalar type %q", name)
}
