// Package protoshape derives protobuf messages from a GraphQL schema and
// exposes them as shape descriptors, so projections can construct dynamic
// protobuf messages instead of records.
package protoshape

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/projector/internal/schema"
)

const (
	// FilePath is the path of the generated file.
	FilePath = "projector/shapes.proto"
	// Package is the protobuf package of the generated messages.
	Package protoreflect.FullName = "projector.shapes"
)

// Option configures Build.
type Option func(*builder)

// WithScalar maps the custom scalar name onto a protobuf kind. Custom
// scalars without a mapping are encoded as strings.
func WithScalar(name string, kind protoreflect.Kind) Option {
	return func(b *builder) { b.scalars[name] = kind }
}

var builtinScalars = map[string]protoreflect.Kind{
	schema.String:  protoreflect.StringKind,
	schema.ID:      protoreflect.StringKind,
	schema.Int:     protoreflect.Int32Kind,
	schema.Float:   protoreflect.DoubleKind,
	schema.Boolean: protoreflect.BoolKind,
}

type builder struct {
	schema   *schema.Schema
	file     *protobuilder.FileBuilder
	messages map[string]*protobuilder.MessageBuilder
	enums    map[string]*protobuilder.EnumBuilder
	scalars  map[string]protoreflect.Kind

	// fieldNames maps [graphql type, graphql field] to the protobuf field
	// name.
	fieldNames map[[2]string]protoreflect.Name
}

// Build generates one message per object, interface and union type of sch
// and one enum per enum type. Root operation types are skipped. Interfaces
// and unions become messages with a single "value" oneof over their
// possible types.
func Build(sch *schema.Schema, opts ...Option) (*Registry, error) {
	b := &builder{
		schema:     sch,
		messages:   make(map[string]*protobuilder.MessageBuilder),
		enums:      make(map[string]*protobuilder.EnumBuilder),
		scalars:    make(map[string]protoreflect.Kind),
		fieldNames: make(map[[2]string]protoreflect.Name),
	}
	for name, kind := range builtinScalars {
		b.scalars[name] = kind
	}
	for _, o := range opts {
		o(b)
	}

	b.file = protobuilder.NewFile(FilePath)
	b.file.SetPackageName(Package)
	b.file.SetSyntax(protoreflect.Proto3)

	names := schema.SortedTypeNames(sch)

	// Pass 1: declare every message and enum so fields can refer to them
	// regardless of order.
	for _, name := range names {
		t := sch.Types[name]
		if t.BuiltIn || b.isRoot(t) {
			continue
		}
		switch t.Kind {
		case schema.TypeKindObject, schema.TypeKindInterface, schema.TypeKindUnion:
			b.addMessage(t)
		case schema.TypeKindEnum:
			if err := b.addEnum(t); err != nil {
				return nil, err
			}
		}
	}

	// Pass 2: fields.
	for _, name := range names {
		t := sch.Types[name]
		if b.messages[name] == nil {
			continue
		}
		var err error
		if t.Kind == schema.TypeKindObject {
			err = b.addObjectFields(t)
		} else {
			err = b.addChoiceFields(t)
		}
		if err != nil {
			return nil, err
		}
	}

	fd, err := b.file.Build()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", FilePath, err)
	}
	return newRegistry(sch, fd, b.fieldNames)
}

func (b *builder) isRoot(t *schema.Type) bool {
	return t.Name == b.schema.QueryType ||
		t.Name == b.schema.MutationType ||
		t.Name == b.schema.SubscriptionType
}

func (b *builder) addMessage(t *schema.Type) {
	mb := protobuilder.NewMessage(nameProtoMessage(t.Name))
	mb.SetComments(comment(t.Description))
	b.messages[t.Name] = mb
	b.file.AddMessage(mb)
}

func (b *builder) addEnum(t *schema.Type) error {
	eb := protobuilder.NewEnum(nameProtoMessage(t.Name))
	eb.SetComments(comment(t.Description))

	zero := protobuilder.NewEnumValue(nameProtoEnumValue(t.Name, "UNSPECIFIED"))
	zero.SetNumber(0)
	eb.AddValue(zero)

	values := make([]*protobuilder.EnumValueBuilder, 0, len(t.EnumValues))
	for _, v := range t.EnumValues {
		vb := protobuilder.NewEnumValue(nameProtoEnumValue(t.Name, v.Name))
		vb.SetComments(comment(v.Description))
		eb.AddValue(vb)
		values = append(values, vb)
	}
	if err := allocateEnumValueNumbers(values); err != nil {
		return fmt.Errorf("enum %s: %w", t.Name, err)
	}
	b.enums[t.Name] = eb
	b.file.AddEnum(eb)
	return nil
}

func (b *builder) addObjectFields(t *schema.Type) error {
	mb := b.messages[t.Name]
	fields := make([]*protobuilder.FieldBuilder, 0, len(t.Fields))
	for _, f := range t.Fields {
		rt, err := b.resolveTypeRef(f.Type)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name, f.Name, err)
		}
		fb := protobuilder.NewField(nameProtoField(f.Name), rt.fieldType)
		fb.SetComments(comment(f.Description))
		if rt.isOptional {
			fb.SetOptional()
		}
		if rt.isRepeated {
			fb.SetRepeated()
		}
		mb.AddField(fb)
		fields = append(fields, fb)
		b.fieldNames[[2]string{t.Name, f.Name}] = fb.Name()
	}
	if err := allocateFieldNumbers(fields); err != nil {
		return fmt.Errorf("message %s: %w", t.Name, err)
	}
	return nil
}

// addChoiceFields adds the "value" oneof of an interface or union message.
func (b *builder) addChoiceFields(t *schema.Type) error {
	mb := b.messages[t.Name]
	oneof := protobuilder.NewOneof("value")
	var fields []*protobuilder.FieldBuilder
	for _, pt := range b.schema.PossibleTypes(t) {
		member := b.messages[pt.Name]
		if member == nil {
			continue
		}
		fb := protobuilder.NewField(nameProtoField(pt.Name), protobuilder.FieldTypeMessage(member))
		oneof.AddChoice(fb)
		fields = append(fields, fb)
	}
	if len(fields) == 0 {
		// A oneof needs at least one choice; an abstract type nothing
		// implements stays an empty message.
		return nil
	}
	mb.AddOneOf(oneof)
	if err := allocateFieldNumbers(fields); err != nil {
		return fmt.Errorf("message %s: %w", t.Name, err)
	}
	return nil
}
