package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/shape"
)

// object is a JSON object that keeps its keys in insertion order, so
// responses follow the order of the selection.
type object struct {
	keys   []string
	values map[string]any
}

func (o *object) set(key string, v any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// complete turns a projected value into its response form following n:
// constructed shapes become ordered objects read through their descriptor.
func complete(ctx context.Context, n *selection.Node, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch n.Kind {
	case selection.SelectFields:
		read := shape.ReadMember
		if t := shape.Unwrap(n.ReturnType); t != nil && t.Shape != nil {
			if r, ok := t.Shape.(shape.Reader); ok {
				read = r.Read
			}
		}
		out := &object{}
		for _, c := range n.Children {
			cv, err := read(v, c.Field.Name)
			if err != nil {
				return nil, err
			}
			if cv, err = complete(ctx, c, cv); err != nil {
				return nil, err
			}
			out.set(c.Field.Name, cv)
		}
		return out, nil

	case selection.SelectCollection:
		seq, err := query.Elements(ctx, v)
		if err != nil {
			return nil, err
		}
		items := []any{}
		for e, err := range seq {
			if err != nil {
				return nil, err
			}
			c, err := complete(ctx, n.Inner, e)
			if err != nil {
				return nil, err
			}
			items = append(items, c)
		}
		return items, nil

	default:
		return leaf(v)
	}
}

// leaf converts scalar values JSON cannot encode directly.
func leaf(v any) (any, error) {
	switch x := v.(type) {
	case protoreflect.EnumNumber:
		return int32(x), nil
	case protoreflect.Message:
		return nil, fmt.Errorf("cannot serialize message %s as a leaf", x.Descriptor().FullName())
	}
	return v, nil
}
