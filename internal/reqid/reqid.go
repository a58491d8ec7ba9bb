// Package reqid carries a request id through a context. The id ties the
// events of one request together.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// MaxLen bounds ids accepted from callers.
const MaxLen = 128

type key struct{}

// NewContext returns a copy of parent carrying a new UUIDv7 id, and the id.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.Must(uuid.NewV7()).String()
	return context.WithValue(parent, key{}, id), id
}

// WithID returns a copy of parent carrying id.
func WithID(parent context.Context, id string) context.Context {
	return context.WithValue(parent, key{}, id)
}

// Accept returns a copy of parent carrying id when id is a valid caller
// supplied id, and a new one otherwise. Valid ids are non-empty, at most
// MaxLen bytes long and printable ASCII.
func Accept(parent context.Context, id string) (context.Context, string) {
	if !valid(id) {
		return NewContext(parent)
	}
	return WithID(parent, id), id
}

func valid(id string) bool {
	if id == "" || len(id) > MaxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// FromContext returns the id carried by ctx and whether there was one.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
