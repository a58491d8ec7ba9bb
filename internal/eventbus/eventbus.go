// Package eventbus dispatches in-process events by their Go type. The
// server and the projector publish; tracing and logging subscribe.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type handler struct {
	id uint64
	fn func(context.Context, any)
}

// table is an immutable snapshot of the subscriptions. Subscribing builds a
// new table, so emitting never takes a lock.
type table map[reflect.Type][]handler

// Bus is an event dispatcher. The zero value is not usable; call New.
type Bus struct {
	mu     sync.Mutex // serializes writers
	nextID uint64
	subs   atomic.Pointer[table]
}

// New creates an empty Bus.
func New() *Bus {
	b := &Bus{}
	b.subs.Store(&table{})
	return b
}

func (b *Bus) update(fn func(table) table) {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := *b.subs.Load()
	next := make(table, len(old)+1)
	for t, hs := range old {
		next[t] = hs
	}
	next = fn(next)
	b.subs.Store(&next)
}

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	var id uint64
	b.update(func(tab table) table {
		b.nextID++
		id = b.nextID
		hs := make([]handler, 0, len(tab[t])+1)
		tab[t] = append(append(hs, tab[t]...), handler{id: id, fn: fn})
		return tab
	})
	return sync.OnceFunc(func() {
		b.update(func(tab table) table {
			var kept []handler
			for _, h := range tab[t] {
				if h.id != id {
					kept = append(kept, h)
				}
			}
			if len(kept) == 0 {
				delete(tab, t)
			} else {
				tab[t] = kept
			}
			return tab
		})
	})
}

// dispatch calls the handlers of e's dynamic type in subscription order.
func (b *Bus) dispatch(ctx context.Context, e any) {
	if b == nil {
		return
	}
	for _, h := range (*b.subs.Load())[reflect.TypeOf(e)] {
		h.fn(ctx, e)
	}
}

// Attach subscribes h to events of type T on b.
func Attach[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	return b.add(reflect.TypeFor[T](), func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Emit sends e through b. A nil bus drops the event.
func Emit[T any](ctx context.Context, b *Bus, e T) {
	b.dispatch(ctx, e)
}

var global atomic.Pointer[Bus]

// Use installs b as the process-wide bus. nil turns publishing off.
func Use(b *Bus) { global.Store(b) }

// Subscribe attaches h to the process-wide bus. Without a bus it does
// nothing and the returned func is a no-op.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	if b := global.Load(); b != nil {
		return Attach(b, h)
	}
	return func() {}
}

// Publish sends e through the process-wide bus.
func Publish[T any](ctx context.Context, e T) {
	global.Load().dispatch(ctx, e)
}
