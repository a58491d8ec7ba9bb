package eventbus_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hanpama/projector/internal/eventbus"
)

type ping struct{ N int }
type pong struct{ N int }

func TestEmitDispatchesByType(t *testing.T) {
	b := eventbus.New()
	var got []string
	eventbus.Attach(b, func(_ context.Context, e ping) { got = append(got, "ping") })
	eventbus.Attach(b, func(_ context.Context, e pong) { got = append(got, "pong") })

	eventbus.Emit(context.Background(), b, ping{1})
	eventbus.Emit(context.Background(), b, pong{2})
	eventbus.Emit(context.Background(), b, ping{3})

	if diff := cmp.Diff([]string{"ping", "pong", "ping"}, got); diff != "" {
		t.Fatalf("dispatch mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := eventbus.New()
	var got []int
	h := func(_ context.Context, e ping) { got = append(got, e.N) }
	first := eventbus.Attach(b, h)
	eventbus.Attach(b, h)

	first()
	first()
	eventbus.Emit(context.Background(), b, ping{7})

	if diff := cmp.Diff([]int{7}, got); diff != "" {
		t.Fatalf("handlers mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobalBus(t *testing.T) {
	eventbus.Use(nil)
	eventbus.Publish(context.Background(), ping{1}) // no bus, dropped
	unsubscribe := eventbus.Subscribe(func(context.Context, ping) { t.Fatal("handler called without bus") })
	unsubscribe()

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	var n int
	eventbus.Subscribe(func(_ context.Context, e ping) { n += e.N })
	eventbus.Publish(context.Background(), ping{2})
	eventbus.Publish(context.Background(), pong{3})
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}

func TestNilBusEmit(t *testing.T) {
	eventbus.Emit(context.Background(), (*eventbus.Bus)(nil), ping{1})
}

func TestSubscribeDuringDispatch(t *testing.T) {
	b := eventbus.New()
	var got []string
	var unsubscribe func()
	unsubscribe = eventbus.Attach(b, func(_ context.Context, e ping) {
		got = append(got, "first")
		unsubscribe()
		eventbus.Attach(b, func(context.Context, ping) { got = append(got, "late") })
	})
	eventbus.Attach(b, func(context.Context, ping) { got = append(got, "second") })

	eventbus.Emit(context.Background(), b, ping{1})
	eventbus.Emit(context.Background(), b, ping{2})

	want := []string{"first", "second", "second", "late"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dispatch mismatch (-want +got):\n%s", diff)
	}
}
