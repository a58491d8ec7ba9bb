// Package otel turns the events of the bus into OpenTelemetry spans. A
// request becomes an http.request span with one graphql.operation child per
// operation, and every compilation a projection.compile span below it.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/projector/internal/eventbus"
	"github.com/hanpama/projector/internal/events"
	"github.com/hanpama/projector/internal/reqid"
)

// Setup exports traces over OTLP/gRPC to endpoint and subscribes to the
// global bus. With an empty endpoint nothing is set up.
func Setup(endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := newSubscriber(tp.Tracer("projector")).register()
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// level orders the spans of one request from outermost to innermost.
type level int

const (
	levelHTTP level = iota
	levelOperation
	levelCompile
)

type spanKey struct {
	rid   string
	level level
}

type subscriber struct {
	tracer trace.Tracer
	open   sync.Map // spanKey -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber { return &subscriber{tracer: tracer} }

// start opens a span at lv under the innermost open span of an outer level.
func (s *subscriber) start(ctx context.Context, lv level, name string, attrs ...attribute.KeyValue) {
	rid, _ := reqid.FromContext(ctx)
	parent := ctx
	for outer := lv - 1; outer >= levelHTTP; outer-- {
		if span, ok := s.current(rid, outer); ok {
			parent = trace.ContextWithSpan(ctx, span)
			break
		}
	}
	_, span := s.tracer.Start(parent, name, trace.WithAttributes(attrs...))
	s.open.Store(spanKey{rid, lv}, span)
}

func (s *subscriber) current(rid string, lv level) (trace.Span, bool) {
	v, ok := s.open.Load(spanKey{rid, lv})
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

// finish removes the open span at lv. ok is false when none was started.
func (s *subscriber) finish(ctx context.Context, lv level) (span trace.Span, ok bool) {
	rid, _ := reqid.FromContext(ctx)
	v, ok := s.open.LoadAndDelete(spanKey{rid, lv})
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (s *subscriber) register() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			s.start(ctx, levelHTTP, "http.request",
				semconv.HTTPMethodKey.String(e.Method),
				semconv.HTTPTargetKey.String(e.Path),
				attribute.String("request.id", rid))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			if span, ok := s.finish(ctx, levelHTTP); ok {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
				if e.Status >= 500 {
					span.SetStatus(codes.Error, "")
				}
				span.End()
			}
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			s.start(ctx, levelOperation, "graphql.operation",
				attribute.String("graphql.operation.name", e.OperationName))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			if span, ok := s.finish(ctx, levelOperation); ok {
				span.SetAttributes(
					attribute.String("graphql.operation.type", e.OperationType),
					attribute.Int("graphql.error_count", len(e.Errors)),
				)
				span.End()
			}
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.CompileStart) {
			s.start(ctx, levelCompile, "projection.compile",
				attribute.String("projection.selection", e.Selection),
				attribute.String("projection.element_type", e.ElementType))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
			if span, ok := s.finish(ctx, levelCompile); ok {
				if e.Err != nil {
					fail(span, e.Err)
				} else {
					span.SetAttributes(attribute.String("projection.plan", e.Plan))
				}
				span.End()
			}
		}),

		// Applying a projection is recorded as an event of the operation.
		eventbus.Subscribe(func(ctx context.Context, e events.ApplyFinish) {
			rid, _ := reqid.FromContext(ctx)
			span, ok := s.current(rid, levelOperation)
			if !ok {
				return
			}
			attrs := []attribute.KeyValue{
				attribute.String("projection.field", e.Field),
				attribute.Int("projection.rows", e.Rows),
				attribute.Int64("projection.duration_us", e.Duration.Microseconds()),
			}
			if e.Err != nil {
				attrs = append(attrs, attribute.String("error", e.Err.Error()))
			}
			span.AddEvent("projection.apply", trace.WithAttributes(attrs...))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
