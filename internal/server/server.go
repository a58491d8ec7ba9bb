// Package server answers GraphQL queries over HTTP by projecting in-memory
// datasets: every root query field names a dataset whose elements are
// compiled into the field's selection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hanpama/projector/internal/catalog"
	"github.com/hanpama/projector/internal/eventbus"
	"github.com/hanpama/projector/internal/events"
	"github.com/hanpama/projector/internal/introspection"
	"github.com/hanpama/projector/internal/language"
	"github.com/hanpama/projector/internal/projector"
	"github.com/hanpama/projector/internal/query"
	"github.com/hanpama/projector/internal/reqid"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/selection"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// Handler is an http.Handler serving one GraphQL endpoint.
type Handler struct {
	proj     *projector.Projector
	schema   *schema.Schema
	catalog  *catalog.Catalog
	datasets map[string]dataset
	opt      Options
}

// dataset is the source of one root field.
type dataset struct {
	src  query.Query
	list bool
}

type Options struct {
	// Timeout bounds requests whose context has no deadline. 0 disables it.
	Timeout time.Duration

	// Pretty indents JSON responses.
	Pretty bool

	// MaxBodyBytes limits the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS is disabled while AllowedOrigins is empty.
	CORS CORSOptions
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// New creates a handler answering the query root fields named in datasets.
// Dataset elements are values of the field's named type. A schema extended
// by introspection.Extend also answers __schema and __type.
func New(proj *projector.Projector, sch *schema.Schema, cat *catalog.Catalog, datasets map[string][]any, opts ...Option) (*Handler, error) {
	root := sch.GetQueryType()
	if root == nil {
		return nil, errors.New("schema has no query type")
	}
	h := &Handler{
		proj:     proj,
		schema:   sch,
		catalog:  cat,
		datasets: make(map[string]dataset, len(datasets)),
		opt:      Options{Timeout: 10 * time.Second},
	}
	for _, f := range opts {
		f(&h.opt)
	}
	for name, items := range datasets {
		if err := h.addDataset(root, name, items); err != nil {
			return nil, err
		}
	}
	for name, items := range introspection.Datasets(sch) {
		if err := h.addDataset(root, name, items); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Handler) addDataset(root *schema.Type, name string, items []any) error {
	def := root.Field(name)
	if def == nil {
		return fmt.Errorf("dataset %s: no field %q on type %q", name, name, root.Name)
	}
	elem, err := h.catalog.Type(def.Type.GetNamedType())
	if err != nil {
		return fmt.Errorf("dataset %s: %w", name, err)
	}
	h.datasets[name] = dataset{src: query.FromSlice(elem, items), list: def.Type.IsList()}
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.Accept(ctx, r.Header.Get(RequestIDHeader))
	w.Header().Set(RequestIDHeader, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: r.Method, Path: r.URL.Path})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Method: r.Method, Path: r.URL.Path, Status: status, Duration: time.Since(start)})
	}()

	if h.opt.CORS.enabled() {
		h.opt.CORS.apply(w, r)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	reqs, batch, rerr := readRequests(w, r, h.opt.MaxBodyBytes)
	if rerr != nil {
		status = rerr.status
		h.write(w, status, rerr.result())
		return
	}
	if !batch {
		h.write(w, status, h.executeOne(ctx, reqs[0]))
		return
	}
	out := make([]result, len(reqs))
	for i, req := range reqs {
		out[i] = h.executeOne(ctx, req)
	}
	h.write(w, status, out)
}

// Execute answers one request outside HTTP. The result marshals to the
// GraphQL response JSON.
func (h *Handler) Execute(ctx context.Context, req GraphQLRequest) any {
	if _, ok := reqid.FromContext(ctx); !ok {
		ctx, _ = reqid.NewContext(ctx)
	}
	return h.executeOne(ctx, req)
}

func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest) result {
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName})

	res, opType := h.execute(ctx, req)

	errs := make([]error, len(res.Errors))
	for i := range res.Errors {
		errs[i] = &res.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: string(opType),
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return res
}

func (h *Handler) execute(ctx context.Context, req GraphQLRequest) (result, language.Operation) {
	doc, err := selection.ParseQuery(h.schema, req.Query)
	if err != nil {
		return requestErrors(err), ""
	}
	op, err := selection.Plan(h.schema, h.catalog, doc, req.OperationName, req.Variables)
	if err != nil {
		return requestErrors(err), ""
	}
	if op.Type != language.Query {
		return result{Errors: []resultError{{Message: fmt.Sprintf("%s operations are not supported", op.Type)}}}, op.Type
	}

	data := &object{}
	var out result
	for _, rf := range op.Fields {
		v, err := h.resolveRoot(ctx, rf)
		if err != nil {
			out.Errors = append(out.Errors, resultError{Message: err.Error(), Path: []any{rf.ResponseName}})
			v = nil
		}
		data.set(rf.ResponseName, v)
	}
	out.Data = data
	return out, op.Type
}

// resolveRoot answers one root field. Computed fields need no dataset.
func (h *Handler) resolveRoot(ctx context.Context, rf *selection.RootField) (any, error) {
	if !rf.Node.Resolver.IsAlias() {
		return rf.Node.Resolver.Compute(nil)
	}
	ds, ok := h.datasets[rf.Field.Name]
	if !ok {
		return nil, fmt.Errorf("no dataset for field %q", rf.Field.Name)
	}

	start := time.Now()
	items, err := h.project(ctx, rf, ds)
	eventbus.Publish(ctx, events.ApplyFinish{Field: rf.Field.Name, Rows: len(items), Err: err, Duration: time.Since(start)})
	if err != nil {
		return nil, err
	}
	if ds.list {
		return items, nil
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// project compiles the field's selection, applies it to the dataset and
// completes every projected element in selection order.
func (h *Handler) project(ctx context.Context, rf *selection.RootField, ds dataset) ([]any, error) {
	src, err := applyArguments(ds.src, rf.Arguments)
	if err != nil {
		return nil, err
	}
	proj, err := h.proj.CompileContext(ctx, rf.Node, src.ElementType())
	if err != nil {
		return nil, err
	}
	out, err := proj.Apply(ctx, src)
	if err != nil {
		return nil, err
	}

	elem := rf.Node
	if ds.list {
		elem = rf.Node.Inner
	} else {
		out = out.Take(1)
	}
	items := []any{}
	for v, err := range out.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		c, err := complete(ctx, elem, v)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, nil
}
