package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/projector/internal/catalog"
	"github.com/hanpama/projector/internal/config"
	"github.com/hanpama/projector/internal/eventbus"
	"github.com/hanpama/projector/internal/events"
	"github.com/hanpama/projector/internal/introspection"
	"github.com/hanpama/projector/internal/otel"
	"github.com/hanpama/projector/internal/plan"
	"github.com/hanpama/projector/internal/projector"
	"github.com/hanpama/projector/internal/protoshape"
	"github.com/hanpama/projector/internal/reqid"
	"github.com/hanpama/projector/internal/schema"
	"github.com/hanpama/projector/internal/selection"
	"github.com/hanpama/projector/internal/server"
)

const rootUsage = `projector: GraphQL selections compiled to query projections

USAGE:
  projector <command> [flags]

COMMANDS:
  project          Project JSON datasets with a GraphQL query
  explain          Print the projection plan of every root field of a query
  compile-proto    Generate the .proto file of the protobuf shapes
  serve            Run the HTTP GraphQL endpoint from a YAML config
  help             Show help for any command
`

const schemaFlagsUsage = `  -schema <file>           GraphQL SDL file. Repeatable; at least one required
  -shapes <kind>           Target shapes: record, immutable or proto (default: record)
  -scalar <Name=kind>      Protobuf type of a custom scalar, e.g. Time=int64. Repeatable
`

const projectUsage = `project FLAGS:
` + schemaFlagsUsage + `  -query <query|@file>     GraphQL query document (required)
  -operation <name>        Operation to run when the document has several
  -vars <json>             Variables as a JSON object
  -data <field=file>       Dataset of a root query field, JSON or YAML. Repeatable
  -pretty                  Pretty-print the JSON response
`

const explainUsage = `explain FLAGS:
` + schemaFlagsUsage + `  -query <query|@file>     GraphQL query document (required)
  -operation <name>        Operation to explain when the document has several
  -vars <json>             Variables as a JSON object
  -no-color                Disable colored output
`

const compileProtoUsage = `compile-proto FLAGS:
  -schema <file>           GraphQL SDL file. Repeatable; at least one required
  -scalar <Name=kind>      Protobuf type of a custom scalar, e.g. Time=int64. Repeatable
  -out <dir>               Output directory (default: print to stdout)
`

const serveUsage = `serve FLAGS:
  -config <file>           YAML configuration file (default: projector.yaml)
  -addr <addr>             HTTP listen address, overrides the config
  -log                     Log every request
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("projector", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "project":
		return cmdProject(cmdArgs)
	case "explain":
		return cmdExplain(cmdArgs)
	case "compile-proto":
		return cmdCompileProto(cmdArgs)
	case "serve":
		return cmdServe(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "project":
		fmt.Print(projectUsage)
	case "explain":
		fmt.Print(explainUsage)
	case "compile-proto":
		fmt.Print(compileProtoUsage)
	case "serve":
		fmt.Print(serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// pairFlag collects repeatable key=value flags.
type pairFlag struct {
	m map[string]string
}

func (p *pairFlag) String() string { return "" }

func (p *pairFlag) Set(v string) error {
	parts := strings.SplitN(v, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid pair %q, expected key=value", v)
	}
	k := strings.TrimSpace(parts[0])
	val := strings.TrimSpace(parts[1])
	if k == "" || val == "" {
		return fmt.Errorf("invalid pair %q, expected key=value", v)
	}
	if p.m == nil {
		p.m = map[string]string{}
	}
	p.m[k] = val
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// schemaFlags are the flags shared by the commands that load a schema.
type schemaFlags struct {
	files   stringListFlag
	shapes  string
	scalars pairFlag
}

func (s *schemaFlags) register(fs *flag.FlagSet) {
	fs.Var(&s.files, "schema", "GraphQL SDL file")
	fs.StringVar(&s.shapes, "shapes", string(config.ShapesRecord), "Target shapes")
	fs.Var(&s.scalars, "scalar", "Protobuf type of a custom scalar")
}

func (s *schemaFlags) load() (*schema.Schema, *catalog.Catalog, error) {
	if len(s.files) == 0 {
		return nil, nil, fmt.Errorf("-schema is required")
	}
	sch, err := config.LoadSchemaFiles(s.files...)
	if err != nil {
		return nil, nil, err
	}
	kinds, err := s.kinds()
	if err != nil {
		return nil, nil, err
	}
	return newCatalog(sch, config.Shapes(s.shapes), kinds, true)
}

func (s *schemaFlags) kinds() (map[string]protoreflect.Kind, error) {
	c := config.Config{Scalars: s.scalars.m}
	return c.ScalarKinds()
}

// newCatalog returns the schema the handler serves and its shape catalog.
// With introspect the schema is extended with __schema and __type; proto
// messages are still generated from the declared types only.
func newCatalog(sch *schema.Schema, shapes config.Shapes, scalars map[string]protoreflect.Kind, introspect bool) (*schema.Schema, *catalog.Catalog, error) {
	var opts []catalog.Option
	switch shapes {
	case config.ShapesRecord:
	case config.ShapesImmutable:
		opts = append(opts, catalog.WithImmutableRecords())
	case config.ShapesProto:
		reg, err := buildRegistry(sch, scalars)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, catalog.WithProto(reg))
	default:
		return nil, nil, fmt.Errorf("unknown shapes %q", shapes)
	}
	if introspect {
		ext, err := introspection.Extend(sch)
		if err != nil {
			return nil, nil, err
		}
		sch = ext
	}
	return sch, catalog.New(sch, opts...), nil
}

func buildRegistry(sch *schema.Schema, scalars map[string]protoreflect.Kind) (*protoshape.Registry, error) {
	var opts []protoshape.Option
	for name, kind := range scalars {
		opts = append(opts, protoshape.WithScalar(name, kind))
	}
	reg, err := protoshape.Build(sch, opts...)
	if err != nil {
		return nil, fmt.Errorf("protoshape build: %w", err)
	}
	return reg, nil
}

// readQuery returns q, or the content of the file it names when it starts
// with '@'.
func readQuery(q string) (string, error) {
	if q == "" {
		return "", fmt.Errorf("-query is required")
	}
	if !strings.HasPrefix(q, "@") {
		return q, nil
	}
	data, err := os.ReadFile(q[1:])
	if err != nil {
		return "", fmt.Errorf("failed to read query file: %w", err)
	}
	return string(data), nil
}

func parseVars(s string) (map[string]any, error) {
	vars := map[string]any{}
	if s == "" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(s), &vars); err != nil {
		return nil, fmt.Errorf("invalid -vars JSON: %w", err)
	}
	return vars, nil
}

func cmdProject(args []string) error {
	var (
		sf        schemaFlags
		data      pairFlag
		query     string
		operation string
		vars      string
		pretty    bool
	)
	fs := flag.NewFlagSet("project", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	sf.register(fs)
	fs.StringVar(&query, "query", "", "GraphQL query document")
	fs.StringVar(&operation, "operation", "", "Operation name")
	fs.StringVar(&vars, "vars", "", "Variables as JSON")
	fs.Var(&data, "data", "Dataset of a root query field")
	fs.BoolVar(&pretty, "pretty", false, "Pretty-print the JSON response")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, projectUsage)
		return err
	}

	src, err := readQuery(query)
	if err != nil {
		fmt.Fprint(os.Stderr, projectUsage)
		return err
	}
	variables, err := parseVars(vars)
	if err != nil {
		return err
	}
	sch, cat, err := sf.load()
	if err != nil {
		return err
	}
	datasets := make(map[string][]any, len(data.m))
	for field, file := range data.m {
		items, err := config.LoadData(file)
		if err != nil {
			return fmt.Errorf("dataset %s: %w", field, err)
		}
		datasets[field] = items
	}

	h, err := server.New(projector.New(), sch, cat, datasets)
	if err != nil {
		return err
	}
	res := h.Execute(context.Background(), server.GraphQLRequest{Query: src, OperationName: operation, Variables: variables})

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}

func cmdExplain(args []string) error {
	var (
		sf        schemaFlags
		query     string
		operation string
		vars      string
		noColor   bool
	)
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	sf.register(fs)
	fs.StringVar(&query, "query", "", "GraphQL query document")
	fs.StringVar(&operation, "operation", "", "Operation name")
	fs.StringVar(&vars, "vars", "", "Variables as JSON")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, explainUsage)
		return err
	}

	src, err := readQuery(query)
	if err != nil {
		fmt.Fprint(os.Stderr, explainUsage)
		return err
	}
	variables, err := parseVars(vars)
	if err != nil {
		return err
	}
	sch, cat, err := sf.load()
	if err != nil {
		return err
	}
	doc, err := selection.ParseQuery(sch, src)
	if err != nil {
		return err
	}
	op, err := selection.Plan(sch, cat, doc, operation, variables)
	if err != nil {
		return err
	}

	if noColor {
		color.NoColor = true
	}
	style := plan.Style{
		Keyword: color.New(color.FgCyan).SprintFunc(),
		Binding: color.New(color.FgYellow).SprintFunc(),
		Shape:   color.New(color.FgGreen, color.Bold).SprintFunc(),
	}
	field := color.New(color.Bold).SprintFunc()

	proj := projector.New()
	for _, rf := range op.Fields {
		if !rf.Node.Resolver.IsAlias() {
			fmt.Printf("%s: computed\n", field(rf.ResponseName))
			continue
		}
		elem, err := cat.Type(rf.Field.Type.GetNamedType())
		if err != nil {
			return err
		}
		compiled, err := proj.Compile(rf.Node, elem)
		if err != nil {
			return fmt.Errorf("%s: %w", rf.ResponseName, err)
		}
		fmt.Printf("%s: %s\n", field(rf.ResponseName), plan.FormatWith(compiled.Plan, style))
	}
	return nil
}

func cmdCompileProto(args []string) error {
	var (
		files   stringListFlag
		scalars pairFlag
		outDir  string
	)
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.Var(&files, "schema", "GraphQL SDL file")
	fs.Var(&scalars, "scalar", "Protobuf type of a custom scalar")
	fs.StringVar(&outDir, "out", "", "Output directory for the generated .proto file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileProtoUsage)
		return err
	}
	if len(files) == 0 {
		fmt.Fprint(os.Stderr, compileProtoUsage)
		return fmt.Errorf("-schema is required")
	}

	sch, err := config.LoadSchemaFiles(files...)
	if err != nil {
		return err
	}
	kinds, err := (&schemaFlags{scalars: scalars}).kinds()
	if err != nil {
		return err
	}
	reg, err := buildRegistry(sch, kinds)
	if err != nil {
		return err
	}
	if outDir == "" {
		return protoshape.Render(reg, os.Stdout)
	}
	if err := protoshape.RenderDir(reg, outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}

func cmdServe(args []string) error {
	configFile := "projector.yaml"
	addr := ""
	logRequests := false

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configFile, "config", configFile, "YAML configuration file")
	fs.StringVar(&addr, "addr", addr, "HTTP listen address")
	fs.BoolVar(&logRequests, "log", logRequests, "Log every request")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Listen = addr
	}
	h, err := newHandler(cfg)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.Tracing.Endpoint, cfg.Tracing.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
	if logRequests {
		defer logEvents()()
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("GraphQL server listening on %s", cfg.Listen)
	return http.ListenAndServe(cfg.Listen, mux)
}

// logEvents logs every request and every projected root field until the
// returned func is called.
func logEvents() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			log.Printf("[%s] %s %s %d %s", rid, e.Method, e.Path, e.Status, e.Duration)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ApplyFinish) {
			rid, _ := reqid.FromContext(ctx)
			if e.Err != nil {
				log.Printf("[%s] %s: %v", rid, e.Field, e.Err)
				return
			}
			log.Printf("[%s] %s: %d rows in %s", rid, e.Field, e.Rows, e.Duration)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// newHandler builds the HTTP handler a configuration describes.
func newHandler(cfg *config.Config) (*server.Handler, error) {
	sch, err := cfg.LoadSchema()
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.ScalarKinds()
	if err != nil {
		return nil, err
	}
	sch, cat, err := newCatalog(sch, cfg.Shapes, kinds, !cfg.Server.NoIntrospection)
	if err != nil {
		return nil, err
	}
	datasets, err := cfg.LoadDatasets()
	if err != nil {
		return nil, err
	}

	var sopts []server.Option
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if len(cfg.Server.CORS) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORS...))
	}
	h, err := server.New(projector.New(), sch, cat, datasets, sopts...)
	if err != nil {
		return nil, fmt.Errorf("server init: %w", err)
	}
	return h, nil
}
