// Package config loads the YAML configuration of the projection server and
// the JSON datasets it serves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/projector/internal/protoshape"
)

// Shapes selects the target shapes object fields are projected into.
type Shapes string

const (
	// ShapesRecord projects into mutable map records.
	ShapesRecord Shapes = "record"
	// ShapesImmutable projects into records built by a canonical constructor.
	ShapesImmutable Shapes = "immutable"
	// ShapesProto projects into dynamic protobuf messages.
	ShapesProto Shapes = "proto"
)

// Config is the server configuration file.
type Config struct {
	// Schema lists the SDL files of the schema, relative to the file.
	Schema []string `yaml:"schema"`

	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	Shapes Shapes `yaml:"shapes"`

	// Scalars maps custom scalars onto protobuf scalar types for proto
	// shapes, e.g. {Time: int64}.
	Scalars map[string]string `yaml:"scalars,omitempty"`

	Server  Server  `yaml:"server"`
	Tracing Tracing `yaml:"tracing"`

	// Datasets maps root field names to the data they are answered from.
	Datasets map[string]Dataset `yaml:"datasets"`

	dir string
}

// Server holds the HTTP handler settings.
type Server struct {
	Timeout      time.Duration `yaml:"timeout"`
	Pretty       bool          `yaml:"pretty"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
	CORS         []string      `yaml:"cors,omitempty"`

	// NoIntrospection hides __schema and __type.
	NoIntrospection bool `yaml:"noIntrospection"`
}

// Tracing configures the OTLP trace exporter. Tracing is off when Endpoint
// is empty.
type Tracing struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Dataset is the data one root field is answered from: a JSON or YAML file,
// or values inlined in the configuration.
type Dataset struct {
	File   string `yaml:"file,omitempty"`
	Inline []any  `yaml:"inline,omitempty"`
}

// LoadFile loads and parses a YAML configuration file. Relative paths in
// the file are resolved against its directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse parses YAML configuration data. dir is the directory relative paths
// are resolved against.
func Parse(data []byte, dir string) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	c.dir = dir
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Shapes == "" {
		c.Shapes = ShapesRecord
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 10 * time.Second
	}
	if c.Tracing.Endpoint != "" && c.Tracing.Service == "" {
		c.Tracing.Service = "projector"
	}
}

// Validate checks the configuration for settings that cannot work.
func (c *Config) Validate() error {
	if len(c.Schema) == 0 {
		return fmt.Errorf("config: no schema files")
	}
	switch c.Shapes {
	case ShapesRecord, ShapesImmutable, ShapesProto:
	default:
		return fmt.Errorf("config: unknown shapes %q", c.Shapes)
	}
	if _, err := c.ScalarKinds(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for name, ds := range c.Datasets {
		if ds.File != "" && ds.Inline != nil {
			return fmt.Errorf("config: dataset %s sets both file and inline", name)
		}
	}
	return nil
}

// Path resolves p against the directory of the configuration file.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// ScalarKinds parses Scalars.
func (c *Config) ScalarKinds() (map[string]protoreflect.Kind, error) {
	out := make(map[string]protoreflect.Kind, len(c.Scalars))
	for name, kind := range c.Scalars {
		k, err := protoshape.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("scalar %s: %w", name, err)
		}
		out[name] = k
	}
	return out, nil
}

// Marshal serializes a Config to YAML.
func Marshal(c *Config) ([]byte, error) {
	return yaml.Marshal(c)
}
