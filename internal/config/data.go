package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/projector/internal/schema"
)

// LoadSchema reads and merges the configured SDL files.
func (c *Config) LoadSchema() (*schema.Schema, error) {
	return LoadSchemaFiles(c.resolved(c.Schema)...)
}

func (c *Config) resolved(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = c.Path(p)
	}
	return out
}

// LoadSchemaFiles reads and merges SDL files into one schema.
func LoadSchemaFiles(paths ...string) (*schema.Schema, error) {
	sources := make([]*ast.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", p, err)
		}
		sources = append(sources, &ast.Source{Name: p, Input: string(data)})
	}
	return schema.BuildFromSources(sources...)
}

// LoadDatasets loads every configured dataset, keyed by root field name.
func (c *Config) LoadDatasets() (map[string][]any, error) {
	out := make(map[string][]any, len(c.Datasets))
	for name, ds := range c.Datasets {
		if ds.File == "" {
			items, _ := normalize(ds.Inline).([]any)
			if items == nil {
				items = []any{}
			}
			out[name] = items
			continue
		}
		items, err := LoadData(c.Path(ds.File))
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		out[name] = items
	}
	return out, nil
}

// LoadData reads a data file. Files ending in .yaml or .yml are YAML;
// anything else is JSON.
func LoadData(path string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(f)
	default:
		return ReadJSON(f)
	}
}

// ReadJSON reads a dataset from JSON: a single array, or a stream of values
// such as newline-delimited objects.
func ReadJSON(r io.Reader) ([]any, error) {
	dec := json.NewDecoder(r)
	var values []any
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON data: %w", err)
		}
		values = append(values, v)
	}
	return flatten(values), nil
}

// ReadYAML reads a dataset from a YAML document holding a sequence, or a
// single value.
func ReadYAML(r io.Reader) ([]any, error) {
	var v any
	if err := yaml.NewDecoder(r).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML data: %w", err)
	}
	if v == nil {
		return []any{}, nil
	}
	return flatten([]any{normalize(v)}), nil
}

// flatten unwraps a stream holding exactly one array into its elements.
func flatten(values []any) []any {
	if len(values) == 1 {
		if arr, ok := values[0].([]any); ok {
			return arr
		}
	}
	if values == nil {
		return []any{}
	}
	return values
}

// normalize converts YAML values to the shapes JSON decoding produces:
// string-keyed maps and float64 numbers.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case nil:
		return nil
	default:
		return v
	}
}
