package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// result is one GraphQL response.
type result struct {
	Data   any           `json:"data"`
	Errors []resultError `json:"errors,omitempty"`
}

type location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type resultError struct {
	Message    string         `json:"message"`
	Locations  []location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *resultError) Error() string { return e.Message }

// requestErrors reports errors raised before any field was answered. The
// data entry stays null.
func requestErrors(err error) result {
	var list gqlerror.List
	if errors.As(err, &list) {
		out := result{Errors: make([]resultError, len(list))}
		for i, e := range list {
			out.Errors[i] = fromGQLError(e)
		}
		return out
	}
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		return result{Errors: []resultError{fromGQLError(ge)}}
	}
	return result{Errors: []resultError{{Message: err.Error()}}}
}

func fromGQLError(e *gqlerror.Error) resultError {
	out := resultError{Message: e.Message, Extensions: e.Extensions}
	for _, l := range e.Locations {
		out.Locations = append(out.Locations, location{Line: l.Line, Column: l.Column})
	}
	for _, p := range e.Path {
		switch p := p.(type) {
		case ast.PathIndex:
			out.Path = append(out.Path, int(p))
		case ast.PathName:
			out.Path = append(out.Path, string(p))
		}
	}
	return out
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
