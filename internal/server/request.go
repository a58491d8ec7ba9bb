package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// GraphQLRequest is the body of a GraphQL over HTTP request.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// badRequest is a request that could not be decoded. It is answered with
// status and a single error.
type badRequest struct {
	status  int
	message string
}

func (e *badRequest) result() result {
	return result{Errors: []resultError{{Message: e.message}}}
}

func invalid(message string) *badRequest {
	return &badRequest{status: http.StatusBadRequest, message: message}
}

// readRequests decodes the requests carried by r. batch reports a JSON
// array body, which may hold several requests.
func readRequests(w http.ResponseWriter, r *http.Request, maxBody int64) (reqs []GraphQLRequest, batch bool, _ *badRequest) {
	switch r.Method {
	case http.MethodGet:
		req, err := queryRequest(r)
		if err != nil {
			return nil, false, err
		}
		return []GraphQLRequest{req}, false, nil
	case http.MethodPost:
	default:
		return nil, false, &badRequest{status: http.StatusMethodNotAllowed, message: "method not allowed"}
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, false, invalid("unsupported Content-Type")
		}
	}
	body := r.Body
	if maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, &badRequest{status: http.StatusRequestEntityTooLarge, message: "body too large"}
		}
		return nil, false, invalid("failed to read body")
	}

	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, false, invalid("invalid JSON")
		}
		if len(reqs) == 0 {
			return nil, false, invalid("empty batch")
		}
		return reqs, true, nil
	}
	var req GraphQLRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false, invalid("invalid JSON")
	}
	if req.Query == "" {
		return nil, false, invalid("missing 'query'")
	}
	return []GraphQLRequest{req}, false, nil
}

// queryRequest reads a request from the URL query of a GET.
func queryRequest(r *http.Request) (GraphQLRequest, *badRequest) {
	params := r.URL.Query()
	req := GraphQLRequest{Query: params.Get("query"), OperationName: params.Get("operationName")}
	if req.Query == "" {
		return req, invalid("missing 'query'")
	}
	if v := params.Get("variables"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
			return req, invalid("invalid 'variables' JSON")
		}
	}
	return req, nil
}
