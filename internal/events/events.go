// Package events declares what the server and the projector publish on the
// event bus. Start and finish events of one request share the request id
// carried by the context they are published with.
package events

import "time"

// HTTPStart is published when the handler receives a request.
type HTTPStart struct {
	Method string
	Path   string
}

// HTTPFinish is published after the response was written.
type HTTPFinish struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}

// GraphQLStart is published before an operation is planned.
type GraphQLStart struct {
	Query         string
	OperationName string
}

// GraphQLFinish is published once the operation was answered.
// OperationType is empty when the document failed to plan.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// CompileStart is published before a selection is compiled into a
// projection.
type CompileStart struct {
	Selection   string
	ElementType string
}

// CompileFinish carries the rendered plan when compilation succeeded.
type CompileFinish struct {
	Selection   string
	ElementType string
	Plan        string
	Err         error
	Duration    time.Duration
}

// ApplyFinish is published after a root field's dataset was projected.
// Rows counts the projected elements; a single value counts as one.
type ApplyFinish struct {
	Field    string
	Rows     int
	Err      error
	Duration time.Duration
}
