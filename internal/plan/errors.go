package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Compile errors. They describe a mismatch between a selection plan and the
// shapes it targets, are raised before any source element is touched and
// match their sentinel through errors.Is.
var (
	ErrUnsupportedShape = errors.New("unsupported shape")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrInvalidSource    = errors.New("invalid source")
	ErrAmbiguousField   = errors.New("ambiguous field")
)

// UnsupportedShapeError is returned when the target shape is tuple-like, a
// union, or has no constructor.
type UnsupportedShapeError struct {
	Shape string
	Path  []string
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("%sshape %s has no supported construction strategy", pathPrefix(e.Path), e.Shape)
}

func (e *UnsupportedShapeError) Is(target error) bool { return target == ErrUnsupportedShape }

// ShapeMismatchError is returned when a selected field binds to neither a
// constructor parameter nor a settable member.
type ShapeMismatchError struct {
	Shape string
	Field string
	Path  []string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%sfield %q cannot bind to any constructor parameter or settable member of %s", pathPrefix(e.Path), e.Field, e.Shape)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// InvalidSourceError is returned when a collection selection is applied to
// a source that cannot be enumerated.
type InvalidSourceError struct {
	Type string
	Path []string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("%scannot map over non-enumerable source of type %s", pathPrefix(e.Path), e.Type)
}

func (e *InvalidSourceError) Is(target error) bool { return target == ErrInvalidSource }

// AmbiguousFieldError is returned when two selected fields of one node are
// equal under case-insensitive comparison.
type AmbiguousFieldError struct {
	Fields [2]string
	Path   []string
}

func (e *AmbiguousFieldError) Error() string {
	return fmt.Sprintf("%sfields %q and %q collide under case-insensitive matching", pathPrefix(e.Path), e.Fields[0], e.Fields[1])
}

func (e *AmbiguousFieldError) Is(target error) bool { return target == ErrAmbiguousField }

func pathPrefix(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return strings.Join(path, ".") + ": "
}
