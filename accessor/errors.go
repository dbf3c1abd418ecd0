package accessor

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedAccessorKind is raised (as a panic) when a scalar
	// specialization is requested for an accessor that is neither field nor method backed.
	ErrUnsupportedAccessorKind = errors.New("unsupported accessor kind for scalar specialization")
	ErrInvalidTarget           = errors.New("invalid accessor target")
	ErrReadOnly                = errors.New("property has no setter")
)

// CoercionError reports a row value that cannot be converted to a property type.
type CoercionError struct {
	Value  any
	Target reflect.Type
	Err    error
}

func (e *CoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %T(%v) to %s: %v", e.Value, e.Value, e.Target, e.Err)
	}
	return fmt.Sprintf("cannot convert %T(%v) to %s", e.Value, e.Value, e.Target)
}

func (e *CoercionError) Unwrap() error { return e.Err }

func coercionError(value any, target reflect.Type, cause error) error {
	return &CoercionError{Value: value, Target: target, Err: cause}
}
