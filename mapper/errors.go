package mapper

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	ErrNoRows = errors.New("no rows found")
	// ErrStreamConsumed is yielded when a stream is ranged over a second time.
	ErrStreamConsumed = errors.New("stream already consumed")
	ErrMissingKey     = errors.New("no key field found in values")
)

func getTooManyRowsError(entityType reflect.Type) error {
	return errors.New(fmt.Sprintf("Too many rows for entity(name=%s)", entityType))
}

// RowError is a failure to materialize one row. Row is the 1-based ordinal of
// the row in its source.
type RowError struct {
	Row      int
	Entity   reflect.Type
	Property string
	Column   string
	Err      error
}

func (e *RowError) Error() string {
	switch {
	case e.Property != "" && e.Column != "":
		return fmt.Sprintf("row %d: %s.%s (column %s): %v", e.Row, e.Entity, e.Property, e.Column, e.Err)
	case e.Property != "":
		return fmt.Sprintf("row %d: %s.%s: %v", e.Row, e.Entity, e.Property, e.Err)
	case e.Column != "":
		return fmt.Sprintf("row %d: column %s: %v", e.Row, e.Column, e.Err)
	default:
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
}

func (e *RowError) Unwrap() error { return e.Err }

// DefinitionError reports a struct graph that cannot be mapped.
type DefinitionError struct {
	Entity reflect.Type
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("entity(%s) field %s: %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("entity(%s): %s", e.Entity, e.Reason)
}
