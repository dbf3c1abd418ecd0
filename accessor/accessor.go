// Package accessor resolves named properties of struct types to get/set
// capabilities.
//
// Three variants exist. Compiled accessors are either registered ahead of use
// with Register, or built for exported fields as typed stores at a fixed
// offset, so scalar writes never box. Generic accessors go through reflect and
// also serve unexported fields, whose read-only flag is overridden. Method
// accessors call Set<Property> / <Property> / Get<Property> methods.
//
// Resolved accessors are cached for the lifetime of the process and are safe
// for concurrent use.
package accessor

import (
	"reflect"

	"github.com/pkg/errors"
)

// Setter writes one property. target must be a non-nil pointer to the owning struct.
type Setter interface {
	Set(target any, value any) error
}

// Getter reads one property. target must be a non-nil pointer to the owning struct.
type Getter interface {
	Get(target any) (any, error)
}

// Accessor reads and writes one property.
type Accessor interface {
	Setter
	Getter
}

// TypedSetter writes a property without boxing the value.
type TypedSetter[P any] interface {
	Setter
	SetTyped(target any, value P) error
}

// TypedGetter reads a property without boxing the value.
type TypedGetter[P any] interface {
	Getter
	GetTyped(target any) (P, error)
}

// FieldBacked is implemented by accessors that wrap a struct field.
type FieldBacked interface {
	// Owner is the struct type the accessor was resolved on.
	Owner() reflect.Type
	Field() reflect.StructField
	// Index is the field index path from Owner, embedded hops included.
	Index() []int
}

// MethodBacked is implemented by accessors that wrap a method.
type MethodBacked interface {
	Owner() reflect.Type
	Method() reflect.Method
	// Index is the path to the embedded struct declaring the method; empty for Owner itself.
	Index() []int
}

type nullSetter struct{}

func (nullSetter) Set(any, any) error { return nil }

// NullSetter discards every value. It stands in for optional properties that
// have no backing member.
var NullSetter Setter = nullSetter{}

func isNullSetter(s Setter) bool {
	if s == nil {
		return true
	}
	_, ok := s.(nullSetter)
	return ok
}

// targetValue validates that target is a non-nil *owner and returns the struct value.
func targetValue(owner reflect.Type, target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, errors.Wrapf(ErrInvalidTarget, "expected non-nil *%s, got %T", owner, target)
	}
	if v.Type().Elem() != owner {
		return reflect.Value{}, errors.Wrapf(ErrInvalidTarget, "expected *%s, got %T", owner, target)
	}
	return v.Elem(), nil
}
