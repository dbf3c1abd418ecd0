package accessor

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

//go:generate go tool stringer -type=Kind -output=kind_string.go

// Kind enumerates the scalar kinds that have boxing-free setters.
type Kind int

const (
	_ Kind = iota // zero is not a valid kind

	KindBool   // bool
	KindByte   // byte
	KindChar   // rune
	KindShort  // int16
	KindInt    // int
	KindLong   // int64
	KindFloat  // float32
	KindDouble // float64
)

// Scalar is the set of Go types backing the scalar kinds.
type Scalar interface {
	bool | byte | rune | int16 | int | int64 | float32 | float64
}

// KindOf returns the scalar kind of P.
func KindOf[P Scalar]() Kind {
	var zero P
	switch any(zero).(type) {
	case bool:
		return KindBool
	case byte:
		return KindByte
	case rune:
		return KindChar
	case int16:
		return KindShort
	case int:
		return KindInt
	case int64:
		return KindLong
	case float32:
		return KindFloat
	case float64:
		return KindDouble
	}
	return 0
}

// ToScalarSetter specializes setter for P. It returns setter unchanged when it
// already writes P, a method or field based specialization when it wraps one,
// and false for a nil or no-op setter. Any other setter is a programming error
// and panics with ErrUnsupportedAccessorKind.
func ToScalarSetter[P Scalar](setter Setter) (TypedSetter[P], bool) {
	if isNullSetter(setter) {
		return nil, false
	}
	if typed, ok := setter.(TypedSetter[P]); ok {
		return typed, true
	}
	switch s := setter.(type) {
	case methodSetterBacked:
		return &methodScalarSetter[P]{methodSetter: s.baseMethodSetter()}, true
	case FieldBacked:
		return newFieldScalarSetter[P](s), true
	}
	panic(errors.Wrapf(ErrUnsupportedAccessorKind, "%T", setter))
}

// ToKindSetter is ToScalarSetter keyed by a runtime Kind.
func ToKindSetter(kind Kind, setter Setter) (Setter, bool) {
	switch kind {
	case KindBool:
		return toSetter(ToScalarSetter[bool](setter))
	case KindByte:
		return toSetter(ToScalarSetter[byte](setter))
	case KindChar:
		return toSetter(ToScalarSetter[rune](setter))
	case KindShort:
		return toSetter(ToScalarSetter[int16](setter))
	case KindInt:
		return toSetter(ToScalarSetter[int](setter))
	case KindLong:
		return toSetter(ToScalarSetter[int64](setter))
	case KindFloat:
		return toSetter(ToScalarSetter[float32](setter))
	case KindDouble:
		return toSetter(ToScalarSetter[float64](setter))
	}
	panic(errors.Errorf("invalid scalar kind %s", kind))
}

func toSetter[P Scalar](s TypedSetter[P], ok bool) (Setter, bool) {
	if !ok {
		return nil, false
	}
	return s, true
}

// fieldScalarSetter writes P into a field. Fields of exactly type P reached
// without pointer hops are stored directly; everything else converts through reflect.
type fieldScalarSetter[P Scalar] struct {
	FieldBacked
	ptr    reflect.Type
	direct bool
	offset uintptr
}

func newFieldScalarSetter[P Scalar](f FieldBacked) *fieldScalarSetter[P] {
	s := &fieldScalarSetter[P]{FieldBacked: f, ptr: reflect.PointerTo(f.Owner())}
	if f.Field().Type != reflect.TypeFor[P]() {
		return s
	}
	current := f.Owner()
	index := f.Index()
	for i, x := range index {
		if current.Kind() != reflect.Struct {
			return s
		}
		field := current.Field(x)
		s.offset += field.Offset
		if i < len(index)-1 {
			current = field.Type
		}
	}
	s.direct = true
	return s
}

func (s *fieldScalarSetter[P]) SetTyped(target any, value P) error {
	if reflect.TypeOf(target) != s.ptr {
		return errors.Wrapf(ErrInvalidTarget, "expected %s, got %T", s.ptr, target)
	}
	v := reflect.ValueOf(target)
	if v.IsNil() {
		return errors.Wrapf(ErrInvalidTarget, "nil %s", s.ptr)
	}
	if s.direct {
		*(*P)(unsafe.Add(v.UnsafePointer(), s.offset)) = value
		return nil
	}
	field := reflectutils.Settable(reflectutils.FieldByIndexAlloc(v.Elem(), s.Index()))
	return Assign(field, value)
}

func (s *fieldScalarSetter[P]) Set(target any, value any) error {
	if p, ok := value.(P); ok {
		return s.SetTyped(target, p)
	}
	if setter, ok := s.FieldBacked.(Setter); ok {
		return setter.Set(target, value)
	}
	return errors.Wrap(ErrReadOnly, s.Field().Name)
}

type methodSetterBacked interface {
	baseMethodSetter() *methodSetter
}

// methodScalarSetter passes P to a setter method, converting to the parameter type.
type methodScalarSetter[P Scalar] struct {
	*methodSetter
}

func (s *methodScalarSetter[P]) SetTyped(target any, value P) error {
	arg := reflect.ValueOf(value)
	if arg.Type() != s.param {
		converted := reflect.New(s.param).Elem()
		if err := Assign(converted, value); err != nil {
			return err
		}
		arg = converted
	}
	return s.call(target, arg)
}
