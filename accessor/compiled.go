package accessor

import (
	"fmt"
	"reflect"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

// compiledField stores and loads a field of type P at a fixed offset from the
// start of the owning struct.
type compiledField[P any] struct {
	owner  reflect.Type
	ptr    reflect.Type
	field  reflect.StructField
	index  []int
	offset uintptr
}

func (c *compiledField[P]) Owner() reflect.Type        { return c.owner }
func (c *compiledField[P]) Field() reflect.StructField { return c.field }
func (c *compiledField[P]) Index() []int               { return c.index }

func (c *compiledField[P]) address(target any) (unsafe.Pointer, error) {
	if reflect.TypeOf(target) != c.ptr {
		return nil, errors.Wrapf(ErrInvalidTarget, "expected %s, got %T", c.ptr, target)
	}
	base := reflect.ValueOf(target).UnsafePointer()
	if base == nil {
		return nil, errors.Wrapf(ErrInvalidTarget, "nil %s", c.ptr)
	}
	return unsafe.Add(base, c.offset), nil
}

func (c *compiledField[P]) SetTyped(target any, value P) error {
	addr, err := c.address(target)
	if err != nil {
		return err
	}
	*(*P)(addr) = value
	return nil
}

func (c *compiledField[P]) Set(target any, value any) error {
	addr, err := c.address(target)
	if err != nil {
		return err
	}
	if p, ok := value.(P); ok {
		*(*P)(addr) = p
		return nil
	}
	return Assign(reflect.NewAt(c.field.Type, addr).Elem(), value)
}

func (c *compiledField[P]) GetTyped(target any) (P, error) {
	addr, err := c.address(target)
	if err != nil {
		var zero P
		return zero, err
	}
	return *(*P)(addr), nil
}

func (c *compiledField[P]) Get(target any) (any, error) {
	return c.GetTyped(target)
}

func newCompiledField[P any](owner reflect.Type, field reflect.StructField, index []int, offset uintptr) Accessor {
	return &compiledField[P]{
		owner:  owner,
		ptr:    reflect.PointerTo(owner),
		field:  field,
		index:  index,
		offset: offset,
	}
}

var compilers = map[reflect.Type]func(reflect.Type, reflect.StructField, []int, uintptr) Accessor{
	reflect.TypeFor[bool]():      newCompiledField[bool],
	reflect.TypeFor[int8]():      newCompiledField[int8],
	reflect.TypeFor[byte]():      newCompiledField[byte],
	reflect.TypeFor[rune]():      newCompiledField[rune],
	reflect.TypeFor[int16]():     newCompiledField[int16],
	reflect.TypeFor[uint16]():    newCompiledField[uint16],
	reflect.TypeFor[uint32]():    newCompiledField[uint32],
	reflect.TypeFor[int]():       newCompiledField[int],
	reflect.TypeFor[uint]():      newCompiledField[uint],
	reflect.TypeFor[int64]():     newCompiledField[int64],
	reflect.TypeFor[uint64]():    newCompiledField[uint64],
	reflect.TypeFor[float32]():   newCompiledField[float32],
	reflect.TypeFor[float64]():   newCompiledField[float64],
	reflect.TypeFor[string]():    newCompiledField[string],
	reflect.TypeFor[time.Time](): newCompiledField[time.Time],
}

// compileField builds a compiled accessor for the field at index, or fails
// when the field type has no compiler or the path crosses a pointer.
func compileField(owner reflect.Type, field reflect.StructField, index []int) (acc Accessor, err error) {
	defer func() {
		if r := recover(); r != nil {
			acc, err = nil, fmt.Errorf("compile %s.%s: %v", owner, field.Name, r)
		}
	}()

	compiler, ok := compilers[field.Type]
	if !ok {
		return nil, errors.Errorf("no compiled accessor for %s", field.Type)
	}

	var offset uintptr
	current := owner
	for i, x := range index {
		if current.Kind() != reflect.Struct {
			return nil, errors.Errorf("path of %s.%s crosses %s", owner, field.Name, current)
		}
		f := current.Field(x)
		offset += f.Offset
		if i < len(index)-1 {
			current = f.Type
		}
	}
	return compiler(owner, field, index, offset), nil
}

// compiledFunc is an accessor registered ahead of use from plain functions,
// typically produced by code generation.
type compiledFunc[T any, P any] struct {
	property string
	get      func(*T) P
	set      func(*T, P)
}

func (c *compiledFunc[T, P]) target(target any) (*T, error) {
	t, ok := target.(*T)
	if !ok || t == nil {
		return nil, errors.Wrapf(ErrInvalidTarget, "expected non-nil %T, got %T", (*T)(nil), target)
	}
	return t, nil
}

func (c *compiledFunc[T, P]) SetTyped(target any, value P) error {
	if c.set == nil {
		return errors.Wrap(ErrReadOnly, c.property)
	}
	t, err := c.target(target)
	if err != nil {
		return err
	}
	c.set(t, value)
	return nil
}

func (c *compiledFunc[T, P]) Set(target any, value any) error {
	if p, ok := value.(P); ok {
		return c.SetTyped(target, p)
	}
	var p P
	if err := Assign(reflect.ValueOf(&p).Elem(), value); err != nil {
		return err
	}
	return c.SetTyped(target, p)
}

func (c *compiledFunc[T, P]) GetTyped(target any) (P, error) {
	var zero P
	if c.get == nil {
		return zero, errors.Errorf("property %s has no getter", c.property)
	}
	t, err := c.target(target)
	if err != nil {
		return zero, err
	}
	return c.get(t), nil
}

func (c *compiledFunc[T, P]) Get(target any) (any, error) {
	return c.GetTyped(target)
}

type registryKey struct {
	owner    reflect.Type
	property string
}

type registration struct {
	accessor Accessor
	canSet   bool
	canGet   bool
}

var registry sync.Map // registryKey -> registration

// Register installs a compiled accessor for property on T. Either function may
// be nil for a write-only or read-only property. Registered accessors take
// precedence over methods and fields.
func Register[T any, P any](property string, get func(*T) P, set func(*T, P)) {
	owner := reflect.TypeFor[T]()
	registry.Store(registryKey{owner: owner, property: reflectutils.NormalizeName(property)}, registration{
		accessor: &compiledFunc[T, P]{property: property, get: get, set: set},
		canSet:   set != nil,
		canGet:   get != nil,
	})
}

func registered(owner reflect.Type, property string) (registration, bool) {
	r, ok := registry.Load(registryKey{owner: owner, property: reflectutils.NormalizeName(property)})
	if !ok {
		return registration{}, false
	}
	return r.(registration), true
}
