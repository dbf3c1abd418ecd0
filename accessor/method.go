package accessor

import (
	"reflect"

	"github.com/pkg/errors"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// methodSetter calls a Set<Property>(v) method, optionally returning an error.
type methodSetter struct {
	owner  reflect.Type
	method reflect.Method
	// index leads from owner to the embedded struct that declares method.
	index  []int
	param  reflect.Type
}

func (s *methodSetter) Owner() reflect.Type    { return s.owner }
func (s *methodSetter) Method() reflect.Method { return s.method }
func (s *methodSetter) Index() []int           { return s.index }

func (s *methodSetter) baseMethodSetter() *methodSetter { return s }

func (s *methodSetter) Set(target any, value any) error {
	arg := reflect.New(s.param).Elem()
	if err := Assign(arg, value); err != nil {
		return err
	}
	return s.call(target, arg)
}

func (s *methodSetter) call(target any, arg reflect.Value) error {
	recv, err := receiver(s.owner, s.index, target, true)
	if err != nil {
		return err
	}
	out := s.method.Func.Call([]reflect.Value{recv, arg})
	if len(out) == 1 && !out[0].IsNil() {
		return errors.Wrapf(out[0].Interface().(error), "%s.%s", s.owner, s.method.Name)
	}
	return nil
}

// methodGetter calls a <Property>() or Get<Property>() method.
type methodGetter struct {
	owner  reflect.Type
	method reflect.Method
	index  []int
}

func (g *methodGetter) Owner() reflect.Type    { return g.owner }
func (g *methodGetter) Method() reflect.Method { return g.method }
func (g *methodGetter) Index() []int           { return g.index }

func (g *methodGetter) Get(target any) (any, error) {
	recv, err := receiver(g.owner, g.index, target, false)
	if err != nil {
		return nil, err
	}
	if !recv.IsValid() {
		return reflect.Zero(g.method.Type.Out(0)).Interface(), nil
	}
	out := g.method.Func.Call([]reflect.Value{recv})
	if len(out) == 2 && !out[1].IsNil() {
		return nil, errors.Wrapf(out[1].Interface().(error), "%s.%s", g.owner, g.method.Name)
	}
	return out[0].Interface(), nil
}

// receiver returns the pointer to the embedded struct at index inside target.
// Without alloc a nil embedded pointer yields an invalid Value.
func receiver(owner reflect.Type, index []int, target any, alloc bool) (reflect.Value, error) {
	v, err := targetValue(owner, target)
	if err != nil {
		return reflect.Value{}, err
	}
	if len(index) == 0 {
		return v.Addr(), nil
	}
	var embedded reflect.Value
	if alloc {
		embedded = reflectutils.FieldByIndexAlloc(v, index)
	} else {
		var ok bool
		if embedded, ok = reflectutils.FieldByIndexNoAlloc(v, index); !ok {
			return reflect.Value{}, nil
		}
	}
	embedded = reflectutils.Settable(embedded)
	if embedded.Kind() == reflect.Ptr {
		if embedded.IsNil() {
			if !alloc {
				return reflect.Value{}, nil
			}
			embedded.Set(reflect.New(embedded.Type().Elem()))
		}
		return embedded, nil
	}
	return embedded.Addr(), nil
}

func isSetterMethod(m reflect.Method) bool {
	t := m.Type // receiver included
	if t.NumIn() != 2 {
		return false
	}
	return t.NumOut() == 0 || (t.NumOut() == 1 && t.Out(0) == errorType)
}

func isGetterMethod(m reflect.Method) bool {
	t := m.Type
	if t.NumIn() != 1 {
		return false
	}
	return t.NumOut() == 1 || (t.NumOut() == 2 && t.Out(1) == errorType)
}
