package accessor

import (
	"reflect"

	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

// fieldAccessor is the generic, reflect based field accessor.
type fieldAccessor struct {
	owner reflect.Type
	field reflect.StructField
	index []int
	// forced overrides the read-only flag of unexported fields on every access.
	forced bool
}

func newFieldAccessor(owner reflect.Type, field reflect.StructField, index []int) *fieldAccessor {
	return &fieldAccessor{
		owner:  owner,
		field:  field,
		index:  index,
		forced: !field.IsExported() || len(index) > 1,
	}
}

func (a *fieldAccessor) Owner() reflect.Type        { return a.owner }
func (a *fieldAccessor) Field() reflect.StructField { return a.field }
func (a *fieldAccessor) Index() []int               { return a.index }

func (a *fieldAccessor) Set(target any, value any) error {
	field, err := a.settable(target)
	if err != nil {
		return err
	}
	return Assign(field, value)
}

func (a *fieldAccessor) Get(target any) (any, error) {
	v, err := targetValue(a.owner, target)
	if err != nil {
		return nil, err
	}
	field, ok := reflectutils.FieldByIndexNoAlloc(v, a.index)
	if !ok {
		return reflect.Zero(a.field.Type).Interface(), nil
	}
	if a.forced {
		field = reflectutils.Settable(field)
	}
	return field.Interface(), nil
}

func (a *fieldAccessor) settable(target any) (reflect.Value, error) {
	v, err := targetValue(a.owner, target)
	if err != nil {
		return reflect.Value{}, err
	}
	field := reflectutils.FieldByIndexAlloc(v, a.index)
	if a.forced {
		field = reflectutils.Settable(field)
	}
	return field, nil
}
