package accessor

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Assign converts value to the type of field and stores it. field must be settable.
// A nil value stores the zero value.
func Assign(field reflect.Value, value any) error {
	if value == nil {
		field.SetZero()
		return nil
	}
	v := reflect.ValueOf(value)
	if err := assign(field, v); err != nil {
		var coercion *CoercionError
		if errors.As(err, &coercion) {
			return err
		}
		return coercionError(value, field.Type(), err)
	}
	return nil
}

func assign(field reflect.Value, v reflect.Value) error {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		field.SetZero()
		return nil
	}
	// if field is not pointer, but value is pointer, then dereference
	for v.Kind() == reflect.Ptr && field.Kind() != reflect.Ptr {
		if v.IsNil() {
			field.SetZero()
			return nil
		}
		v = v.Elem()
	}

	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)
		return nil
	}

	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner).Scan(v.Interface())
	}
	if v.Type().Implements(valuerType) && field.Kind() != reflect.Interface {
		raw, err := v.Interface().(driver.Valuer).Value()
		if err != nil {
			return err
		}
		if raw == nil {
			field.SetZero()
			return nil
		}
		return assign(field, reflect.ValueOf(raw))
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return setIntField(field, v)
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		return setUintField(field, v)
	case reflect.String:
		return setStringField(field, v)
	case reflect.Bool:
		return setBoolField(field, v)
	case reflect.Float64, reflect.Float32:
		return setFloatField(field, v)
	case reflect.Struct:
		return setStructField(field, v)
	case reflect.Slice:
		return setSliceField(field, v)
	case reflect.Ptr:
		return setPointerField(field, v)
	case reflect.Interface:
		if v.Type().Implements(field.Type()) {
			field.Set(v)
			return nil
		}
		return fmt.Errorf("%s does not implement %s", v.Type(), field.Type())
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind().String())
	}
}

func setPointerField(field reflect.Value, v reflect.Value) error {
	if v.Kind() == reflect.Ptr && v.IsNil() {
		field.SetZero()
		return nil
	}
	if field.IsNil() {
		// Initialize the pointer if it is nil
		field.Set(reflect.New(field.Type().Elem()))
	}
	return assign(field.Elem(), v)
}

func setStringField(field reflect.Value, v reflect.Value) error {
	switch {
	case v.Kind() == reflect.String:
		field.SetString(v.String())
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		field.SetString(string(v.Bytes()))
	default:
		return fmt.Errorf("type mismatch: expected string, got %s", v.Type())
	}
	return nil
}

func setBoolField(field reflect.Value, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		field.SetBool(v.Bool())
	case reflect.String:
		b, err := strconv.ParseBool(strings.TrimSpace(v.String()))
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("type mismatch: expected bool, got %s", v.Type())
	}
	return nil
}

func setIntField(field reflect.Value, v reflect.Value) error {
	var n int64
	switch v.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		n = v.Int()
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		if v.Uint() > math.MaxInt64 {
			return fmt.Errorf("value %d overflows %s", v.Uint(), field.Type())
		}
		n = int64(v.Uint())
	case reflect.Float64, reflect.Float32: // Allow conversion from float to int
		f := v.Float()
		if f != math.Trunc(f) {
			return fmt.Errorf("value %v has a fractional part", f)
		}
		// -2^63 converts exactly; 2^63 and beyond do not fit.
		if f < math.MinInt64 || f >= -math.MinInt64 {
			return fmt.Errorf("value %v overflows %s", f, field.Type())
		}
		n = int64(f)
	case reflect.String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return err
		}
		n = parsed
	default:
		return fmt.Errorf("type mismatch: expected integer, got %s", v.Type())
	}
	if field.OverflowInt(n) {
		return fmt.Errorf("value %d overflows %s", n, field.Type())
	}
	field.SetInt(n)
	return nil
}

func setUintField(field reflect.Value, v reflect.Value) error {
	var n uint64
	switch v.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		intValue := v.Int()
		if intValue < 0 {
			return fmt.Errorf("cannot assign negative value %d to uint field", intValue)
		}
		n = uint64(intValue)
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		n = v.Uint()
	case reflect.Float64, reflect.Float32:
		f := v.Float()
		if f < 0 || f != math.Trunc(f) {
			return fmt.Errorf("value %v is not a non-negative integer", f)
		}
		if f >= 1<<64 {
			return fmt.Errorf("value %v overflows %s", f, field.Type())
		}
		n = uint64(f)
	case reflect.String:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return err
		}
		n = parsed
	default:
		return fmt.Errorf("type mismatch: expected unsigned integer, got %s", v.Type())
	}
	if field.OverflowUint(n) {
		return fmt.Errorf("value %d overflows %s", n, field.Type())
	}
	field.SetUint(n)
	return nil
}

func setFloatField(field reflect.Value, v reflect.Value) error {
	var f float64
	switch v.Kind() {
	case reflect.Float64, reflect.Float32:
		f = v.Float()
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		f = float64(v.Int()) // Allow int -> float
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		f = float64(v.Uint())
	case reflect.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return err
		}
		f = parsed
	default:
		return fmt.Errorf("type mismatch: expected float, got %s", v.Type())
	}
	if field.OverflowFloat(f) {
		return fmt.Errorf("value %v overflows %s", f, field.Type())
	}
	field.SetFloat(f)
	return nil
}

func setStructField(field reflect.Value, v reflect.Value) error {
	if field.Type() == timeType {
		switch {
		case v.Type() == timeType:
			field.Set(v)
		case v.Kind() == reflect.String:
			t, err := parseTime(v.String())
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(t))
		default:
			return fmt.Errorf("type mismatch: expected time.Time, got %s", v.Type())
		}
		return nil
	}
	if v.Type().ConvertibleTo(field.Type()) && v.Kind() == reflect.Struct {
		field.Set(v.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("type mismatch: expected %s, got %s", field.Type(), v.Type())
}

func setSliceField(field reflect.Value, v reflect.Value) error {
	elemType := field.Type().Elem()

	if elemType.Kind() == reflect.Uint8 && v.Kind() == reflect.String {
		field.SetBytes([]byte(v.String()))
		return nil
	}

	// Use existing slice or create if nil
	slice := field
	if field.IsNil() {
		slice = reflect.MakeSlice(field.Type(), 0, 0)
	}

	appendElem := func(elem reflect.Value) error {
		newElem := reflect.New(elemType).Elem()
		if err := assign(newElem, elem); err != nil {
			return errors.Wrapf(err, "cannot assign or convert %s to %s", elem.Type(), elemType)
		}
		slice = reflect.Append(slice, newElem)
		return nil
	}

	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		slice = reflect.MakeSlice(field.Type(), 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if err := appendElem(v.Index(i)); err != nil {
				return err
			}
		}
	} else if err := appendElem(v); err != nil {
		return err
	}

	// Write back the final slice to the field
	field.Set(slice)
	return nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
