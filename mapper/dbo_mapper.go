package mapper

import (
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/rowsource"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

// ScanOne scans rows into one object. Might need to scan multiple rows where there is one-to-many or one-to-one relationships
func ScanOne(rows pgx.Rows, dest interface{}, opts ...Option) error {
	defer rows.Close()
	destinationType := reflect.TypeOf(dest)
	if destinationType == nil {
		return errors.New("dest cannot be nil")
	}

	if destinationType.Kind() != reflect.Ptr {
		return errors.New("dest must be a pointer")
	}
	if !reflectutils.IsStructType(destinationType) {
		return errors.New("dest must be a pointer to a struct")
	}
	// de-reference pointer
	destinationType = reflectutils.DeReferencePointer(destinationType)

	o := newOptions(opts)
	definition, err := o.definitionFor(destinationType)
	if err != nil {
		return err
	}

	destinationValue := reflect.ValueOf(dest).Elem()
	found := false
	var scanErr error
	run(rowsource.FromPgx(rows), definition, o, func(root reflect.Value, err error) bool {
		switch {
		case err != nil:
			scanErr = err
			return false
		case found:
			scanErr = getTooManyRowsError(destinationType)
			return false
		}
		found = true
		destinationValue.Set(root.Elem())
		return true
	})
	if scanErr != nil {
		return scanErr
	}
	if !found {
		return ErrNoRows
	}
	return nil
}

// ScanMany scans rows into a slice of objects. Elements may be structs or
// pointers to structs.
func ScanMany(rows pgx.Rows, dest interface{}, opts ...Option) error {
	defer rows.Close()
	if dest == nil {
		return errors.New("dest cannot be nil")
	}
	destinationPtrValue := reflect.ValueOf(dest)

	if destinationPtrValue.Kind() != reflect.Ptr {
		return errors.New("dest must be a pointer")
	}

	destinationValue := destinationPtrValue.Elem()
	destinationType := destinationValue.Type()

	if destinationType.Kind() != reflect.Slice {
		return errors.New("dest must be a slice")
	}

	elType := destinationType.Elem()
	byPointer := elType.Kind() == reflect.Ptr
	if !reflectutils.IsStructType(elType) {
		return errors.New("dest must be a slice of structs")
	}
	entityType := reflectutils.DeReferencePointer(elType)

	o := newOptions(opts)
	definition, err := o.definitionFor(entityType)
	if err != nil {
		return err
	}

	result := reflect.MakeSlice(destinationType, 0, 0)
	var scanErr error
	run(rowsource.FromPgx(rows), definition, o, func(root reflect.Value, err error) bool {
		if err != nil {
			scanErr = err
			return false
		}
		if byPointer {
			result = reflect.Append(result, root)
		} else {
			result = reflect.Append(result, root.Elem())
		}
		return true
	})
	if scanErr != nil {
		return scanErr
	}
	destinationValue.Set(result)
	return nil
}
