package mapper

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/accessor"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

var ErrNotStruct = errors.New("entity must be a struct")

const (
	dbTag           = "db"
	primaryKeyTag   = "primaryKey"
	relationshipTag = "relationship"
)

// DefinitionFor returns the mapping of entityType (a struct or a pointer to
// one), reading db, primaryKey and relationship tags. The result is cached for
// the life of the process.
func DefinitionFor(entityType reflect.Type) (*Definition, error) {
	if entityType == nil {
		return nil, ErrNotStruct
	}
	entityType = reflectutils.DeReferencePointer(entityType)
	if definition, exists := GetEntityGraphDefinition(entityType); exists {
		return definition, nil
	}
	if entityType.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotStruct, "got %s", entityType)
	}

	definition := &Definition{Root: entityType}
	visiting := make(map[reflect.Type]bool)
	if err := analyzeEntity(definition, entityType, -1, RelationRoot, reflect.StructField{}, nil, visiting); err != nil {
		return nil, err
	}
	SetEntityGraphDefinition(entityType, definition)
	return definition, nil
}

func analyzeEntity(definition *Definition, currentType reflect.Type, parent int, relation Relation,
	field reflect.StructField, fieldIndex []int, visiting map[reflect.Type]bool) error {

	if visiting[currentType] {
		return &DefinitionError{Entity: currentType, Reason: "recursive relationship"}
	}
	visiting[currentType] = true
	defer delete(visiting, currentType)

	level := &Level{
		Index:      len(definition.Levels),
		Parent:     parent,
		Type:       currentType,
		Relation:   relation,
		Field:      field,
		FieldIndex: fieldIndex,
	}
	definition.Levels = append(definition.Levels, level)
	if parent >= 0 {
		definition.Levels[parent].Children = append(definition.Levels[parent].Children, level.Index)
	}

	type relationshipField struct {
		field    reflect.StructField
		index    []int
		relation Relation
		entity   reflect.Type
	}
	var relationships []relationshipField

	for _, link := range reflectutils.OwnershipChain(currentType) {
		if link.ViaPointer {
			// Embedded pointers are only followed for scalar properties.
			if err := collectProperties(level, link, currentType, false); err != nil {
				return err
			}
			continue
		}
		for index := 0; index < link.Type.NumField(); index++ {
			structField := link.Type.Field(index)
			tag := structField.Tag.Get(relationshipTag)
			if tag == "" || structField.Anonymous {
				continue
			}
			rel, entity, err := relationshipOf(currentType, structField, tag)
			if err != nil {
				return err
			}
			path := make([]int, len(link.Index), len(link.Index)+1)
			copy(path, link.Index)
			relationships = append(relationships, relationshipField{
				field:    structField,
				index:    append(path, index),
				relation: rel,
				entity:   entity,
			})
		}
		if err := collectProperties(level, link, currentType, true); err != nil {
			return err
		}
	}

	if len(level.KeyColumns) == 0 && parent >= 0 {
		return &DefinitionError{Entity: currentType, Reason: "no primary key for nested entity"}
	}

	for _, r := range relationships {
		if err := analyzeEntity(definition, r.entity, level.Index, r.relation, r.field, r.index, visiting); err != nil {
			return err
		}
	}
	return nil
}

func collectProperties(level *Level, link reflectutils.Owner, currentType reflect.Type, withKeys bool) error {
	for index := 0; index < link.Type.NumField(); index++ {
		structField := link.Type.Field(index)
		if structField.Anonymous || structField.Tag.Get(relationshipTag) != "" {
			continue
		}
		column := structField.Tag.Get(primaryKeyTag)
		isKey := column != ""
		if !isKey {
			column = structField.Tag.Get(dbTag)
		}
		if column == "" || column == "-" {
			continue
		}
		if isKey && !withKeys {
			return &DefinitionError{Entity: currentType, Field: structField.Name,
				Reason: "primary key behind an embedded pointer"}
		}

		setter, found := accessor.ResolveSetter(currentType, structField.Name)
		if !found {
			return &DefinitionError{Entity: currentType, Field: structField.Name, Reason: "no setter"}
		}
		if isKey {
			level.KeyColumns = append(level.KeyColumns, column)
		}
		level.Properties = append(level.Properties, Property{
			Name:   structField.Name,
			Column: column,
			Setter: setter,
		})
	}
	return nil
}

func relationshipOf(owner reflect.Type, field reflect.StructField, tag string) (Relation, reflect.Type, error) {
	elementType := reflectutils.DeReferencePointer(field.Type)
	var relation Relation
	switch tag {
	case "oneToMany":
		if elementType.Kind() != reflect.Slice {
			return 0, nil, &DefinitionError{Entity: owner, Field: field.Name,
				Reason: fmt.Sprintf("oneToMany needs a slice, got %s", field.Type)}
		}
		relation = RelationOneToMany
		elementType = reflectutils.DeReferencePointer(elementType.Elem())
	case "oneToOne":
		relation = RelationOneToOne
	default:
		return 0, nil, &DefinitionError{Entity: owner, Field: field.Name,
			Reason: fmt.Sprintf("unknown relationship %q", tag)}
	}
	if elementType.Kind() != reflect.Struct {
		return 0, nil, &DefinitionError{Entity: owner, Field: field.Name,
			Reason: fmt.Sprintf("relationship target must be a struct, got %s", elementType)}
	}
	return relation, elementType, nil
}
