package mapper

import (
	"reflect"
	"sync"

	"github.com/raunlo/pgx-flatmapper/accessor"
)

// Relation says how a level hangs off its parent.
type Relation int

const (
	RelationRoot Relation = iota
	RelationOneToMany
	RelationOneToOne
)

func (r Relation) String() string {
	switch r {
	case RelationRoot:
		return "root"
	case RelationOneToMany:
		return "oneToMany"
	case RelationOneToOne:
		return "oneToOne"
	default:
		return "unknown"
	}
}

// Property is one scalar column written into an entity.
type Property struct {
	Name   string // struct member the column is written to
	Column string
	Setter accessor.Setter
}

// Level is one nesting level of an entity graph.
type Level struct {
	Index    int
	Parent   int // -1 for the root
	Type     reflect.Type
	Relation Relation
	// Field is the relationship field on the parent type. FieldIndex is its
	// path from the parent, through embedded structs when needed.
	Field      reflect.StructField
	FieldIndex []int
	KeyColumns []string
	Properties []Property
	Children   []int
}

// Definition is the mapping of a root type and everything reachable through
// its relationship fields. Levels are numbered depth first; a parent always has
// a lower index than its children.
type Definition struct {
	Root   reflect.Type
	Levels []*Level
}

// Keys returns the per-level key layout used to build a MappingContext.
func (d *Definition) Keys() []LevelKey {
	keys := make([]LevelKey, len(d.Levels))
	for i, level := range d.Levels {
		keys[i] = LevelKey{Parent: level.Parent, Columns: level.KeyColumns}
	}
	return keys
}

// NewMappingContext returns a fresh context for one pass over d.
func (d *Definition) NewMappingContext() *MappingContext {
	ctx, err := NewMappingContext(d.Keys()...)
	if err != nil {
		// Levels built by DefinitionFor are always ordered.
		panic(err)
	}
	return ctx
}

var (
	globalEntityGraphDefinitions = sync.Map{}
)

func GetEntityGraphDefinition(key reflect.Type) (*Definition, bool) {
	value, exists := globalEntityGraphDefinitions.Load(key)
	if !exists {
		return nil, false
	}
	return value.(*Definition), true
}

// SetEntityGraphDefinition stores a definition for key, replacing any
// definition built from struct tags.
func SetEntityGraphDefinition(key reflect.Type, value *Definition) {
	globalEntityGraphDefinitions.Store(key, value)
}
