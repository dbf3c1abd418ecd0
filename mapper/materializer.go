package mapper

import (
	"reflect"

	"github.com/raunlo/pgx-flatmapper/rowsource"
	reflectutils "github.com/raunlo/pgx-flatmapper/reflect_utils"
)

// node is an entity under construction. Children are kept per level and
// written into the entity's relationship fields once its root completes.
type node struct {
	value    reflect.Value // pointer to the entity
	children map[int][]*node
	seen     map[int]map[string]*node
}

func newNode(t reflect.Type) *node {
	return &node{value: reflect.New(t)}
}

func (n *node) child(level int, key string) *node {
	return n.seen[level][key]
}

func (n *node) hasChildren(level int) bool {
	return len(n.children[level]) > 0
}

func (n *node) addChild(level int, key string, child *node) {
	if n.children == nil {
		n.children = make(map[int][]*node)
		n.seen = make(map[int]map[string]*node)
	}
	if n.seen[level] == nil {
		n.seen[level] = make(map[string]*node)
	}
	n.children[level] = append(n.children[level], child)
	n.seen[level][key] = child
}

type pendingChild struct {
	parent *node
	level  int
	key    string
	child  *node
}

// materializer folds rows into open entities, one level per detector.
type materializer struct {
	definition *Definition
	ctx        *MappingContext
	open       []*node
	next       []*node
	pending    []pendingChild
	saved      contextSnapshot
	ordinal    int
}

func newMaterializer(definition *Definition) *materializer {
	return &materializer{
		definition: definition,
		ctx:        definition.NewMappingContext(),
		open:       make([]*node, len(definition.Levels)),
		next:       make([]*node, len(definition.Levels)),
	}
}

// consume applies row to the open graph and returns the root it completed, if
// any. A failed row leaves the graph and the break detectors as they were. The
// root it would have completed is still returned alongside the error.
func (m *materializer) consume(row rowsource.Row) (*node, error) {
	m.ordinal++
	m.ctx.snapshot(&m.saved)
	completed, err := m.apply(row)
	if err != nil {
		m.ctx.restore(m.saved)
		return completed, err
	}
	return completed, nil
}

func (m *materializer) apply(row rowsource.Row) (*node, error) {
	signals, err := m.ctx.Advance(row)
	if err != nil {
		return nil, &RowError{Row: m.ordinal, Entity: m.definition.Root, Err: err}
	}

	copy(m.next, m.open)
	m.pending = m.pending[:0]
	rootBroke := false
	failed := func(err error) (*node, error) {
		if rootBroke {
			return m.open[0], err
		}
		return nil, err
	}
	for i, level := range m.definition.Levels {
		switch signals[i] {
		case Continue:
			continue
		case Absent:
			m.next[i] = nil
			rootBroke = rootBroke || i == 0
			continue
		}

		if i == 0 {
			rootBroke = true
			root := newNode(level.Type)
			if err := m.populate(root, level, row); err != nil {
				return failed(err)
			}
			m.next[0] = root
			continue
		}

		parent := m.next[level.Parent]
		if parent == nil {
			m.next[i] = nil
			continue
		}
		key := m.ctx.Detector(i).Key().String()
		if existing := parent.child(i, key); existing != nil {
			m.next[i] = existing
			continue
		}
		if level.Relation == RelationOneToOne && parent.hasChildren(i) {
			return failed(&RowError{
				Row:      m.ordinal,
				Entity:   m.definition.Levels[level.Parent].Type,
				Property: level.Field.Name,
				Err:      getTooManyRowsError(level.Type),
			})
		}
		child := newNode(level.Type)
		if err := m.populate(child, level, row); err != nil {
			return failed(err)
		}
		m.pending = append(m.pending, pendingChild{parent: parent, level: i, key: key, child: child})
		m.next[i] = child
	}

	var completed *node
	if rootBroke {
		completed = m.open[0]
	}
	for _, p := range m.pending {
		p.parent.addChild(p.level, p.key, p.child)
	}
	m.open, m.next = m.next, m.open
	return completed, nil
}

func (m *materializer) populate(n *node, level *Level, row rowsource.Row) error {
	target := n.value.Interface()
	for _, property := range level.Properties {
		value, ok := row.Get(property.Column)
		if !ok || value == nil {
			continue // Handle NULL values
		}
		if err := property.Setter.Set(target, value); err != nil {
			return &RowError{
				Row:      m.ordinal,
				Entity:   level.Type,
				Property: property.Name,
				Column:   property.Column,
				Err:      err,
			}
		}
	}
	return nil
}

// finish returns the root still open at the end of the rows.
func (m *materializer) finish() *node {
	root := m.open[0]
	clear(m.open)
	return root
}

// assemble writes the collected children of n into its relationship fields,
// deepest first, and returns the entity pointer.
func (m *materializer) assemble(n *node, index int) reflect.Value {
	for _, childIndex := range m.definition.Levels[index].Children {
		children := n.children[childIndex]
		if len(children) == 0 {
			continue
		}
		for _, child := range children {
			m.assemble(child, childIndex)
		}
		attach(n.value.Elem(), m.definition.Levels[childIndex], children)
	}
	return n.value
}

func attach(parent reflect.Value, level *Level, children []*node) {
	field := reflectutils.Settable(reflectutils.FieldByIndexAlloc(parent, level.FieldIndex))
	fieldType := field.Type()

	if level.Relation == RelationOneToOne {
		if fieldType.Kind() == reflect.Ptr {
			field.Set(children[0].value)
		} else {
			field.Set(children[0].value.Elem())
		}
		return
	}

	sliceType := reflectutils.DeReferencePointer(fieldType)
	byPointer := sliceType.Elem().Kind() == reflect.Ptr
	slice := reflect.MakeSlice(sliceType, 0, len(children))
	for _, child := range children {
		if byPointer {
			slice = reflect.Append(slice, child.value)
		} else {
			slice = reflect.Append(slice, child.value.Elem())
		}
	}
	if fieldType.Kind() == reflect.Ptr {
		p := reflect.New(sliceType)
		p.Elem().Set(slice)
		field.Set(p)
		return
	}
	field.Set(slice)
}
