package mapper

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/rowsource"
)

// IdentityKey is the ordered tuple of key column values identifying one entity
// at a level.
type IdentityKey []any

// Equal compares keys element by element. Byte slices compare by content and
// other non-comparable values by deep equality.
func (k IdentityKey) Equal(other IdentityKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if !valuesEqual(k[i], other[i]) {
			return false
		}
	}
	return true
}

// String encodes the key for use as a map key. Equal keys encode equally and
// each element is length prefixed, so distinct keys never share an encoding.
func (k IdentityKey) String() string {
	var b strings.Builder
	for _, v := range k {
		element := fmt.Sprintf("%T:%#v", v, v)
		b.WriteString(strconv.Itoa(len(element)))
		b.WriteByte(':')
		b.WriteString(element)
	}
	return b.String()
}

func (k IdentityKey) isNull() bool {
	for _, v := range k {
		if v != nil {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Signal is the outcome of break detection at one level for one row.
type Signal int

const (
	// Continue keeps the entity already open at the level.
	Continue Signal = iota
	// Break opens a new entity at the level.
	Break
	// Absent means the key columns are all null: no entity at the level or below.
	Absent
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Break:
		return "break"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// IsBreak reports whether the level closed its previous entity.
func (s Signal) IsBreak() bool { return s != Continue }

type detectorState int

const (
	stateUnset detectorState = iota
	stateNull
	stateSet
)

// BreakDetector tracks the previous identity key of one level.
type BreakDetector struct {
	level   int
	parent  int
	columns []string
	state   detectorState
	last    IdentityKey
}

func (d *BreakDetector) Level() int        { return d.level }
func (d *BreakDetector) Parent() int       { return d.parent }
func (d *BreakDetector) Columns() []string { return d.columns }

// Key returns the key last observed, nil before the first row or after a null key.
func (d *BreakDetector) Key() IdentityKey { return d.last }

// Observe compares key with the previous one and keeps a copy of it on a
// break. forced is set when an ancestor level broke on the same row.
func (d *BreakDetector) Observe(key IdentityKey, forced bool) Signal {
	if len(d.columns) > 0 && key.isNull() {
		d.state = stateNull
		d.last = nil
		return Absent
	}
	// A level without key columns is distinct on every row.
	if forced || d.state != stateSet || len(d.columns) == 0 || !d.last.Equal(key) {
		d.state = stateSet
		d.last = append(IdentityKey(nil), key...)
		return Break
	}
	return Continue
}

func (d *BreakDetector) suppress() {
	d.state = stateNull
	d.last = nil
}

func (d *BreakDetector) Reset() {
	d.state = stateUnset
	d.last = nil
}

// LevelKey describes how one level is identified. Parent is -1 for the root.
type LevelKey struct {
	Parent  int
	Columns []string
}

// MappingContext holds one BreakDetector per level for a single pass. It is
// not safe for concurrent use.
type MappingContext struct {
	detectors []*BreakDetector
	signals   []Signal
	keys      []IdentityKey
}

// NewMappingContext builds a context from level keys ordered so that every
// parent precedes its children. Level 0 is the root.
func NewMappingContext(levels ...LevelKey) (*MappingContext, error) {
	if len(levels) == 0 {
		return nil, errors.New("mapping context needs at least one level")
	}
	ctx := &MappingContext{
		detectors: make([]*BreakDetector, len(levels)),
		signals:   make([]Signal, len(levels)),
		keys:      make([]IdentityKey, len(levels)),
	}
	for i, level := range levels {
		switch {
		case i == 0 && level.Parent != -1:
			return nil, errors.New("level 0 must be the root")
		case i > 0 && (level.Parent < 0 || level.Parent >= i):
			return nil, errors.Errorf("level %d: parent %d must precede it", i, level.Parent)
		}
		ctx.detectors[i] = &BreakDetector{level: i, parent: level.Parent, columns: level.Columns}
	}
	return ctx, nil
}

func (c *MappingContext) Levels() int { return len(c.detectors) }

func (c *MappingContext) Detector(level int) *BreakDetector { return c.detectors[level] }

// Advance runs break detection for row on every level, root first. A break or
// absence at a level forces a break on all of its descendants. The returned
// slice is reused by the next call.
func (c *MappingContext) Advance(row rowsource.Row) ([]Signal, error) {
	for i, d := range c.detectors {
		key := c.keys[i][:0]
		for _, column := range d.columns {
			value, ok := row.Get(column)
			if !ok {
				return nil, errors.Wrapf(ErrMissingKey, "column %s", column)
			}
			key = append(key, value)
		}
		c.keys[i] = key

		if d.parent >= 0 && c.signals[d.parent] == Absent {
			d.suppress()
			c.signals[i] = Absent
			continue
		}
		forced := d.parent >= 0 && c.signals[d.parent] == Break
		c.signals[i] = d.Observe(key, forced)
	}
	return c.signals, nil
}

// Reset returns every detector to its state before the first row.
func (c *MappingContext) Reset() {
	for i, d := range c.detectors {
		d.Reset()
		c.signals[i] = Continue
	}
}

type contextSnapshot struct {
	states []detectorState
	keys   []IdentityKey
}

func (c *MappingContext) snapshot(s *contextSnapshot) {
	s.states = s.states[:0]
	s.keys = s.keys[:0]
	for _, d := range c.detectors {
		s.states = append(s.states, d.state)
		s.keys = append(s.keys, d.last)
	}
}

func (c *MappingContext) restore(s contextSnapshot) {
	for i, d := range c.detectors {
		d.state = s.states[i]
		d.last = s.keys[i]
	}
}
