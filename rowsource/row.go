// Package rowsource adapts flat record streams (pgx and database/sql result
// sets, CSV, JSON lines, in-memory slices) to a single forward-only Source of
// Rows with named and positional column access.
package rowsource

import (
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var ErrColumnCount = errors.New("column count does not match value count")

// Row is one flat record. Columns keep the order the source produced them in;
// a repeated column name keeps its first position and its last value.
type Row struct {
	values *orderedmap.OrderedMap[string, any]
}

// NewRow pairs columns with values.
func NewRow(columns []string, values []any) (Row, error) {
	if len(columns) != len(values) {
		return Row{}, errors.Wrapf(ErrColumnCount, "%d columns, %d values", len(columns), len(values))
	}
	om := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(columns)))
	for i, column := range columns {
		om.Set(column, values[i])
	}
	return Row{values: om}, nil
}

func rowFromMap(om *orderedmap.OrderedMap[string, any]) Row {
	return Row{values: om}
}

// Get returns the value of column and whether the row has that column.
func (r Row) Get(column string) (any, bool) {
	if r.values == nil {
		return nil, false
	}
	return r.values.Get(column)
}

// At returns the value at position i.
func (r Row) At(i int) (any, bool) {
	if r.values == nil || i < 0 {
		return nil, false
	}
	for pair := r.values.Oldest(); pair != nil; pair = pair.Next() {
		if i == 0 {
			return pair.Value, true
		}
		i--
	}
	return nil, false
}

// Columns returns the column names in source order.
func (r Row) Columns() []string {
	if r.values == nil {
		return nil
	}
	columns := make([]string, 0, r.values.Len())
	for pair := r.values.Oldest(); pair != nil; pair = pair.Next() {
		columns = append(columns, pair.Key)
	}
	return columns
}

func (r Row) Len() int {
	if r.values == nil {
		return 0
	}
	return r.values.Len()
}

// Map copies the row into a plain map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, r.Len())
	if r.values == nil {
		return m
	}
	for pair := r.values.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}
