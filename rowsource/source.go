package rowsource

import (
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Source yields rows one at a time, like pgx.Rows.
type Source interface {
	// Next advances to the next row. It returns false when the source is
	// exhausted or failed; Err tells the two apart.
	Next() bool
	// Row returns the current row.
	Row() (Row, error)
	Err() error
	Close() error
}

type pgxSource struct {
	rows    pgx.Rows
	columns []string
}

// FromPgx adapts pgx rows. Column names come from the field descriptions.
func FromPgx(rows pgx.Rows) Source {
	return &pgxSource{rows: rows}
}

func (s *pgxSource) Next() bool { return s.rows.Next() }

func (s *pgxSource) Row() (Row, error) {
	if s.columns == nil {
		descriptions := s.rows.FieldDescriptions()
		s.columns = make([]string, len(descriptions))
		for i, description := range descriptions {
			s.columns[i] = description.Name
		}
	}
	values, err := s.rows.Values()
	if err != nil {
		return Row{}, errors.Wrap(err, "read pgx row values")
	}
	return NewRow(s.columns, values)
}

func (s *pgxSource) Err() error { return s.rows.Err() }

func (s *pgxSource) Close() error {
	s.rows.Close()
	return nil
}

type sqlSource struct {
	rows    *sql.Rows
	columns []string
	err     error
}

// FromSQL adapts database/sql rows from any driver.
func FromSQL(rows *sql.Rows) Source {
	return &sqlSource{rows: rows}
}

func (s *sqlSource) Next() bool {
	if s.err != nil {
		return false
	}
	return s.rows.Next()
}

func (s *sqlSource) Row() (Row, error) {
	if s.columns == nil {
		columns, err := s.rows.Columns()
		if err != nil {
			s.err = errors.Wrap(err, "failed to get columns")
			return Row{}, s.err
		}
		s.columns = columns
	}
	values := make([]any, len(s.columns))
	targets := make([]any, len(s.columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := s.rows.Scan(targets...); err != nil {
		return Row{}, errors.Wrap(err, "failed to scan row")
	}
	return NewRow(s.columns, values)
}

func (s *sqlSource) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

func (s *sqlSource) Close() error { return s.rows.Close() }

type sliceSource struct {
	columns []string
	rows    [][]any
	pos     int
}

// FromSlice serves rows held in memory.
func FromSlice(columns []string, rows [][]any) Source {
	return &sliceSource{columns: columns, rows: rows, pos: -1}
}

func (s *sliceSource) Next() bool {
	if s.pos+1 >= len(s.rows) {
		s.pos = len(s.rows)
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Row() (Row, error) {
	if s.pos < 0 || s.pos >= len(s.rows) {
		return Row{}, errors.New("no current row")
	}
	return NewRow(s.columns, s.rows[s.pos])
}

func (s *sliceSource) Err() error   { return nil }
func (s *sliceSource) Close() error { return nil }
