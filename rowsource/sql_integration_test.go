//go:build integration

package rowsource

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SQLSourceDuckdbSuite struct {
	suite.Suite
	db *sql.DB
}

func (s *SQLSourceDuckdbSuite) SetupSuite() {
	db, err := sql.Open("duckdb", "")
	s.Require().NoError(err)
	s.db = db
}

func (s *SQLSourceDuckdbSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
}

func Test_SQLSourceDuckdbSuite(t *testing.T) {
	suite.Run(t, new(SQLSourceDuckdbSuite))
}

func (s *SQLSourceDuckdbSuite) TestFromSQL() {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT * FROM (VALUES (1, 'default', 10), (1, 'default', NULL)) AS t(org_id, org_name, user_id)
		ORDER BY user_id NULLS LAST`)
	s.Require().NoError(err)

	var got []Row
	src := FromSQL(rows)
	for src.Next() {
		row, err := src.Row()
		s.Require().NoError(err)
		got = append(got, row)
	}
	s.Require().NoError(src.Err())
	s.Require().NoError(src.Close())

	require.Len(s.T(), got, 2)
	s.Equal([]string{"org_id", "org_name", "user_id"}, got[0].Columns())
	name, _ := got[0].Get("org_name")
	s.Equal("default", name)
	id, ok := got[1].Get("user_id")
	s.True(ok)
	s.Nil(id)
}
