package pool

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamedUser struct {
	UserId int    `primaryKey:"user_id"`
	Name   string `db:"user_name"`
}

func ptr[T any](v T) *T { return &v }

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfiguration{
		MaxOpenConns:   ptr(10),
		MaxIdleConnTTL: ptr(time.Minute),
		ConnTimeout:    ptr(3 * time.Second),
		User:           ptr("app"),
		Password:       ptr("s3cret"),
		Host:           ptr("db.local"),
		Port:           ptr("5433"),
		Name:           ptr("orders"),
	}

	dsn, err := url.Parse(cfg.getDSN())
	require.NoError(t, err)

	assert.Equal(t, "postgres", dsn.Scheme)
	assert.Equal(t, "db.local:5433", dsn.Host)
	assert.Equal(t, "/orders", dsn.Path)
	assert.Equal(t, "app", dsn.User.Username())
	query := dsn.Query()
	assert.Equal(t, "10", query.Get("pool_max_conns"))
	assert.Equal(t, "1m0s", query.Get("pool_max_conn_idle_time"))
	assert.Equal(t, "3", query.Get("connect_timeout"))
	assert.False(t, query.Has("pool_min_conns"))
}

func TestQueryStream(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("^SELECT (.+) FROM users$").
		WillReturnRows(mock.NewRows([]string{"user_id", "user_name"}).
			AddRow(1, "John").
			AddRow(2, "Jane"))

	var got []streamedUser
	for u, err := range QueryStream[streamedUser](context.Background(), mock, "SELECT * FROM users", nil) {
		require.NoError(t, err)
		got = append(got, *u)
	}

	assert.Equal(t, []streamedUser{{UserId: 1, Name: "John"}, {UserId: 2, Name: "Jane"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryStreamNamedArgs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	args := pgx.NamedArgs{"id": 2}
	mock.ExpectQuery("^SELECT (.+) FROM users WHERE user_id = @id$").
		WithArgs(args).
		WillReturnRows(mock.NewRows([]string{"user_id", "user_name"}).AddRow(2, "Jane"))

	users, err := mapper.Collect(QueryStream[streamedUser](context.Background(), mock, "SELECT * FROM users WHERE user_id = @id", args))
	require.NoError(t, err)
	assert.Equal(t, []streamedUser{{UserId: 2, Name: "Jane"}}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryArgs(t *testing.T) {
	assert.Nil(t, queryArgs(nil))
	assert.Nil(t, queryArgs(pgx.NamedArgs{}))
	args := pgx.NamedArgs{"id": 1}
	assert.Equal(t, []any{args}, queryArgs(args))
}

func TestQueryStreamQueryFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("^SELECT (.+) FROM users$").WillReturnError(errors.New("relation does not exist"))

	var streamErr error
	for _, err := range QueryStream[streamedUser](context.Background(), mock, "SELECT * FROM users", nil) {
		streamErr = err
	}
	assert.EqualError(t, streamErr, "relation does not exist")
}

// mockConn serves QueryList from a pgxmock pool.
type mockConn struct {
	Conn
	mock pgxmock.PgxPoolIface
}

func (c mockConn) QueryList(ctx context.Context, sql string, dest interface{}, args pgx.NamedArgs) error {
	rows, err := c.mock.Query(ctx, sql, queryArgs(args)...)
	if err != nil {
		return err
	}
	return mapper.ScanMany(rows, dest)
}

func TestQueryListAsync(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("^SELECT (.+) FROM users$").
		WillReturnRows(mock.NewRows([]string{"user_id", "user_name"}).AddRow(1, "John"))

	f := QueryListAsync[streamedUser](context.Background(), mockConn{mock: mock}, "SELECT * FROM users", nil)

	users, err := f.GetUninterruptibly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []streamedUser{{UserId: 1, Name: "John"}}, users)
}
