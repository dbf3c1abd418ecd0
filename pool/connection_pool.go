package pool

import (
	"context"
	"iter"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/raunlo/pgx-flatmapper/future"
	"github.com/raunlo/pgx-flatmapper/logger"
	"github.com/raunlo/pgx-flatmapper/mapper"
	"github.com/raunlo/pgx-flatmapper/rowsource"
	"go.uber.org/zap"
)

type DatabaseConfiguration struct {
	MaxOpenConns             *int           `yaml:"maxOpenConns"`
	MinOpenConns             *int           `yaml:"minOpenConns"`
	StatementCacheCapacity   *int           `yaml:"statementCacheCapacity"`
	ConnTimeout              *time.Duration `yaml:"connTimeout"`
	MaxOpenConnTTL           *time.Duration `yaml:"maxOpenConnTTL"`
	MaxIdleConnTTL           *time.Duration `yaml:"maxIdleConnTTL"`
	MaxConnLifetimeJitterTTL *time.Duration `yaml:"maxConnLifetimeJitterTTL"`
	User                     *string        `yaml:"user"`
	Password                 *string        `yaml:"password"`
	Host                     *string        `yaml:"host"`
	Port                     *string        `yaml:"port"`
	Name                     *string        `yaml:"name"`
}

func (cfg DatabaseConfiguration) getDSN() string { // nolint:gocritic
	query := make(url.Values)
	if cfg.MaxOpenConns != nil {
		query.Set("pool_max_conns", strconv.Itoa(*cfg.MaxOpenConns))
	}
	if cfg.MinOpenConns != nil {
		query.Set("pool_min_conns", strconv.Itoa(*cfg.MinOpenConns))
	}
	if cfg.MaxOpenConnTTL != nil {
		query.Set("pool_max_conn_lifetime", cfg.MaxOpenConnTTL.String())
	}
	if cfg.MaxIdleConnTTL != nil {
		query.Set("pool_max_conn_idle_time", cfg.MaxIdleConnTTL.String())
	}
	if cfg.MaxConnLifetimeJitterTTL != nil {
		query.Set("pool_max_conn_lifetime_jitter", cfg.MaxConnLifetimeJitterTTL.String())
	}
	if cfg.StatementCacheCapacity != nil {
		query.Set("statement_cache_capacity", strconv.Itoa(*cfg.StatementCacheCapacity))
	}
	if cfg.ConnTimeout != nil {
		query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnTimeout.Seconds())))
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(value(cfg.User), value(cfg.Password)),
		Host:     net.JoinHostPort(value(cfg.Host), value(cfg.Port)),
		Path:     value(cfg.Name),
		RawQuery: query.Encode(),
	}
	return dsn.String()
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	QueryOne(ctx context.Context, sql string, dest interface{}, args pgx.NamedArgs) error
	QueryList(ctx context.Context, sql string, dest interface{}, args pgx.NamedArgs) error
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// Connect opens and pings a pool. Mapping options apply to QueryOne and QueryList.
func Connect(ctx context.Context, cfg DatabaseConfiguration, opts ...mapper.Option) (Conn, error) {
	pool, err := pgxpool.New(ctx, cfg.getDSN())
	if err != nil {
		return nil, errors.Wrap(err, "create db conn pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "Could not ping db")
	}
	logger.L().Info("database pool ready",
		zap.String("host", value(cfg.Host)),
		zap.String("database", value(cfg.Name)))
	return &databaseConnectionPool{pool: pool, opts: opts}, nil
}

// NewDatabasePool is Connect with a five second timeout that panics on failure.
func NewDatabasePool(cfg DatabaseConfiguration, opts ...mapper.Option) Conn {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Connect(ctx, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return conn
}

type databaseConnectionPool struct {
	pool *pgxpool.Pool
	opts []mapper.Option
}

func (p *databaseConnectionPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *databaseConnectionPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *databaseConnectionPool) QueryOne(ctx context.Context, sql string, dest interface{}, args pgx.NamedArgs) error {
	rows, err := p.pool.Query(ctx, sql, queryArgs(args)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	return mapper.ScanOne(rows, dest, p.opts...)
}

func (p *databaseConnectionPool) QueryList(ctx context.Context, sql string, dest interface{}, args pgx.NamedArgs) error {
	rows, err := p.pool.Query(ctx, sql, queryArgs(args)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	return mapper.ScanMany(rows, dest, p.opts...)
}

func (p *databaseConnectionPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p *databaseConnectionPool) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *databaseConnectionPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return p.pool.BeginTx(ctx, txOptions)
}

func (p *databaseConnectionPool) Close() { p.pool.Close() }

// queryArgs passes named arguments only when there are any.
func queryArgs(args pgx.NamedArgs) []any {
	if len(args) == 0 {
		return nil
	}
	return []any{args}
}

// Querier is the part of Conn, pgx.Conn and pgx.Tx that runs queries.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// QueryStream runs sql and streams the mapped root entities as rows arrive.
// The rows are closed when the sequence ends.
func QueryStream[T any](ctx context.Context, q Querier, sql string, args pgx.NamedArgs, opts ...mapper.Option) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		rows, err := q.Query(ctx, sql, queryArgs(args)...)
		if err != nil {
			yield(nil, err)
			return
		}
		for entity, err := range mapper.Stream[T](rowsource.FromPgx(rows), opts...) {
			if !yield(entity, err) {
				return
			}
		}
	}
}

// QueryListAsync runs QueryList on its own goroutine.
func QueryListAsync[T any](ctx context.Context, conn Conn, sql string, args pgx.NamedArgs) *future.Future[[]T] {
	return future.Go(func() ([]T, error) {
		var result []T
		if err := conn.QueryList(ctx, sql, &result, args); err != nil {
			return nil, err
		}
		return result, nil
	})
}
