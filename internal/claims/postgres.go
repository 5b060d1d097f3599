package claims

import (
	"context"
	"iter"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is the subset of *pgxpool.Pool the store uses.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const pgClaimsQuery = `SELECT claim_id, data FROM claims WHERE ($1 <= 0 OR height <= $1) ORDER BY claim_id`

// PostgresStore reads claims from a postgres "claims" table with columns
// claim_id text, height bigint and data jsonb.
type PostgresStore struct {
	pool pgQuerier
	opts Options

	closeOnce sync.Once
}

// OpenPostgres connects a pool to dsn.
func OpenPostgres(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return newPostgresStore(pool, opts), nil
}

func newPostgresStore(pool pgQuerier, opts Options) *PostgresStore {
	return &PostgresStore{pool: pool, opts: opts}
}

// Claims implements Store.
func (s *PostgresStore) Claims(ctx context.Context) iter.Seq2[*Claim, error] {
	return func(yield func(*Claim, error) bool) {
		rows, err := s.pool.Query(ctx, pgClaimsQuery, s.opts.MaxHeight)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			var data []byte
			if err := rows.Scan(&id, &data); err != nil {
				yield(nil, err)
				return
			}
			c, err := Decode(id, data)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.closeOnce.Do(s.pool.Close)
	return nil
}
