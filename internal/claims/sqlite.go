package claims

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS claims (
	claim_id TEXT PRIMARY KEY,
	height   INTEGER NOT NULL,
	data     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claims_height ON claims(height);
`

// SQLiteStore reads claims from a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	opts Options

	closeOnce sync.Once
	closeErr  error
}

// OpenSQLite opens the database at path. Read-only stores never create the
// schema.
func OpenSQLite(path string, readOnly bool, opts Options) (*SQLiteStore, error) {
	dsn := path + "?_busy_timeout=5000"
	if readOnly {
		dsn = path + "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Single connection keeps the pure-Go driver from contending on locks.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	if !readOnly {
		if _, err := db.Exec(sqliteSchema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, opts: opts}, nil
}

// Put upserts claims in one transaction.
func (s *SQLiteStore) Put(ctx context.Context, claims ...*Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO claims (claim_id, height, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range claims {
		data, err := Encode(c)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ClaimID, c.Height, data); err != nil {
			return fmt.Errorf("insert claim %s: %w", c.ClaimID, err)
		}
	}
	return tx.Commit()
}

// Claims implements Store.
func (s *SQLiteStore) Claims(ctx context.Context) iter.Seq2[*Claim, error] {
	return func(yield func(*Claim, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT claim_id, data FROM claims WHERE (? <= 0 OR height <= ?) ORDER BY claim_id`,
			s.opts.MaxHeight, s.opts.MaxHeight)
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
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
