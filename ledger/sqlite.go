package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/baas/dbopen"
)

// Schema is the DDL for SQLiteStore. Safe to apply more than once.
const Schema = `
CREATE TABLE IF NOT EXISTS attempts (
    ip           TEXT PRIMARY KEY,
    failures     INTEGER NOT NULL DEFAULT 0,
    last_failure INTEGER NOT NULL -- unix nanoseconds
);
CREATE INDEX IF NOT EXISTS idx_attempts_last ON attempts(last_failure);
`

// Init creates the attempts table.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("ledger: init schema: %w", err)
	}
	return nil
}

// SQLiteStore keeps records in the attempts table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db. Call Init (or open with dbopen.WithSchema(Schema))
// first.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, ip string) (Record, bool, error) {
	var count int
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT failures, last_failure FROM attempts WHERE ip = ?`, ip).Scan(&count, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("ledger: get %s: %w", ip, err)
	}
	return Record{IP: ip, Count: count, Last: time.Unix(0, last)}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO attempts (ip, failures, last_failure) VALUES (?, ?, ?)
		 ON CONFLICT(ip) DO UPDATE SET failures = excluded.failures, last_failure = excluded.last_failure`,
		rec.IP, rec.Count, rec.Last.UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: put %s: %w", rec.IP, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ip string) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM attempts WHERE ip = ?`, ip); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", ip, err)
	}
	return nil
}

// Incr counts one failure inside a transaction.
func (s *SQLiteStore) Incr(ctx context.Context, ip string, max int, now time.Time) (Record, error) {
	rec := Record{IP: ip, Last: now}
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attempts (ip, failures, last_failure) VALUES (?, 1, ?)
			 ON CONFLICT(ip) DO UPDATE SET failures = MIN(failures + 1, ?), last_failure = excluded.last_failure`,
			ip, now.UnixNano(), max); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT failures FROM attempts WHERE ip = ?`, ip).Scan(&rec.Count)
	})
	if err != nil {
		return Record{}, fmt.Errorf("ledger: incr %s: %w", ip, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := dbopen.Exec(ctx, s.db, `DELETE FROM attempts WHERE last_failure <= ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("ledger: sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
