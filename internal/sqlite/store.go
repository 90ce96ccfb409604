// Package sqlite is the embedded ledger store on the pure-Go SQLite driver.
//
// The pool is held to one connection and every transaction begins
// IMMEDIATE, so transactions run one at a time. That is the row locking the
// services ask for with the ...ForUpdate methods: nothing else can touch a
// row between the read and the write.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const defaultMaxRetries = 5

type Store struct {
	db         *sql.DB
	logger     *zap.Logger
	maxRetries int
}

// Open opens (or creates) the database at path and applies the schema.
// maxRetries <= 0 uses the default.
func Open(path string, maxRetries int, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, maxRetries: maxRetries}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn in one transaction and re-runs it when the failure was a
// storage race (order number or guest token taken, database busy).
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err = s.once(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		s.logger.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return apperr.Wrap(apperr.KindConflict, err, "transaction kept conflicting after %d attempts", s.maxRetries)
}

func (s *Store) once(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// retryable constraints: values generated inside the transaction that a
// concurrent writer may have claimed first.
var retryableConstraints = []string{
	"orders.order_number",
	"orders.guest_token",
}

func retryable(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		for _, c := range retryableConstraints {
			if strings.Contains(se.Error(), c) {
				return true
			}
		}
	}
	return false
}

// mapErr turns a unique violation on a non-retried key into orders.ErrDuplicate.
func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var se *msqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), "UNIQUE") && !retryable(err) {
		return fmt.Errorf("sqlite: %s: %w: %v", op, orders.ErrDuplicate, err)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: %s: %w", op, orders.ErrNotFound)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

// tx implements orders.Tx on one *sql.Tx.
type tx struct {
	tx *sql.Tx
}

var _ orders.Tx = (*tx)(nil)

func (t *tx) exec(ctx context.Context, op, q string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, op)
	}
	return res, nil
}

// execOne fails with ErrNotFound when the statement touched no row.
func (t *tx) execOne(ctx context.Context, op, q string, args ...any) error {
	res, err := t.exec(ctx, op, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: %s: %w", op, orders.ErrNotFound)
	}
	return nil
}
