package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/apperr"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// unique keys on values generated inside the transaction; a concurrent
// checkout may have claimed them first.
var retryableConstraints = map[string]bool{
	"orders_order_number_key": true,
	"orders_guest_token_key":  true,
}

// Store is the Ledger Store on a pgx pool. Row locks are real
// SELECT ... FOR UPDATE locks held until the transaction ends.
type Store struct {
	DB         *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
}

func NewStore(pool *pgxpool.Pool, maxRetries int, logger *zap.Logger) *Store {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{DB: pool, logger: logger, maxRetries: maxRetries}
}

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
	pgTx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}
	return pgTx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	case codeUniqueViolation:
		return retryableConstraints[pgErr.ConstraintName]
	}
	return false
}

func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && !retryableConstraints[pgErr.ConstraintName] {
		return fmt.Errorf("postgres: %s: %w: %v", op, orders.ErrDuplicate, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", op, orders.ErrNotFound)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

type tx struct {
	tx pgx.Tx
}

var _ orders.Tx = (*tx)(nil)

func (t *tx) exec(ctx context.Context, op, q string, args ...any) error {
	_, err := t.tx.Exec(ctx, q, args...)
	return mapErr(err, op)
}

func (t *tx) execOne(ctx context.Context, op, q string, args ...any) error {
	ct, err := t.tx.Exec(ctx, q, args...)
	if err != nil {
		return mapErr(err, op)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("postgres: %s: %w", op, orders.ErrNotFound)
	}
	return nil
}

// Money travels as text both ways so no precision is lost in the driver.

func money(d decimal.Decimal) string { return d.String() }

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse amount %q: %w", s, err)
	}
	return d, nil
}

func parseNullMoney(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseMoney(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// amounts collects text-scanned money columns and parses them in one go.
type amounts struct {
	dst []*decimal.Decimal
	src []*string
}

// col returns the scan target for the column that fills dst.
func (a *amounts) col(dst *decimal.Decimal) *string {
	s := new(string)
	a.dst = append(a.dst, dst)
	a.src = append(a.src, s)
	return s
}

func (a *amounts) parse() error {
	for i, s := range a.src {
		d, err := parseMoney(*s)
		if err != nil {
			return err
		}
		*a.dst[i] = d
	}
	return nil
}

func ids(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyNil(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func meta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func metaOut(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
