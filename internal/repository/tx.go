package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	customError "github.com/segyhp/mediatheque/pkg/errors"
)

const dialectPostgres = "postgres"

// Postgres SQLSTATE codes the stores react to
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

var builder = goqu.Dialect(dialectPostgres)

type txKey struct{}

// Transactor runs a unit of work inside one database transaction. Stores
// called with the context handed to fn join that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlTransactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) Transactor {
	return &sqlTransactor{db: db}
}

func (t *sqlTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	// Nested calls reuse the outer transaction.
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return translateError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return translateError(err)
	}

	return nil
}

// conn returns the ambient transaction if there is one, the pool otherwise.
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

type statement interface {
	ToSQL() (string, []interface{}, error)
}

func getOne(ctx context.Context, db *sqlx.DB, dst interface{}, stmt statement) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	return sqlx.GetContext(ctx, conn(ctx, db), dst, query, args...)
}

func selectAll(ctx context.Context, db *sqlx.DB, dst interface{}, stmt statement) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	return translateError(sqlx.SelectContext(ctx, conn(ctx, db), dst, query, args...))
}

func exec(ctx context.Context, db *sqlx.DB, stmt statement) (int64, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}

	result, err := conn(ctx, db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translateError(err)
	}

	return result.RowsAffected()
}

func count(ctx context.Context, db *sqlx.DB, ds *goqu.SelectDataset) (int, error) {
	var total int
	if err := getOne(ctx, db, &total, ds.ClearOrder().ClearLimit().ClearOffset().Select(goqu.COUNT(goqu.Star()))); err != nil {
		return 0, translateError(err)
	}
	return total, nil
}

func paginate(ds *goqu.SelectDataset, limit, offset int) *goqu.SelectDataset {
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	return ds
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// translateError maps driver errors onto the domain error taxonomy.
// sql.ErrNoRows is passed through for the caller to turn into NotFound.
func translateError(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return customError.WrapTransient(err)
		}
	}

	return customError.WrapDatabaseError(err)
}

func isViolation(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// notFound converts sql.ErrNoRows into a NotFound error for entity/id.
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapNotFound(entity, id)
	}
	return translateError(err)
}
