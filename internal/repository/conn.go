package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowScanner общий интерфейс строки результата pgx и database/sql
type rowScanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// conn выполняет запросы в пуле или внутри транзакции.
// Запросы пишутся с плейсхолдерами PostgreSQL ($1, $2, ...), каждый номер
// встречается один раз и по порядку.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) rowScanner
	Query(ctx context.Context, query string, args ...any) (rowsScanner, error)
}

type txConn interface {
	conn
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type beginFunc func(ctx context.Context) (txConn, error)

// pgx

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxConn struct {
	q pgxQuerier
}

func (c pgxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgxConn) QueryRow(ctx context.Context, query string, args ...any) rowScanner {
	return c.q.QueryRow(ctx, query, args...)
}

func (c pgxConn) Query(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	rows, err := c.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type pgxTx struct {
	pgxConn
	tx pgx.Tx
}

func (t pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// database/sql (SQLite)

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlConn struct {
	q sqlQuerier
}

func (c sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqlConn) QueryRow(ctx context.Context, query string, args ...any) rowScanner {
	return c.q.QueryRowContext(ctx, rebind(query), args...)
}

func (c sqlConn) Query(ctx context.Context, query string, args ...any) (rowsScanner, error) {
	rows, err := c.q.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type sqlTx struct {
	sqlConn
	tx *sql.Tx
}

func (t sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind переводит плейсхолдеры PostgreSQL в позиционные плейсхолдеры SQLite
func rebind(query string) string {
	return placeholderRe.ReplaceAllString(query, "?")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
