package mysql

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

type Handler struct {
	Conn *sql.DB
}

func New(conn *sql.DB) *Handler {
	return &Handler{Conn: conn}
}

func (handler *Handler) PrepareAndExecute(statement string, args ...interface{}) (sql.Result, error) {
	const op = "mysql.mysql.PrepareAndExecute"

	stmt, err := handler.Conn.Prepare(statement)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

func (handler *Handler) PrepareAndQueryRow(statement string, args ...interface{}) (*sql.Row, error) {
	const op = "mysql.mysql.PrepareAndQueryRow"

	stmt, err := handler.Conn.Prepare(statement)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	row := stmt.QueryRow(args...)

	return row, nil
}

func (handler *Handler) PrepareAndQuery(statement string, args ...interface{}) (*sql.Rows, error) {
	const op = "mysql.mysql.PrepareAndQuery"

	stmt, err := handler.Conn.Prepare(statement)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}

func (handler *Handler) StartTransaction() (*sql.Tx, error) {
	const op = "mysql.mysql.StartTransaction"

	tx, err := handler.Conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tx, nil
}

// WithinTransaction runs fn inside a transaction, rolling back on error and
// on panic.
func (handler *Handler) WithinTransaction(fn func(tx *sql.Tx) error) error {
	const op = "mysql.mysql.WithinTransaction"

	tx, err := handler.StartTransaction()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()

			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%s: rollback failed: %v: %w", op, rbErr, err)
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
