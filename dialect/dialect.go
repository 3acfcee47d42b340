package dialect

import (
	"context"
	"database/sql/driver"
)

// Dialect names recognized by the engine.
const (
	// MySQL is the mysql dialect.
	MySQL = "mysql"
	// SQLite is the sqlite dialect.
	SQLite = "sqlite"
	// Postgres is the postgres dialect.
	Postgres = "postgres"
)

// ExecQuerier wraps the two standard database operations.
type ExecQuerier interface {
	// Exec executes a statement that doesn't return rows. For example,
	// INSERT, UPDATE or DELETE. It scans the result into v.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows, typically a SELECT.
	// It scans the result into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transactional operations. It is implemented by the transactions
// returned from Driver.Tx.
type Tx interface {
	ExecQuerier
	driver.Tx
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx that executes statements through drv and ignores
// Commit and Rollback calls.
func NopTx(drv Driver) Tx {
	return nopTx{drv}
}
