// Package dialect provides database dialect abstraction for the fabrica
// persistence engine.
//
// This package defines the execution contracts and per-dialect capability
// sets used by the statement construction layer, allowing fabrica to target
// multiple database backends including PostgreSQL, MySQL, and SQLite.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface wraps the ExecQuerier operations together with Commit and
// Rollback, and is implemented by the transactions a Driver starts.
//
// # Features
//
// Statement construction consults a per-dialect capability set exactly once
// per statement:
//
//	feats := dialect.For(dialect.SQLite)
//	feats.Supports(dialect.FeatureRightOuterJoin) // false
//
// Capability sets are plain values; tests and configuration may derive
// variants with Features.With and Features.Without.
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/fabrica-orm/fabrica/dialect"
//	    "github.com/fabrica-orm/fabrica/dialect/sql"
//	)
//
//	db, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// # Sub-packages
//
//   - dialect/sql: statement construction core and driver implementation
//   - dialect/sql/schema: physical table metadata consumed by the builder
package dialect
