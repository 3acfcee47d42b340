package sql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fabrica-orm/fabrica/dialect"
)

// defaultStmtCacheSize bounds the prepared-statement cache when no
// WithCacheSize option is given.
const defaultStmtCacheSize = 256

// PrepareDriver wraps a Driver with an LRU cache of prepared statements.
// Repeated statements skip re-parsing on the server; evicted and purged
// handles are closed.
type PrepareDriver struct {
	*Driver
	mu    sync.RWMutex
	cache *lru.Cache[string, *sql.Stmt]
}

type prepareOptions struct {
	size int
}

// PrepareOption configures the PrepareDriver.
type PrepareOption func(*prepareOptions)

// WithCacheSize bounds the number of cached prepared statements. Default is
// 256.
func WithCacheSize(n int) PrepareOption {
	return func(o *prepareOptions) { o.size = n }
}

// NewPrepareDriver wraps a Driver with a prepared-statement cache.
func NewPrepareDriver(drv *Driver, opts ...PrepareOption) (*PrepareDriver, error) {
	o := prepareOptions{size: defaultStmtCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := lru.NewWithEvict[string, *sql.Stmt](o.size, func(_ string, stmt *sql.Stmt) {
		_ = stmt.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: prepare cache: %w", err)
	}
	return &PrepareDriver{Driver: drv, cache: cache}, nil
}

// stmt returns the prepared statement for the query, preparing and caching
// it on first use.
func (d *PrepareDriver) stmt(ctx context.Context, query string) (*sql.Stmt, error) {
	d.mu.RLock()
	stmt, ok := d.cache.Get(query)
	d.mu.RUnlock()
	if ok {
		return stmt, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if stmt, ok := d.cache.Get(query); ok {
		return stmt, nil
	}
	stmt, err := d.DB().PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	d.cache.Add(query, stmt)
	return stmt, nil
}

// Exec implements the dialect.Exec method through a prepared statement.
func (d *PrepareDriver) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	stmt, err := d.stmt(ctx, query)
	if err != nil {
		return fmt.Errorf("dialect/sql: prepare: %w", err)
	}
	switch v := v.(type) {
	case nil:
		if _, err := stmt.ExecContext(ctx, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := stmt.ExecContext(ctx, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method through a prepared statement.
func (d *PrepareDriver) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	stmt, err := d.stmt(ctx, query)
	if err != nil {
		return fmt.Errorf("dialect/sql: prepare: %w", err)
	}
	rows, err := stmt.QueryContext(ctx, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

// ExecText executes a rendered statement through the prepared-statement
// cache.
func (d *PrepareDriver) ExecText(ctx context.Context, t *Text, v any) error {
	if t == nil {
		return fmt.Errorf("dialect/sql: nil statement text")
	}
	return d.Exec(ctx, d.Conn.rebind(t.SQL()), t.Args(), v)
}

// QueryText runs a rendered statement through the prepared-statement cache.
func (d *PrepareDriver) QueryText(ctx context.Context, t *Text, v any) error {
	if t == nil {
		return fmt.Errorf("dialect/sql: nil statement text")
	}
	return d.Query(ctx, d.Conn.rebind(t.SQL()), t.Args(), v)
}

// Purge closes and drops every cached prepared statement.
func (d *PrepareDriver) Purge() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Purge()
}

// Len returns the number of cached prepared statements.
func (d *PrepareDriver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cache.Len()
}

// Close drops the cached statements and closes the underlying connection.
func (d *PrepareDriver) Close() error {
	d.Purge()
	return d.Driver.Close()
}

var _ dialect.Driver = (*PrepareDriver)(nil)
