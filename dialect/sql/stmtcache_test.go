package sql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-orm/fabrica/dialect"
)

func newPrepareDriver(t *testing.T, dialectName string, opts ...PrepareOption) (*PrepareDriver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	pd, err := NewPrepareDriver(OpenDB(dialectName, db), opts...)
	require.NoError(t, err)
	return pd, mock
}

// TestPrepareDriverQuery tests that repeated queries prepare once.
func TestPrepareDriverQuery(t *testing.T) {
	pd, mock := newPrepareDriver(t, dialect.MySQL)
	ctx := context.Background()
	query := "SELECT name FROM users WHERE id = ?"

	ep := mock.ExpectPrepare(regexp.QuoteMeta(query))
	ep.ExpectQuery().WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))
	ep.ExpectQuery().WithArgs(2).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("bob"))

	for i, want := range []string{"ann", "bob"} {
		var rows Rows
		require.NoError(t, pd.Query(ctx, query, []any{i + 1}, &rows))
		require.True(t, rows.Next())
		var name string
		require.NoError(t, rows.Scan(&name))
		assert.Equal(t, want, name)
		require.NoError(t, rows.Close())
	}

	assert.Equal(t, 1, pd.Len())
	assert.NoError(t, mock.ExpectationsWereMet(), "a second prepare would not match")
}

// TestPrepareDriverExec tests exec through the statement cache.
func TestPrepareDriverExec(t *testing.T) {
	pd, mock := newPrepareDriver(t, dialect.MySQL)
	ctx := context.Background()
	query := "UPDATE users SET name = ? WHERE id = ?"

	ep := mock.ExpectPrepare(regexp.QuoteMeta(query))
	ep.ExpectExec().WithArgs("ann", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	ep.ExpectExec().WithArgs("bob", 2).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, pd.Exec(ctx, query, []any{"ann", 1}, nil))

	var res sql.Result
	require.NoError(t, pd.Exec(ctx, query, []any{"bob", 2}, &res))
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	assert.Equal(t, 1, pd.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPrepareDriverText tests rendered-text execution with placeholder
// rewriting.
func TestPrepareDriverText(t *testing.T) {
	t.Run("query_text_rebinds", func(t *testing.T) {
		pd, mock := newPrepareDriver(t, dialect.Postgres)
		ep := mock.ExpectPrepare(regexp.QuoteMeta("SELECT name FROM users WHERE id = $1"))
		ep.ExpectQuery().WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ann"))

		var rows Rows
		text := NewText("SELECT name FROM users WHERE id = ?", []any{7})
		require.NoError(t, pd.QueryText(context.Background(), text, &rows))
		require.NoError(t, rows.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_text_rebinds", func(t *testing.T) {
		pd, mock := newPrepareDriver(t, dialect.Postgres)
		ep := mock.ExpectPrepare(regexp.QuoteMeta("DELETE FROM users WHERE id = $1"))
		ep.ExpectExec().WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))

		text := NewText("DELETE FROM users WHERE id = ?", []any{7})
		require.NoError(t, pd.ExecText(context.Background(), text, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil_text", func(t *testing.T) {
		pd, _ := newPrepareDriver(t, dialect.Postgres)
		err := pd.ExecText(context.Background(), nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil statement text")
		err = pd.QueryText(context.Background(), nil, &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil statement text")
	})
}

// TestPrepareDriverEviction tests that evicted statements are closed.
func TestPrepareDriverEviction(t *testing.T) {
	pd, mock := newPrepareDriver(t, dialect.MySQL, WithCacheSize(1))
	ctx := context.Background()

	ep1 := mock.ExpectPrepare(regexp.QuoteMeta("SELECT 1"))
	ep1.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	ep1.WillBeClosed()
	ep2 := mock.ExpectPrepare(regexp.QuoteMeta("SELECT 2"))
	ep2.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, pd.Exec(ctx, "SELECT 1", []any{}, nil))
	require.NoError(t, pd.Exec(ctx, "SELECT 2", []any{}, nil))

	assert.Equal(t, 1, pd.Len())
	assert.NoError(t, mock.ExpectationsWereMet(), "the evicted statement must be closed")
}

// TestPrepareDriverPurge tests dropping the cache.
func TestPrepareDriverPurge(t *testing.T) {
	pd, mock := newPrepareDriver(t, dialect.MySQL)
	ctx := context.Background()

	ep1 := mock.ExpectPrepare(regexp.QuoteMeta("SELECT 1"))
	ep1.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	ep1.WillBeClosed()
	ep2 := mock.ExpectPrepare(regexp.QuoteMeta("SELECT 2"))
	ep2.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	ep2.WillBeClosed()

	require.NoError(t, pd.Exec(ctx, "SELECT 1", []any{}, nil))
	require.NoError(t, pd.Exec(ctx, "SELECT 2", []any{}, nil))
	require.Equal(t, 2, pd.Len())

	pd.Purge()
	assert.Equal(t, 0, pd.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPrepareDriverClose tests that Close drops statements and the
// connection.
func TestPrepareDriverClose(t *testing.T) {
	pd, mock := newPrepareDriver(t, dialect.MySQL)

	ep := mock.ExpectPrepare(regexp.QuoteMeta("SELECT 1"))
	ep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	ep.WillBeClosed()
	mock.ExpectClose()

	require.NoError(t, pd.Exec(context.Background(), "SELECT 1", []any{}, nil))
	require.NoError(t, pd.Close())
	assert.Equal(t, 0, pd.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPrepareDriverContract tests the argument and destination type checks.
func TestPrepareDriverContract(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid_args_type", func(t *testing.T) {
		pd, _ := newPrepareDriver(t, dialect.MySQL)
		err := pd.Exec(ctx, "SELECT 1", "not-a-slice", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect []any for args")
		err = pd.Query(ctx, "SELECT 1", "not-a-slice", &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect []any for args")
	})

	t.Run("invalid_exec_dest", func(t *testing.T) {
		pd, mock := newPrepareDriver(t, dialect.MySQL)
		mock.ExpectPrepare(regexp.QuoteMeta("SELECT 1"))
		err := pd.Exec(ctx, "SELECT 1", []any{}, 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect *sql.Result")
	})

	t.Run("invalid_query_dest", func(t *testing.T) {
		pd, _ := newPrepareDriver(t, dialect.MySQL)
		err := pd.Query(ctx, "SELECT 1", []any{}, 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect *sql.Rows")
	})

	t.Run("prepare_failure_wrapped", func(t *testing.T) {
		pd, mock := newPrepareDriver(t, dialect.MySQL)
		mock.ExpectPrepare(regexp.QuoteMeta("BROKEN SQL")).
			WillReturnError(errors.New("syntax error"))
		err := pd.Exec(ctx, "BROKEN SQL", []any{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: prepare:")
		assert.Contains(t, err.Error(), "syntax error")
	})
}
