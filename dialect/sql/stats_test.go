package sql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fabrica-orm/fabrica/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStatsDriver returns a StatsDriver over a sqlmock connection.
func newStatsDriver(t *testing.T, opts ...StatsOption) (*StatsDriver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStatsDriver(OpenDB(dialect.Postgres, db), opts...), mock
}

// TestStatsSnapshot tests snapshot math and formatting.
func TestStatsSnapshot(t *testing.T) {
	t.Run("average_over_queries_and_execs", func(t *testing.T) {
		var qs QueryStats
		qs.TotalQueries.Store(2)
		qs.TotalExecs.Store(1)
		qs.TotalDuration.Store(int64(300 * time.Millisecond))
		assert.Equal(t, 100*time.Millisecond, qs.Stats().AvgQueryDuration())
	})

	t.Run("average_is_zero_without_activity", func(t *testing.T) {
		var qs QueryStats
		assert.Equal(t, time.Duration(0), qs.Stats().AvgQueryDuration())
	})

	t.Run("string_format", func(t *testing.T) {
		var qs QueryStats
		qs.TotalQueries.Store(3)
		qs.TotalDuration.Store(int64(300 * time.Millisecond))
		qs.SlowQueries.Store(1)
		qs.Errors.Store(2)
		assert.Equal(t, "queries=3 execs=0 duration=300ms avg=100ms slow=1 errors=2", qs.Stats().String())
	})

	t.Run("reset", func(t *testing.T) {
		var qs QueryStats
		qs.TotalQueries.Store(5)
		qs.TotalExecs.Store(2)
		qs.TotalDuration.Store(42)
		qs.SlowQueries.Store(1)
		qs.Errors.Store(1)
		qs.Reset()
		assert.Equal(t, StatsSnapshot{}, qs.Stats())
	})
}

// TestStatsDriverRecording tests counter recording on queries and execs.
func TestStatsDriverRecording(t *testing.T) {
	drv, mock := newStatsDriver(t)

	t.Run("query_counts", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT id FROM users", []any{}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())

		s := drv.QueryStats().Stats()
		assert.Equal(t, int64(1), s.TotalQueries)
		assert.Equal(t, int64(0), s.TotalExecs)
		assert.Greater(t, s.TotalDuration, time.Duration(0))
		assert.Equal(t, int64(0), s.Errors)
	})

	t.Run("exec_counts", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

		err := drv.Exec(context.Background(), "INSERT INTO users (name) VALUES ('a')", []any{}, nil)
		require.NoError(t, err)

		s := drv.QueryStats().Stats()
		assert.Equal(t, int64(1), s.TotalQueries)
		assert.Equal(t, int64(1), s.TotalExecs)
	})

	t.Run("errors_count", func(t *testing.T) {
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT 1", []any{}, rows)
		require.Error(t, err)
		assert.Equal(t, int64(1), drv.QueryStats().Stats().Errors)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStatsDriverSlowQueries tests slow query detection and the hook.
func TestStatsDriverSlowQueries(t *testing.T) {
	t.Run("hook_fires_over_threshold", func(t *testing.T) {
		var (
			gotQuery    string
			gotArgs     []any
			gotDuration time.Duration
		)
		drv, mock := newStatsDriver(t,
			WithSlowThreshold(0),
			WithSlowQueryHook(func(_ context.Context, query string, args []any, duration time.Duration) {
				gotQuery, gotArgs, gotDuration = query, args, duration
			}),
		)
		mock.ExpectQuery("SELECT name FROM users").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT name FROM users WHERE id = $1", []any{1}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())

		assert.Equal(t, int64(1), drv.QueryStats().Stats().SlowQueries)
		assert.Equal(t, "SELECT name FROM users WHERE id = $1", gotQuery)
		assert.Equal(t, []any{1}, gotArgs)
		assert.Greater(t, gotDuration, time.Duration(0))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fast_queries_not_counted", func(t *testing.T) {
		drv, mock := newStatsDriver(t, WithSlowThreshold(time.Hour))
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT 1", []any{}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())

		assert.Equal(t, int64(0), drv.QueryStats().Stats().SlowQueries)
	})
}

// TestStatsDriverThreshold tests threshold configuration.
func TestStatsDriverThreshold(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		drv, _ := newStatsDriver(t)
		assert.Equal(t, 100*time.Millisecond, drv.SlowThreshold())
	})

	t.Run("option", func(t *testing.T) {
		drv, _ := newStatsDriver(t, WithSlowThreshold(time.Second))
		assert.Equal(t, time.Second, drv.SlowThreshold())
	})

	t.Run("set_at_runtime", func(t *testing.T) {
		drv, _ := newStatsDriver(t)
		drv.SetSlowThreshold(25 * time.Millisecond)
		assert.Equal(t, 25*time.Millisecond, drv.SlowThreshold())
	})
}

// TestStatsTx tests that transactions record into the driver statistics.
func TestStatsTx(t *testing.T) {
	drv, mock := newStatsDriver(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)

	rows := &Rows{}
	require.NoError(t, tx.Query(context.Background(), "SELECT id FROM users", []any{}, rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Exec(context.Background(), "UPDATE users SET name = 'b'", []any{}, nil))
	require.NoError(t, tx.Commit())

	s := drv.QueryStats().Stats()
	assert.Equal(t, int64(1), s.TotalQueries)
	assert.Equal(t, int64(1), s.TotalExecs)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDebugDriver tests debug logging around queries, execs and transactions.
func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var logs []string
	drv := NewDebugDriver(OpenDB(dialect.Postgres, db), DebugWithLog(func(_ context.Context, v ...any) {
		logs = append(logs, fmt.Sprint(v...))
	}))

	t.Run("query_logged", func(t *testing.T) {
		logs = logs[:0]
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT id FROM users", []any{}, rows))
		require.NoError(t, rows.Close())

		require.Len(t, logs, 1)
		assert.Contains(t, logs[0], "query: SELECT id FROM users")
	})

	t.Run("exec_logged", func(t *testing.T) {
		logs = logs[:0]
		mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, drv.Exec(context.Background(), "DELETE FROM users", []any{}, nil))

		require.Len(t, logs, 1)
		assert.Contains(t, logs[0], "exec: DELETE FROM users")
	})

	t.Run("transaction_lifecycle_logged", func(t *testing.T) {
		logs = logs[:0]
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		rows := &Rows{}
		require.NoError(t, tx.Query(context.Background(), "SELECT id FROM users", []any{}, rows))
		require.NoError(t, rows.Close())
		require.NoError(t, tx.Commit())

		require.Len(t, logs, 3)
		assert.Equal(t, "begin transaction", logs[0])
		assert.Contains(t, logs[1], "tx query: SELECT id FROM users")
		assert.Equal(t, "commit transaction", logs[2])
	})

	t.Run("rollback_logged", func(t *testing.T) {
		logs = logs[:0]
		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		require.Len(t, logs, 2)
		assert.Equal(t, "rollback transaction", logs[1])
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestOpenWithStats tests the combined open helper against a DSN-registered
// mock connection.
func TestOpenWithStats(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("stats_open_dsn")
	require.NoError(t, err)
	defer db.Close()

	drv, stats, err := OpenWithStats("sqlmock", "stats_open_dsn", WithSlowThreshold(time.Second))
	require.NoError(t, err)
	defer drv.Close()

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, drv.Exec(context.Background(), "INSERT INTO t VALUES (1)", []any{}, nil))

	assert.Equal(t, int64(1), stats.Stats().TotalExecs)
	assert.Same(t, drv.QueryStats(), stats)
	require.NoError(t, mock.ExpectationsWereMet())
}
