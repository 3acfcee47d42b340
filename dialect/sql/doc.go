// Package sql provides mutable SQL statement construction and database
// dialect abstraction.
//
// This package is the layer a persistence engine builds SELECT statements
// on. A statement starts from a primary table and grows as the query
// compiler walks a candidate expression, joining one relation at a time,
// and the full statement text is rendered once at the end. Generation
// adapts to different database systems (PostgreSQL, MySQL, SQLite).
//
// # Statements
//
// A Statement is created from a Config and a primary table:
//
//	import "github.com/fabrica-orm/fabrica/dialect"
//
//	cfg := sql.NewConfig(dialect.Postgres)
//	stmt, err := sql.NewStatement(cfg, users)
//
// Tables join into the statement through key mappings, foreign keys, or
// explicit conditions:
//
//	orders, err := stmt.Join(sql.InnerJoin, stmt.PrimaryTable(),
//	    usersTable.Key("id"), ordersTable, ordersTable.Key("user_id"))
//
//	items, err := stmt.JoinForeignKey(sql.LeftOuterJoin, orders, itemsFK)
//
// Each joined table receives a unique alias from the statement's naming
// strategy and registers under a table group, so that tables materialized
// from the same candidate expression node stay associated.
//
// # Predicates
//
// WHERE conditions are boolean expression trees combined in place:
//
//	status, _ := sql.Column(stmt.PrimaryTable(), "status")
//	stmt.WhereAnd(sql.Eq(status, sql.Param("active")), true)
//
//	age, _ := sql.Column(stmt.PrimaryTable(), "age")
//	stmt.WhereOr(sql.Cond(age, ">", sql.Param(18)), true)
//
// Boolean literal TRUE conditions are dropped rather than rendered, and
// OR-combined conditions are parenthesized against the existing tree.
//
// # Rendering
//
// Render produces the statement text with placeholder markers and the bind
// arguments in placeholder order:
//
//	text := stmt.Render()
//	text.SQL()  // SELECT * FROM users A0 INNER JOIN orders A1 ON ...
//	text.Args() // bind values, in placeholder order
//
// The rendered Text is cached on the statement: repeated Render calls
// return the same pointer until a mutation invalidates it. Rendered texts
// marshal to a compact binary form for external caches (see TextCache).
//
// # Table Naming
//
// Alias generation is pluggable. Built-in strategies:
//
//	sql.NamingAlphaScheme // A0, A1, B0, ... (letter per group)
//	sql.NamingTScheme     // T0, T1, T2, ... (counter per statement tree)
//	sql.NamingTableName   // the table name itself
//
// Custom strategies register with RegisterTableNamer, or resolve lazily
// through an ExtensionResolver.
//
// # Dialect Methods
//
// Expression methods dispatch per dialect and fold literal receivers at
// construction time:
//
//	expr, err := sql.ResolveMethod(stmt, recv, "toLower", nil)
//	// a string literal receiver folds to a lowered literal,
//	// a column receiver renders as LOWER(A0."name")
//
// # Execution
//
// Rendered statements execute through a Driver:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	var rows sql.Rows
//	err = drv.QueryText(ctx, stmt.Render(), &rows)
//
// Driver wrappers add observability and statement reuse: NewStatsDriver
// counts and times queries, NewDebugDriver logs them, and NewPrepareDriver
// caches prepared statements. IsConstraintError, IsDeadlockError, and
// ConstraintName classify driver execution errors across dialects.
package sql
