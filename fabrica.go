// Package fabrica is the statement-construction layer of an ORM persistence
// engine. It assembles SQL statements incrementally from table references,
// a directed join graph, and a boolean predicate tree, renders them to cached
// SQL text with bind arguments, and executes the result through a thin
// database/sql driver wrapper.
//
// The root package holds the public error contract and the byte-level cache
// abstraction shared across the engine. The construction core lives in
// dialect/sql, physical table metadata in dialect/sql/schema, and the
// execution contracts in dialect.
package fabrica

//go:generate go run ./scripts/genmethods
