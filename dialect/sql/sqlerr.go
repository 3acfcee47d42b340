package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/fabrica-orm/fabrica"
)

// PostgreSQL SQLSTATE codes (Class 23 constraints, Class 40 rollbacks).
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlForeignKeyParent = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild  = 1452 // Cannot add or update a child row
	mysqlCheckViolated    = 3819
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
)

// SQLite primary and extended result codes.
const (
	sqliteBusy              = 5
	sqliteLocked            = 6
	sqliteConstraintCheck   = 275
	sqliteConstraintForeign = 787
	sqliteConstraintPrimary = 1555
	sqliteConstraintUnique  = 2067
)

// IsConstraintError returns true if the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	var ce *fabrica.ConstraintError
	return errors.As(err, &ce) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness
// constraint violation. e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == pgUniqueViolation {
		return true
	}
	if mysqlNumber(err) == mysqlDuplicateEntry {
		return true
	}
	switch sqliteCode(err) {
	case sqliteConstraintUnique, sqliteConstraintPrimary:
		return true
	}

	// Fallback to string matching for drivers that don't expose codes.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database
// foreign-key constraint violation. e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == pgForeignKeyViolation {
		return true
	}
	switch mysqlNumber(err) {
	case mysqlForeignKeyParent, mysqlForeignKeyChild:
		return true
	}
	if sqliteCode(err) == sqliteConstraintForeign {
		return true
	}

	// Fallback to string matching for drivers that don't expose codes.
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check
// constraint violation. e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == pgCheckViolation {
		return true
	}
	if mysqlNumber(err) == mysqlCheckViolated {
		return true
	}
	if sqliteCode(err) == sqliteConstraintCheck {
		return true
	}

	// Fallback to string matching for drivers that don't expose codes.
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// IsSerializationError reports if the error is a transient concurrency
// failure: a serialization conflict, a lock wait timeout, or a busy database
// file. Transactions that fail this way can be retried.
func IsSerializationError(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == pgSerializationFailure {
		return true
	}
	if mysqlNumber(err) == mysqlLockWaitTimeout {
		return true
	}
	switch sqliteCode(err) & 0xff {
	case sqliteBusy, sqliteLocked:
		return true
	}
	return containsAny(err.Error(),
		"could not serialize access", // Postgres
		"Error 1205",                 // MySQL (Lock wait timeout exceeded)
		"database is locked",         // SQLite
	)
}

// IsDeadlockError reports if the error is a deadlock the server resolved by
// rolling the transaction back.
func IsDeadlockError(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == pgDeadlockDetected {
		return true
	}
	if mysqlNumber(err) == mysqlDeadlock {
		return true
	}
	return containsAny(err.Error(),
		"deadlock detected", // Postgres
		"Error 1213",        // MySQL
	)
}

// ConstraintName returns the violated constraint name reported by the
// driver, or an empty string when the driver did not carry one.
func ConstraintName(err error) string {
	if err == nil {
		return ""
	}
	var ce *fabrica.ConstraintError
	if errors.As(err, &ce) {
		return ce.Name()
	}
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.ConstraintName
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return pqe.Constraint
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return mysqlConstraintName(me.Message)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return sqliteConstraintName(se.Error())
	}
	return ""
}

// WrapConstraint converts a driver constraint violation into a
// fabrica.ConstraintError carrying the parsed constraint name. Errors that
// are not constraint violations are returned unchanged.
func WrapConstraint(err error) error {
	if err == nil || !IsConstraintError(err) {
		return err
	}
	var ce *fabrica.ConstraintError
	if errors.As(err, &ce) {
		return err
	}
	return fabrica.NewConstraintError(ConstraintName(err), err)
}

// pgCode returns the PostgreSQL SQLSTATE carried by err, from either the
// pgx or the lib/pq driver.
func pgCode(err error) string {
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return pge.Code
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return string(pqe.Code)
	}
	return ""
}

// mysqlNumber returns the MySQL server error number carried by err.
func mysqlNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// sqliteCode returns the extended SQLite result code carried by err.
func sqliteCode(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

// mysqlConstraintName extracts the constraint name from a MySQL server
// message. Duplicate-entry messages qualify the key with the table name on
// MySQL 8; the prefix is stripped.
func mysqlConstraintName(msg string) string {
	if i := strings.Index(msg, "for key '"); i >= 0 {
		name := msg[i+len("for key '"):]
		if j := strings.IndexByte(name, '\''); j >= 0 {
			name = name[:j]
		}
		if j := strings.LastIndexByte(name, '.'); j >= 0 {
			name = name[j+1:]
		}
		return name
	}
	if i := strings.Index(msg, "CONSTRAINT `"); i >= 0 {
		name := msg[i+len("CONSTRAINT `"):]
		if j := strings.IndexByte(name, '`'); j >= 0 {
			return name[:j]
		}
	}
	if i := strings.Index(msg, "Check constraint '"); i >= 0 {
		name := msg[i+len("Check constraint '"):]
		if j := strings.IndexByte(name, '\''); j >= 0 {
			return name[:j]
		}
	}
	return ""
}

// sqliteConstraintName extracts the index or column list from an SQLite
// message such as "UNIQUE constraint failed: users.email (2067)".
func sqliteConstraintName(msg string) string {
	const marker = "constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	name := msg[i+len(marker):]
	if j := strings.LastIndex(name, " ("); j >= 0 {
		name = name[:j]
	}
	return name
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
