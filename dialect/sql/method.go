package sql

import (
	"fmt"
	"sync"

	"github.com/fabrica-orm/fabrica"
	"github.com/fabrica-orm/fabrica/dialect/sql/schema"
)

// Receiver kinds for method registration.
const (
	ReceiverString  = "string"
	ReceiverNumeric = "numeric"
)

// AnyDialect registers a method for every dialect that has no specific
// entry of its own.
const AnyDialect = "*"

// Method maps a receiver operation to a dialect function. A Fold function,
// when present, evaluates the operation over non-parameter literal
// receivers at construction time instead of emitting a function call.
type Method struct {
	FuncName string
	ArgC     int
	Fold     func(string) string
}

type methodKey struct {
	dialect  string
	receiver string
	op       string
}

// The process-wide method registry. The built-in table is registered by the
// generated method_gen.go; drivers and extensions may add or replace
// entries at init time.
var (
	methodsMu sync.RWMutex
	methods   = make(map[methodKey]Method)
)

// RegisterMethod records a method mapping for the given dialect (AnyDialect
// for all), receiver kind and operation name, replacing any previous entry.
func RegisterMethod(dialectName, receiver, op string, m Method) {
	methodsMu.Lock()
	defer methodsMu.Unlock()
	methods[methodKey{dialectName, receiver, op}] = m
}

func lookupMethod(dialectName, receiver, op string) (Method, bool) {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	if m, ok := methods[methodKey{dialectName, receiver, op}]; ok {
		return m, true
	}
	m, ok := methods[methodKey{AnyDialect, receiver, op}]
	return m, ok
}

// ResolveMethod applies the named operation to the receiver expression
// under the statement's dialect. Non-parameter literal receivers of
// foldable methods are evaluated in place and yield a new literal of the
// same kind; everything else yields a function-call expression.
func ResolveMethod(s *Statement, recv Expr, op string, args []Expr) (Expr, error) {
	if recv == nil {
		return nil, fabrica.NewInternalError("method", "nil receiver")
	}
	m, ok := lookupMethod(s.Dialect(), receiverKind(recv), op)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: method %q is not supported on this receiver for dialect %q", op, s.Dialect())
	}
	if len(args) != m.ArgC {
		return nil, fabrica.NewInternalError("method",
			fmt.Sprintf("%s takes %d arguments, got %d", op, m.ArgC, len(args)))
	}
	if m.Fold != nil {
		if e, ok := foldLiteral(recv, m.Fold); ok {
			return e, nil
		}
	}
	return Func(m.FuncName, append([]Expr{recv}, args...)...), nil
}

// foldLiteral folds the operation over a non-parameter string or character
// literal. A null string literal passes through unchanged.
func foldLiteral(recv Expr, fold func(string) string) (Expr, bool) {
	if recv.Parameter() {
		return nil, false
	}
	switch lit := recv.(type) {
	case *StringLiteral:
		if lit.null {
			return lit, true
		}
		return &StringLiteral{value: fold(lit.value)}, true
	case *CharLiteral:
		if folded := fold(string(lit.value)); folded != "" {
			return &CharLiteral{value: []rune(folded)[0]}, true
		}
	}
	return nil, false
}

// receiverKind classifies the receiver expression for method lookup:
// string and character literals and string-typed columns are "string",
// numeric literals and columns "numeric". Unclassified receivers match no
// registration.
func receiverKind(recv Expr) string {
	switch e := recv.(type) {
	case *StringLiteral, *CharLiteral:
		return ReceiverString
	case *NumberLiteral:
		return ReceiverNumeric
	case *ColumnExpr:
		switch e.col.Type {
		case schema.TypeString, schema.TypeText:
			return ReceiverString
		case schema.TypeInt, schema.TypeInt64, schema.TypeFloat64:
			return ReceiverNumeric
		}
	}
	return ""
}
