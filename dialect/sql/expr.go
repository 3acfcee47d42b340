package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fabrica-orm/fabrica/dialect/sql/schema"
)

// Expr is a fragment of SQL text. Parameter reports whether the fragment
// renders as a placeholder and contributes a value to the argument list.
type Expr interface {
	// SQL returns the fragment text. Parameters render as `?`; the
	// statement rewrites placeholders for dialects that number them.
	SQL() string
	// Parameter reports whether the expression is a bound parameter.
	Parameter() bool
}

// argAppender is implemented by expressions that contribute bound values.
type argAppender interface {
	appendArgs(args []any) []any
}

// appendExprArgs collects bound values from the given expressions, in order.
func appendExprArgs(args []any, exprs ...Expr) []any {
	for _, e := range exprs {
		if a, ok := e.(argAppender); ok {
			args = a.appendArgs(args)
		}
	}
	return args
}

// StringLiteral is a string-valued expression. A nil-valued string literal
// renders as NULL and survives method folding unchanged.
type StringLiteral struct {
	value string
	null  bool
	param bool
}

// NullStringLiteral returns a string literal holding SQL NULL.
func NullStringLiteral() *StringLiteral {
	return &StringLiteral{null: true}
}

// Value returns the literal value. It is the empty string when Null is true.
func (l *StringLiteral) Value() string { return l.value }

// Null reports whether the literal holds SQL NULL.
func (l *StringLiteral) Null() bool { return l.null }

// SQL implements Expr.
func (l *StringLiteral) SQL() string {
	switch {
	case l.param:
		return "?"
	case l.null:
		return "NULL"
	default:
		return "'" + escapeStringValue(l.value) + "'"
	}
}

// Parameter implements Expr.
func (l *StringLiteral) Parameter() bool { return l.param }

func (l *StringLiteral) appendArgs(args []any) []any {
	if l.param {
		return append(args, l.value)
	}
	return args
}

// CharLiteral is a single-character expression. It renders like a string
// literal and binds as a one-character string when parameterized.
type CharLiteral struct {
	value rune
	param bool
}

// Value returns the literal character.
func (l *CharLiteral) Value() rune { return l.value }

// SQL implements Expr.
func (l *CharLiteral) SQL() string {
	if l.param {
		return "?"
	}
	return "'" + escapeStringValue(string(l.value)) + "'"
}

// Parameter implements Expr.
func (l *CharLiteral) Parameter() bool { return l.param }

func (l *CharLiteral) appendArgs(args []any) []any {
	if l.param {
		return append(args, string(l.value))
	}
	return args
}

// BoolLiteral is a boolean-valued expression.
type BoolLiteral struct {
	value bool
	param bool
}

// Value returns the literal value.
func (l *BoolLiteral) Value() bool { return l.value }

// SQL implements Expr.
func (l *BoolLiteral) SQL() string {
	if l.param {
		return "?"
	}
	if l.value {
		return "TRUE"
	}
	return "FALSE"
}

// Parameter implements Expr.
func (l *BoolLiteral) Parameter() bool { return l.param }

func (l *BoolLiteral) appendArgs(args []any) []any {
	if l.param {
		return append(args, l.value)
	}
	return args
}

// NumberLiteral is a numeric expression. The value is normalized to int64,
// uint64 or float64 by the Literal and Param constructors.
type NumberLiteral struct {
	value any
	param bool
}

// Value returns the literal value as int64, uint64 or float64.
func (l *NumberLiteral) Value() any { return l.value }

// SQL implements Expr.
func (l *NumberLiteral) SQL() string {
	if l.param {
		return "?"
	}
	switch v := l.value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Parameter implements Expr.
func (l *NumberLiteral) Parameter() bool { return l.param }

func (l *NumberLiteral) appendArgs(args []any) []any {
	if l.param {
		return append(args, l.value)
	}
	return args
}

// NullLiteral renders as SQL NULL.
type NullLiteral struct{}

// SQL implements Expr.
func (NullLiteral) SQL() string { return "NULL" }

// Parameter implements Expr.
func (NullLiteral) Parameter() bool { return false }

// paramExpr binds a value of a type the literal constructors do not model,
// such as time.Time or []byte.
type paramExpr struct {
	value any
}

func (p paramExpr) SQL() string     { return "?" }
func (p paramExpr) Parameter() bool { return true }

func (p paramExpr) appendArgs(args []any) []any {
	return append(args, p.value)
}

// Literal returns an inline (non-parameter) expression for the given value.
// Strings are quoted and escaped, rune values become character literals, nil
// becomes NULL, and values implementing fmt.Stringer render as their string
// form. Anything else falls back to its fmt.Sprint representation.
func Literal(v any) Expr {
	switch x := v.(type) {
	case nil:
		return NullLiteral{}
	case string:
		return &StringLiteral{value: x}
	case rune:
		return &CharLiteral{value: x}
	case bool:
		return &BoolLiteral{value: x}
	case int:
		return &NumberLiteral{value: int64(x)}
	case int8:
		return &NumberLiteral{value: int64(x)}
	case int16:
		return &NumberLiteral{value: int64(x)}
	case int64:
		return &NumberLiteral{value: x}
	case uint:
		return &NumberLiteral{value: uint64(x)}
	case uint8:
		return &NumberLiteral{value: uint64(x)}
	case uint16:
		return &NumberLiteral{value: uint64(x)}
	case uint32:
		return &NumberLiteral{value: uint64(x)}
	case uint64:
		return &NumberLiteral{value: x}
	case float32:
		return &NumberLiteral{value: float64(x)}
	case float64:
		return &NumberLiteral{value: x}
	case fmt.Stringer:
		return &StringLiteral{value: x.String()}
	default:
		return &StringLiteral{value: fmt.Sprint(v)}
	}
}

// Param returns a bound-parameter expression for the given value. It renders
// as a placeholder and contributes the value to Text.Args. A nil value
// renders as inline NULL instead of binding.
func Param(v any) Expr {
	switch x := v.(type) {
	case nil:
		return NullLiteral{}
	case string:
		return &StringLiteral{value: x, param: true}
	case rune:
		return &CharLiteral{value: x, param: true}
	case bool:
		return &BoolLiteral{value: x, param: true}
	case int:
		return &NumberLiteral{value: int64(x), param: true}
	case int8:
		return &NumberLiteral{value: int64(x), param: true}
	case int16:
		return &NumberLiteral{value: int64(x), param: true}
	case int64:
		return &NumberLiteral{value: x, param: true}
	case uint:
		return &NumberLiteral{value: uint64(x), param: true}
	case uint8:
		return &NumberLiteral{value: uint64(x), param: true}
	case uint16:
		return &NumberLiteral{value: uint64(x), param: true}
	case uint32:
		return &NumberLiteral{value: uint64(x), param: true}
	case uint64:
		return &NumberLiteral{value: x, param: true}
	case float32:
		return &NumberLiteral{value: float64(x), param: true}
	case float64:
		return &NumberLiteral{value: x, param: true}
	default:
		return paramExpr{value: v}
	}
}

// ColumnExpr is a column qualified by the alias of its table reference.
type ColumnExpr struct {
	ref *TableRef
	col *schema.Column
}

// Ref returns the table reference qualifying the column.
func (c *ColumnExpr) Ref() *TableRef { return c.ref }

// Column returns the schema column.
func (c *ColumnExpr) Column() *schema.Column { return c.col }

// SQL implements Expr.
func (c *ColumnExpr) SQL() string {
	return c.ref.Alias().Name() + "." + c.col.Name
}

// Parameter implements Expr.
func (c *ColumnExpr) Parameter() bool { return false }

// Column returns an expression selecting the named column through the given
// table reference. The column must exist on the referenced table.
func Column(ref *TableRef, name string) (Expr, error) {
	if ref == nil {
		return nil, fmt.Errorf("dialect/sql: column %q: nil table reference", name)
	}
	col := ref.Table().Column(name)
	if col == nil {
		return nil, fmt.Errorf("dialect/sql: table %q has no column %q", ref.Table().Name, name)
	}
	return &ColumnExpr{ref: ref, col: col}, nil
}

// Columns returns one column expression per mapping column, qualified by the
// given table reference.
func Columns(ref *TableRef, m *schema.Mapping) []Expr {
	exprs := make([]Expr, m.Arity())
	for i, c := range m.Columns {
		exprs[i] = &ColumnExpr{ref: ref, col: c}
	}
	return exprs
}

// FuncExpr is a function invocation over zero or more argument expressions.
type FuncExpr struct {
	name string
	args []Expr
}

// Func returns a function-call expression rendering as NAME(a, b, ...).
func Func(name string, args ...Expr) *FuncExpr {
	return &FuncExpr{name: name, args: args}
}

// Name returns the function name.
func (f *FuncExpr) Name() string { return f.name }

// SQL implements Expr.
func (f *FuncExpr) SQL() string {
	var b strings.Builder
	b.WriteString(f.name)
	b.WriteByte('(')
	for i, a := range f.args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.SQL())
	}
	b.WriteByte(')')
	return b.String()
}

// Parameter implements Expr.
func (f *FuncExpr) Parameter() bool { return false }

func (f *FuncExpr) appendArgs(args []any) []any {
	return appendExprArgs(args, f.args...)
}

// SubqueryExpr embeds a statement as a parenthesized subquery. The child
// renders when the enclosing expression does, so its bind arguments splice
// into the outer argument list at the operand's position. Mutating the child
// after the outer statement has rendered leaves the outer cache stale; the
// outer statement must be invalidated by its own mutators as usual.
type SubqueryExpr struct {
	stmt   *Statement
	prefix string
}

// Subquery wraps a statement for embedding in an outer expression, typically
// one built with WithParent on the outer statement.
func Subquery(s *Statement) *SubqueryExpr {
	return &SubqueryExpr{stmt: s}
}

// Exists returns an EXISTS predicate over the given statement.
func Exists(s *Statement) *BoolExpr {
	return Pred(&SubqueryExpr{stmt: s, prefix: "EXISTS "})
}

// Statement returns the embedded statement.
func (e *SubqueryExpr) Statement() *Statement { return e.stmt }

// SQL implements Expr.
func (e *SubqueryExpr) SQL() string {
	return e.prefix + "(" + e.stmt.Render().SQL() + ")"
}

// Parameter implements Expr.
func (e *SubqueryExpr) Parameter() bool { return false }

func (e *SubqueryExpr) appendArgs(args []any) []any {
	return append(args, e.stmt.Render().Args()...)
}

// comparison is a binary operator over two expressions.
type comparison struct {
	left  Expr
	op    string
	right Expr
}

func (c comparison) SQL() string {
	return c.left.SQL() + " " + c.op + " " + c.right.SQL()
}

func (c comparison) Parameter() bool { return false }

func (c comparison) appendArgs(args []any) []any {
	return appendExprArgs(args, c.left, c.right)
}

// BoolExpr is a boolean-valued expression tree. Leaves wrap comparisons or
// boolean literals; inner nodes combine two subtrees with AND or OR.
type BoolExpr struct {
	op    string // "AND" or "OR" for inner nodes
	left  *BoolExpr
	right *BoolExpr
	leaf  Expr
	not   bool
	paren bool
}

// Pred wraps a boolean-valued expression as a predicate tree leaf.
func Pred(e Expr) *BoolExpr {
	return &BoolExpr{leaf: e}
}

// Bool returns a plain boolean literal predicate.
func Bool(v bool) *BoolExpr {
	return &BoolExpr{leaf: &BoolLiteral{value: v}}
}

// Cond returns a binary comparison predicate, such as Cond(a, "<", b).
func Cond(left Expr, op string, right Expr) *BoolExpr {
	return &BoolExpr{leaf: comparison{left: left, op: op, right: right}}
}

// Eq returns an equality predicate.
func Eq(left, right Expr) *BoolExpr {
	return Cond(left, "=", right)
}

// And combines two predicates. OR subtrees are parenthesized when rendered
// under an AND so the text preserves the tree's grouping.
func (b *BoolExpr) And(o *BoolExpr) *BoolExpr {
	return &BoolExpr{op: "AND", left: b, right: o}
}

// Or combines two predicates.
func (b *BoolExpr) Or(o *BoolExpr) *BoolExpr {
	return &BoolExpr{op: "OR", left: b, right: o}
}

// Not negates the predicate.
func (b *BoolExpr) Not() *BoolExpr {
	return &BoolExpr{not: true, left: b}
}

// Paren marks the predicate for enclosure in parentheses and returns it.
func (b *BoolExpr) Paren() *BoolExpr {
	b.paren = true
	return b
}

// Literal returns the value of a plain (non-parameter) boolean literal leaf.
// The second result is false for parameters, comparisons and inner nodes.
func (b *BoolExpr) Literal() (bool, bool) {
	if b == nil || b.leaf == nil || b.not || b.paren {
		return false, false
	}
	lit, ok := b.leaf.(*BoolLiteral)
	if !ok || lit.param {
		return false, false
	}
	return lit.value, true
}

// SQL implements Expr.
func (b *BoolExpr) SQL() string {
	var s string
	switch {
	case b.not:
		s = "NOT (" + b.left.SQL() + ")"
	case b.leaf != nil:
		s = b.leaf.SQL()
	default:
		s = b.operand(b.left) + " " + b.op + " " + b.operand(b.right)
	}
	if b.paren {
		s = "(" + s + ")"
	}
	return s
}

// operand renders a child subtree, parenthesizing OR under AND.
func (b *BoolExpr) operand(o *BoolExpr) string {
	if b.op == "AND" && o.op == "OR" && !o.paren {
		return "(" + o.SQL() + ")"
	}
	return o.SQL()
}

// Parameter implements Expr.
func (b *BoolExpr) Parameter() bool {
	return b.leaf != nil && b.leaf.Parameter()
}

func (b *BoolExpr) appendArgs(args []any) []any {
	switch {
	case b.not:
		return b.left.appendArgs(args)
	case b.leaf != nil:
		return appendExprArgs(args, b.leaf)
	default:
		args = b.left.appendArgs(args)
		return b.right.appendArgs(args)
	}
}

var (
	_ Expr = (*StringLiteral)(nil)
	_ Expr = (*CharLiteral)(nil)
	_ Expr = (*BoolLiteral)(nil)
	_ Expr = (*NumberLiteral)(nil)
	_ Expr = NullLiteral{}
	_ Expr = paramExpr{}
	_ Expr = (*ColumnExpr)(nil)
	_ Expr = (*FuncExpr)(nil)
	_ Expr = comparison{}
	_ Expr = (*BoolExpr)(nil)
)
